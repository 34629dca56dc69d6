package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/plastinin/ot2protocol/internal/adapter/http/handler"
	httpmiddleware "github.com/plastinin/ot2protocol/internal/adapter/http/middleware"
	"go.uber.org/zap"
)

// Paths of the pages served before the rewrite, kept for old bookmarks
const (
	LegacyFormPath     = "/OT2MakeProtocol.php"
	LegacyUploadPath   = "/OT2MakeProtocol_upload.php"
	LegacyExamplesPath = "/OT2DownloadTestData.php"
)

// NewRouter builds the HTTP router
func NewRouter(
	pageHandler *handler.PageHandler,
	jobHandler *handler.JobHandler,
	healthHandler *handler.HealthHandler,
	logger *zap.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httpmiddleware.NewLoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5, "text/html", "application/json", "text/x-python"))

	r.Get("/health", healthHandler.Check)
	r.Get("/ready", healthHandler.Ready)

	// Upload pages
	r.Get("/", pageHandler.Full)
	r.Get("/scripts", pageHandler.Compact)
	r.Post(handler.UploadPath, pageHandler.Upload)
	r.Get(handler.ExamplesPath, pageHandler.Examples)

	r.Get(LegacyFormPath, pageHandler.Full)
	r.Post(LegacyUploadPath, pageHandler.Upload)
	r.Get(LegacyExamplesPath, pageHandler.Examples)

	r.Route(handler.JobsPath, func(r chi.Router) {
		r.Post("/", jobHandler.Create)
		r.Get("/", jobHandler.List)
		r.Get("/{id}", jobHandler.GetByID)
		r.Get("/{id}/download", jobHandler.Download)
		r.Delete("/{id}", jobHandler.Delete)
	})

	return r
}

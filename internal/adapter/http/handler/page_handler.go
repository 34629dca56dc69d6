package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/plastinin/ot2protocol/internal/adapter/http/web"
	"github.com/plastinin/ot2protocol/internal/config"
	"github.com/plastinin/ot2protocol/internal/domain"
	"github.com/plastinin/ot2protocol/internal/protocol"
	"github.com/plastinin/ot2protocol/internal/usecase"
	"go.uber.org/zap"
)

const (
	UploadPath   = "/upload"
	ExamplesPath = "/examples.zip"

	// WarningsHeader carries the number of warnings raised while rendering
	WarningsHeader = "X-Protocol-Warnings"
	// JobIDHeader carries the id of the archived job, when archiving succeeded
	JobIDHeader = "X-Job-ID"
)

// ProtocolGenerator renders a protocol from a form submission
type ProtocolGenerator interface {
	Generate(ctx context.Context, input usecase.SubmitInput) (*usecase.GenerateOutput, error)
}

// PageHandler serves the upload pages, the form submission and the example files
type PageHandler struct {
	pages         *template.Template
	generator     ProtocolGenerator
	app           config.AppConfig
	maxUploadSize int64
	logger        *zap.Logger
}

// NewPageHandler creates a PageHandler
func NewPageHandler(generator ProtocolGenerator, app config.AppConfig, maxUploadSize int64, logger *zap.Logger) (*PageHandler, error) {
	pages, err := web.Pages()
	if err != nil {
		return nil, err
	}

	return &PageHandler{
		pages:         pages,
		generator:     generator,
		app:           app,
		maxUploadSize: maxUploadSize,
		logger:        logger,
	}, nil
}

// Full renders the upload page with the instructions
// GET /
func (h *PageHandler) Full(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, http.StatusOK, false, "")
}

// Compact renders the short upload page
// GET /scripts
func (h *PageHandler) Compact(w http.ResponseWriter, r *http.Request) {
	h.renderPage(w, http.StatusOK, true, "")
}

// Upload renders the submitted files into a protocol and sends it back as a download
// POST /upload
// Content-Type: multipart/form-data
// - upload[]: template (.py), configuration (.yaml), optional CSV
func (h *PageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	input, err := readSubmission(w, r, h.maxUploadSize)
	if err != nil {
		h.logger.Warn("Failed to read form submission", zap.Error(err))
		status := uploadStatus(err)
		msg := "Could not read the uploaded files"
		if status == http.StatusRequestEntityTooLarge {
			msg = fmt.Sprintf("The uploaded files exceed %d bytes", h.maxUploadSize)
		}
		h.renderPage(w, status, false, msg)
		return
	}

	out, err := h.generator.Generate(r.Context(), input)
	if err != nil {
		if status, msg, ok := submissionError(err); ok {
			h.logger.Info("Protocol rejected", zap.Error(err))
			h.renderPage(w, status, false, msg)
			return
		}
		h.logger.Error("Failed to generate protocol", zap.Error(err))
		h.renderPage(w, http.StatusInternalServerError, false, "The protocol could not be generated, try again later")
		return
	}

	result := out.Result
	w.Header().Set("Content-Type", "text/x-python; charset=utf-8")
	w.Header().Set("Content-Disposition", attachment(result.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Output)))
	w.Header().Set(WarningsHeader, strconv.Itoa(len(result.Warnings)))
	if out.Job != nil {
		w.Header().Set(JobIDHeader, out.Job.ID.String())
	}
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(result.Output); err != nil {
		h.logger.Warn("Failed to write protocol", zap.Error(err))
	}
}

// Examples sends the zip with example files
// GET /examples.zip
func (h *PageHandler) Examples(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := web.WriteExamplesArchive(&buf); err != nil {
		h.logger.Error("Failed to build examples archive", zap.Error(err))
		http.Error(w, "examples are not available", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", attachment(web.ExamplesArchiveName))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}

func (h *PageHandler) renderPage(w http.ResponseWriter, status int, compact bool, errMsg string) {
	data := web.PageData{
		Compact:      compact,
		Version:      h.app.Version,
		ImageURL:     h.app.ImageURL,
		UploadPath:   UploadPath,
		ExamplesPath: ExamplesPath,
		Error:        errMsg,
	}

	var buf bytes.Buffer
	if err := h.pages.ExecuteTemplate(&buf, "form", data); err != nil {
		h.logger.Error("Failed to render page", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// submissionError maps errors caused by the uploaded files to a status and a
// message for the user
func submissionError(err error) (int, string, bool) {
	switch {
	case errors.Is(err, domain.ErrMissingTemplate),
		errors.Is(err, domain.ErrMissingConfig),
		errors.Is(err, protocol.ErrEmptyTemplate),
		errors.Is(err, protocol.ErrInvalidConfig),
		errors.Is(err, protocol.ErrCSVRequired),
		errors.Is(err, usecase.ErrRenderFailed):
		return http.StatusBadRequest, userMessage(err), true
	}
	return 0, "", false
}

// userMessage drops the internal prefixes of a wrapped error
func userMessage(err error) string {
	msg := err.Error()
	for _, prefix := range []string{"validation error: ", usecase.ErrRenderFailed.Error() + ": "} {
		msg = strings.TrimPrefix(msg, prefix)
	}
	if msg != "" {
		msg = strings.ToUpper(msg[:1]) + msg[1:]
	}
	return msg
}

func attachment(fileName string) string {
	return fmt.Sprintf("attachment; filename=%q", fileName)
}

package usecase

import (
	"io"

	"github.com/plastinin/ot2protocol/internal/domain"
	"github.com/plastinin/ot2protocol/internal/protocol"
)

// UploadedFile is one file of a submission
type UploadedFile struct {
	Name   string
	Size   int64
	Reader io.Reader
}

// SubmitInput is a template, a configuration and an optional CSV
type SubmitInput struct {
	Template *UploadedFile
	Config   *UploadedFile
	CSV      *UploadedFile
}

// Validate checks that the mandatory files are present
func (in SubmitInput) Validate() error {
	if in.Template == nil || in.Template.Reader == nil {
		return domain.ErrMissingTemplate
	}
	if in.Config == nil || in.Config.Reader == nil {
		return domain.ErrMissingConfig
	}
	return nil
}

// GenerateOutput is a protocol rendered for the upload form
type GenerateOutput struct {
	Job    *domain.Job // nil when archiving failed
	Result *protocol.Result
}

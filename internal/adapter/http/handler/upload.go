package handler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/plastinin/ot2protocol/internal/usecase"
)

// Multipart field names. The upload form posts three "upload[]" inputs in the
// order template, configuration, CSV. The API also accepts named fields.
const (
	fieldUploads  = "upload[]"
	fieldTemplate = "template"
	fieldConfig   = "config"
	fieldCSV      = "csv"
)

var errNotMultipart = errors.New("request is not multipart/form-data")

// readSubmission streams the multipart body and keeps the files in memory.
// Unselected file inputs arrive with an empty file name and are treated as
// absent; their position still counts.
func readSubmission(w http.ResponseWriter, r *http.Request, maxSize int64) (usecase.SubmitInput, error) {
	var input usecase.SubmitInput

	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	mr, err := r.MultipartReader()
	if err != nil {
		return input, fmt.Errorf("%w: %w", errNotMultipart, err)
	}

	slots := []**usecase.UploadedFile{&input.Template, &input.Config, &input.CSV}
	position := 0

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return input, fmt.Errorf("failed to read multipart body: %w", err)
		}

		var slot **usecase.UploadedFile
		switch part.FormName() {
		case fieldUploads:
			if position < len(slots) {
				slot = slots[position]
			}
			position++
		case fieldTemplate:
			slot = &input.Template
		case fieldConfig:
			slot = &input.Config
		case fieldCSV:
			slot = &input.CSV
		}

		file, err := readPart(part)
		part.Close()
		if err != nil {
			return input, err
		}

		if slot != nil && file != nil {
			*slot = file
		}
	}

	return input, nil
}

func readPart(part *multipart.Part) (*usecase.UploadedFile, error) {
	data, err := io.ReadAll(part)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", part.FormName(), err)
	}

	if part.FileName() == "" {
		return nil, nil
	}

	return &usecase.UploadedFile{
		Name:   part.FileName(),
		Size:   int64(len(data)),
		Reader: bytes.NewReader(data),
	}, nil
}

// uploadStatus maps a body reading error to an HTTP status
func uploadStatus(err error) int {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

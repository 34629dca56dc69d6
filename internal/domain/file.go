package domain

import (
	"errors"
	"path/filepath"
	"strings"
)

// FileKind is the role of an uploaded file
type FileKind string

const (
	FileKindTemplate FileKind = "template"
	FileKindConfig   FileKind = "config"
	FileKindCSV      FileKind = "csv"
	FileKindOutput   FileKind = "output"
)

// Content types used when storing files. Uploads are never rejected on type:
// the user is responsible for the files.
var extToContentType = map[string]string{
	".py":   "text/x-python",
	".yaml": "application/yaml",
	".yml":  "application/yaml",
	".csv":  "text/csv",
	".txt":  "text/plain",
}

var kindContentType = map[FileKind]string{
	FileKindTemplate: "text/x-python",
	FileKindConfig:   "application/yaml",
	FileKindCSV:      "text/csv",
	FileKindOutput:   "text/x-python",
}

// ContentTypeFor picks the storage content type from the file name, falling
// back to the kind default
func ContentTypeFor(kind FileKind, fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	if ct, ok := extToContentType[ext]; ok {
		return ct
	}
	if ct, ok := kindContentType[kind]; ok {
		return ct
	}
	return "application/octet-stream"
}

var (
	ErrMissingTemplate = errors.New("template file is required")
	ErrMissingConfig   = errors.New("configuration file is required")
)

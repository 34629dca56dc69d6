// Package web holds the upload pages and the example files served to users.
package web

import (
	"archive/zip"
	"embed"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
)

// ExamplesArchiveName is the file name of the example archive download
const ExamplesArchiveName = "OT2MakeProtocol_examples.zip"

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed examples
var examplesFS embed.FS

// PageData is rendered by the upload pages
type PageData struct {
	Compact      bool
	Version      string
	ImageURL     string
	UploadPath   string
	ExamplesPath string
	Error        string
}

// Pages parses the page templates
func Pages() (*template.Template, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse page templates: %w", err)
	}
	return tmpl, nil
}

// ExampleFiles lists the example file names in archive order
func ExampleFiles() ([]string, error) {
	entries, err := fs.ReadDir(examplesFS, "examples")
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// WriteExamplesArchive writes a zip with the example template, configuration and CSV
func WriteExamplesArchive(w io.Writer) error {
	names, err := ExampleFiles()
	if err != nil {
		return fmt.Errorf("failed to list example files: %w", err)
	}

	zw := zip.NewWriter(w)
	for _, name := range names {
		data, err := examplesFS.ReadFile(path.Join("examples", name))
		if err != nil {
			return fmt.Errorf("failed to read example %s: %w", name, err)
		}

		f, err := zw.Create(path.Join("OT2MakeProtocol_examples", name))
		if err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", name, err)
		}
		if _, err := f.Write(data); err != nil {
			return fmt.Errorf("failed to write %s to archive: %w", name, err)
		}
	}

	return zw.Close()
}

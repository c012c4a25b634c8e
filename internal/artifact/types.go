// Package artifact maps generated documents to files under the output tree.
// Every artifact lives at <root>/<phase folder>/<name>.<ext>; the writer
// creates missing directories and overwrites existing files.
package artifact

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Kind captures the serialization format implied by an artifact extension.
type Kind string

const (
	KindMarkdown Kind = "markdown"
	KindText     Kind = "text"
	KindCSV      Kind = "csv"
	KindYAML     Kind = "yaml"
	// KindOffice covers .docx/.xlsx names kept from the document catalog. The
	// payload is still plain text.
	KindOffice Kind = "office"
)

// KindForExt returns the kind implied by a file extension (with or without
// the leading dot).
func KindForExt(ext string) Kind {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "md", "markdown":
		return KindMarkdown
	case "csv":
		return KindCSV
	case "yaml", "yml":
		return KindYAML
	case "docx", "xlsx", "pptx":
		return KindOffice
	default:
		return KindText
	}
}

// ArtifactRef locates one generated document.
type ArtifactRef struct {
	// ID is the store key the document is recorded under.
	ID     string
	Folder string
	Name   string
	Ext    string
}

// NewRef builds a reference from a folder and a file name such as
// "Deployment_Plan.md".
func NewRef(id, folder, filename string) ArtifactRef {
	ext := filepath.Ext(filename)
	return ArtifactRef{
		ID:     id,
		Folder: folder,
		Name:   strings.TrimSuffix(filename, ext),
		Ext:    strings.TrimPrefix(ext, "."),
	}
}

// Filename returns <name>.<ext>, or just the name when no extension is set.
func (r ArtifactRef) Filename() string {
	if r.Ext == "" {
		return r.Name
	}
	return r.Name + "." + r.Ext
}

// Kind reports the format implied by the extension.
func (r ArtifactRef) Kind() Kind {
	return KindForExt(r.Ext)
}

// Path resolves the artifact beneath root.
func (r ArtifactRef) Path(root string) string {
	return filepath.Clean(filepath.Join(root, r.Folder, r.Filename()))
}

// Validate ensures the reference is well-formed.
func (r ArtifactRef) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("artifact: id is required")
	}
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("artifact: name is required for %s", r.ID)
	}
	if strings.ContainsAny(r.Name, `/\`) || strings.Contains(r.Folder, "..") {
		return fmt.Errorf("artifact: %s must stay inside its phase folder", r.ID)
	}
	return nil
}

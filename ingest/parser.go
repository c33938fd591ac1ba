// Package ingest turns uploaded files and remote URLs into plain text for
// analysis. Parsers are selected by MIME type with an extension fallback.
package ingest

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

// Parser extracts plain text from one document format.
type Parser interface {
	// Parse extracts text content from the file.
	Parse(filename string, content []byte) (string, error)

	// CanParse returns true if this parser handles the given MIME type.
	CanParse(mimeType string) bool

	// MimeType returns the primary MIME type for this parser.
	MimeType() string
}

// Registry manages document parsers.
type Registry struct {
	mu      sync.RWMutex
	parsers map[string]Parser // keyed by primary MIME type
}

// NewRegistry creates a parser registry with the default parsers.
func NewRegistry() *Registry {
	r := &Registry{
		parsers: make(map[string]Parser),
	}

	r.Register(NewTextParser())
	r.Register(NewPDFParser())
	r.Register(NewHTMLParser())

	return r
}

// Register adds a parser to the registry.
func (r *Registry) Register(p Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parsers[p.MimeType()] = p
}

// GetByMimeType returns a parser for the given MIME type, or nil.
func (r *Registry) GetByMimeType(mimeType string) Parser {
	// Strip parameters like "; charset=utf-8"
	if idx := strings.Index(mimeType, ";"); idx != -1 {
		mimeType = strings.TrimSpace(mimeType[:idx])
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.parsers[mimeType]; ok {
		return p
	}

	for _, p := range r.parsers {
		if p.CanParse(mimeType) {
			return p
		}
	}

	return nil
}

// GetByExtension returns a parser based on the file extension, or nil.
func (r *Registry) GetByExtension(filename string) Parser {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return r.GetByMimeType("application/pdf")
	case ".html", ".htm":
		return r.GetByMimeType("text/html")
	case ".txt", ".md", ".markdown", ".text", "":
		return r.GetByMimeType("text/plain")
	default:
		return nil
	}
}

// ExtractText extracts plain text from an uploaded file, selecting a parser
// by declared content type first and filename extension second. Unknown
// formats fall back to the plain text parser rather than rejecting the upload.
func (r *Registry) ExtractText(filename, contentType string, content []byte) (string, error) {
	p := r.GetByMimeType(contentType)
	if p == nil {
		p = r.GetByExtension(filename)
	}
	if p == nil {
		p = r.GetByMimeType("text/plain")
	}
	if p == nil {
		return "", fmt.Errorf("no parser for %q (%s)", filename, contentType)
	}

	return p.Parse(filename, content)
}

package ingest

import (
	"strings"
	"unicode/utf8"
)

// TextParser handles plain text and markdown files.
type TextParser struct{}

// NewTextParser creates a new plain text parser.
func NewTextParser() *TextParser {
	return &TextParser{}
}

// Parse decodes the file as UTF-8 text, dropping invalid bytes.
func (t *TextParser) Parse(_ string, content []byte) (string, error) {
	text := string(content)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "")
	}
	return text, nil
}

// CanParse returns true for text-like MIME types.
func (t *TextParser) CanParse(mimeType string) bool {
	switch mimeType {
	case "text/plain", "text/markdown", "application/octet-stream":
		return true
	}
	return strings.HasPrefix(mimeType, "text/") && mimeType != "text/html"
}

// MimeType returns the primary MIME type for this parser.
func (t *TextParser) MimeType() string {
	return "text/plain"
}

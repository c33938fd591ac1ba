package ingest

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFParser extracts text content from PDF documents.
type PDFParser struct{}

// NewPDFParser creates a new PDF parser.
func NewPDFParser() *PDFParser {
	return &PDFParser{}
}

// Parse extracts text from each page. Pages that fail to parse are skipped —
// partial text beats a hard failure for scanned or damaged documents.
func (p *PDFParser) Parse(_ string, content []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}

	var textBuilder strings.Builder

	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}

		if text != "" {
			if textBuilder.Len() > 0 {
				textBuilder.WriteString("\n\n")
			}
			textBuilder.WriteString(text)
		}
	}

	extracted := textBuilder.String()
	if extracted == "" {
		return "", fmt.Errorf("no text content extracted from PDF (%d pages, possibly image-based)", numPages)
	}

	return extracted, nil
}

// CanParse returns true for PDF MIME types.
func (p *PDFParser) CanParse(mimeType string) bool {
	return mimeType == "application/pdf" || mimeType == "application/x-pdf"
}

// MimeType returns the primary MIME type for this parser.
func (p *PDFParser) MimeType() string {
	return "application/pdf"
}

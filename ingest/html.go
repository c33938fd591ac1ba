package ingest

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	"golang.org/x/net/html"
)

// excessiveLinesRe collapses runs of blank lines left behind by removed
// page chrome.
var excessiveLinesRe = regexp.MustCompile(`\n{4,}`)

// HTMLParser converts HTML documents to markdown text.
type HTMLParser struct {
	converter *md.Converter
}

// NewHTMLParser creates a new HTML parser.
func NewHTMLParser() *HTMLParser {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())

	return &HTMLParser{
		converter: converter,
	}
}

// Parse converts HTML content to markdown text. Script and style bodies never
// carry document text, so they are pruned from the node tree before
// conversion.
func (h *HTMLParser) Parse(_ string, content []byte) (string, error) {
	cleaned, err := stripNonContent(content)
	if err != nil {
		return "", fmt.Errorf("parse HTML: %w", err)
	}

	markdown, err := h.converter.ConvertString(cleaned)
	if err != nil {
		return "", fmt.Errorf("convert HTML: %w", err)
	}

	markdown = excessiveLinesRe.ReplaceAllString(markdown, "\n\n\n")
	return strings.TrimSpace(markdown), nil
}

// stripNonContent parses the document and removes script, style, and noscript
// subtrees before re-rendering.
func stripNonContent(content []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(content))
	if err != nil {
		return "", err
	}

	pruneNodes(doc)

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func pruneNodes(n *html.Node) {
	var next *html.Node
	for child := n.FirstChild; child != nil; child = next {
		next = child.NextSibling
		if child.Type == html.ElementNode {
			switch child.Data {
			case "script", "style", "noscript":
				n.RemoveChild(child)
				continue
			}
		}
		pruneNodes(child)
	}
}

// CanParse returns true for HTML MIME types.
func (h *HTMLParser) CanParse(mimeType string) bool {
	return mimeType == "text/html" || mimeType == "application/xhtml+xml"
}

// MimeType returns the primary MIME type for this parser.
func (h *HTMLParser) MimeType() string {
	return "text/html"
}

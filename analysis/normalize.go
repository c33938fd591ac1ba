package analysis

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// ErrEmptyDocument is returned when the submitted text is blank.
var ErrEmptyDocument = errors.New("document text is empty")

// Character ceilings for prompt grounding. Keeping analysis and Q&A context
// under these sizes stays well within model context windows; beyond them
// trailing content is dropped deterministically, never an error.
const (
	DefaultMaxAnalysisChars = 8000
	DefaultMaxQuestionChars = 6000
)

// truncationMarker is appended whenever content is dropped, so truncation is
// visible in the composed prompt.
const truncationMarker = "\n\n[Content truncated for analysis...]"

// Normalize produces the canonical text blob for a document: line endings
// unified, surrounding whitespace trimmed. Blank input is rejected; oversized
// input is not — truncation is the prompt composer's concern.
func Normalize(source string) (string, error) {
	text := strings.ReplaceAll(source, "\r\n", "\n")
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyDocument
	}
	return text, nil
}

// TruncateForPrompt truncates text to maxChars, preferring a paragraph
// boundary in the second half of the window so the cut lands between clauses
// rather than mid-sentence. Deterministic: same input, same output.
func TruncateForPrompt(text string, maxChars int) string {
	if maxChars <= 0 || len(text) <= maxChars {
		return text
	}

	truncated := text[:maxChars]

	// Avoid splitting a multi-byte rune at the boundary.
	for len(truncated) > 0 {
		r, size := utf8.DecodeLastRuneInString(truncated)
		if r == utf8.RuneError && size <= 1 {
			truncated = truncated[:len(truncated)-1]
			continue
		}
		break
	}

	lastPara := strings.LastIndex(truncated, "\n\n")
	if lastPara > maxChars/2 {
		return truncated[:lastPara] + truncationMarker
	}

	return truncated + truncationMarker
}

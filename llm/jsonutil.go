package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Pre-compiled regex patterns for JSON extraction from completion responses.
var (
	// jsonBlockPattern matches JSON inside markdown code blocks: ```json { ... } ```
	jsonBlockPattern = regexp.MustCompile("(?s)```(?:json)?\\s*\\n?(\\{.*\\})\\s*```")
	// jsonObjectPattern matches any JSON object (greedy fallback).
	jsonObjectPattern = regexp.MustCompile(`(?s)\{[\s\S]*\}`)
	// trailingCommaPattern matches trailing commas before ] or }.
	trailingCommaPattern = regexp.MustCompile(`,\s*([}\]])`)
)

// ExtractJSON extracts a JSON object from a completion response string.
// It handles markdown code blocks, surrounding prose, JavaScript-style
// comments, and trailing commas. Returns "" when no object can be found.
func ExtractJSON(content string) string {
	raw := extractRawJSON(content)
	if raw == "" {
		return ""
	}
	return cleanJSON(raw)
}

// extractRawJSON extracts raw JSON content before cleaning.
func extractRawJSON(content string) string {
	// Try markdown code block first
	if matches := jsonBlockPattern.FindStringSubmatch(content); len(matches) > 1 {
		return matches[1]
	}

	// Decode from the first brace. json.Decoder finds the balanced object
	// boundary correctly even when braces appear inside string values.
	start := strings.Index(content, "{")
	if start == -1 {
		return ""
	}
	decoder := json.NewDecoder(strings.NewReader(content[start:]))
	var raw json.RawMessage
	if err := decoder.Decode(&raw); err == nil {
		return string(raw)
	}

	// Greedy fallback for objects the decoder rejects (comments, trailing
	// commas) so cleanJSON gets a chance to repair them.
	if matches := jsonObjectPattern.FindString(content); matches != "" {
		return matches
	}
	return ""
}

// cleanJSON removes JavaScript-style comments and trailing commas from JSON.
// Completion models commonly produce these invalid JSON artifacts.
func cleanJSON(raw string) string {
	lines := strings.Split(raw, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		cleaned = append(cleaned, stripLineComment(line))
	}
	result := strings.Join(cleaned, "\n")

	// Remove trailing commas before } or ]
	result = trailingCommaPattern.ReplaceAllString(result, "$1")

	return result
}

// stripLineComment removes a // comment from a JSON line, respecting string values.
// For example:
//
//	"due on the 1st",           // This is a comment  → "due on the 1st",
//	"url": "http://example.com" // comment            → "url": "http://example.com"
//	"url": "http://example.com"                       → "url": "http://example.com" (no change)
func stripLineComment(line string) string {
	// Fast path: no // at all
	if !strings.Contains(line, "//") {
		return line
	}

	// Walk the line character by character, tracking whether we're inside a string.
	inString := false
	escaped := false
	for i := 0; i < len(line); i++ {
		ch := line[i]
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' && inString {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if !inString && ch == '/' && i+1 < len(line) && line[i+1] == '/' {
			// Found a comment outside a string — strip from here
			trimmed := strings.TrimRight(line[:i], " \t")
			return trimmed
		}
	}
	return line
}

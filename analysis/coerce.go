package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/plainterms/plainterms/llm"
	"github.com/plainterms/plainterms/metrics"
)

// The coercion engine forces untrusted completion text into the caller-facing
// schemas. It never fails: when every extraction attempt is exhausted, or the
// extracted object is missing required fields, it synthesizes a deterministic
// fallback that is structurally indistinguishable from a successful parse.

// fallbackExcerptChars bounds the raw-text excerpt embedded in fallbacks.
const fallbackExcerptChars = 500

// extractAttempt is one step in the extraction ladder. It returns a candidate
// JSON string, or "" when the step does not apply.
type extractAttempt func(raw string) string

// extractAttempts is ordered from strict to permissive: direct parse, fence
// and balanced-object extraction, then wrapper-prose stripping.
var extractAttempts = []extractAttempt{
	extractDirect,
	extractEmbedded,
	extractStripped,
}

// extractDirect accepts raw only when it is already a JSON object.
func extractDirect(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if !strings.HasPrefix(trimmed, "{") {
		return ""
	}
	if !json.Valid([]byte(trimmed)) {
		return ""
	}
	return trimmed
}

// extractEmbedded pulls a JSON object out of code fences or surrounding
// prose, repairing comments and trailing commas.
func extractEmbedded(raw string) string {
	candidate := llm.ExtractJSON(raw)
	if candidate == "" || !json.Valid([]byte(candidate)) {
		return ""
	}
	return candidate
}

// extractStripped drops leading prose lines ("Here is the analysis:", fence
// openers) before the first brace and retries a direct parse. This catches
// responses whose trailing text confuses the balanced-object decoder.
func extractStripped(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end <= start {
		return ""
	}
	candidate := strings.TrimSpace(raw[start : end+1])
	if !json.Valid([]byte(candidate)) {
		return ""
	}
	return candidate
}

// JSON Schemas for the two target shapes. Validation reports which required
// fields are missing rather than silently accepting partial objects.

func must(s *jsonschema.Schema, err error) *jsonschema.Schema {
	if err != nil {
		panic(err)
	}
	return s
}

var (
	analysisSchema = must(compileSchema("analysis.json", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"summary":                map[string]any{"type": "string"},
			"key_points":             stringListProp(),
			"risks_and_concerns":     stringListProp(),
			"recommendations":        stringListProp(),
			"simplified_explanation": map[string]any{"type": "string"},
		},
		"required": []string{"summary", "key_points", "risks_and_concerns", "recommendations", "simplified_explanation"},
	}))

	answerSchema = must(compileSchema("answer.json", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"answer":            map[string]any{"type": "string"},
			"relevant_sections": stringListProp(),
			"confidence_level":  map[string]any{"type": "string"},
		},
		"required": []string{"answer", "relevant_sections", "confidence_level"},
	}))
)

func stringListProp() map[string]any {
	return map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "string"},
	}
}

func compileSchema(name string, schemaMap map[string]any) (*jsonschema.Schema, error) {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	return compiler.Compile(name)
}

// extractValidated runs the extraction ladder and schema validation, decoding
// into out on success. Returns false when the fallback must be used.
func extractValidated(raw string, schema *jsonschema.Schema, out any, logger *slog.Logger) bool {
	for _, attempt := range extractAttempts {
		candidate := attempt(raw)
		if candidate == "" {
			continue
		}

		var v any
		if err := json.Unmarshal([]byte(candidate), &v); err != nil {
			continue
		}
		if err := schema.Validate(v); err != nil {
			logger.Debug("Extracted JSON failed schema validation", "error", err)
			continue
		}
		if err := json.Unmarshal([]byte(candidate), out); err != nil {
			continue
		}
		return true
	}
	return false
}

// CoerceAnalysis parses raw completion text into an Analysis. It never fails;
// malformed output yields the deterministic fallback, logged and counted as a
// quality signal.
func CoerceAnalysis(raw string, logger *slog.Logger) *Analysis {
	if logger == nil {
		logger = slog.Default()
	}

	var a Analysis
	if extractValidated(raw, analysisSchema, &a, logger) {
		ensureLists(&a.KeyPoints, &a.RisksAndConcerns, &a.Recommendations)
		return &a
	}

	logger.Warn("Completion response could not be coerced to analysis shape",
		"response_chars", len(raw))
	metrics.CoercionFallbacks.WithLabelValues("analysis").Inc()

	return fallbackAnalysis(raw)
}

// CoerceAnswer parses raw completion text into an Answer. Never fails.
func CoerceAnswer(raw string, logger *slog.Logger) *Answer {
	if logger == nil {
		logger = slog.Default()
	}

	var ans Answer
	if extractValidated(raw, answerSchema, &ans, logger) {
		ensureLists(&ans.RelevantSections)
		if ans.ConfidenceLevel == "" {
			ans.ConfidenceLevel = ConfidenceLow
		}
		return &ans
	}

	logger.Warn("Completion response could not be coerced to answer shape",
		"response_chars", len(raw))
	metrics.CoercionFallbacks.WithLabelValues("answer").Inc()

	return fallbackAnswer(raw)
}

// fallbackAnalysis builds the deterministic analysis fallback. String fields
// embed a truncated excerpt of the raw response so the caller retains some
// signal; list fields are empty but non-nil.
func fallbackAnalysis(raw string) *Analysis {
	return &Analysis{
		Summary:               "The analysis service returned a response that could not be structured.",
		KeyPoints:             []string{},
		RisksAndConcerns:      []string{},
		Recommendations:       []string{},
		SimplifiedExplanation: "Raw response excerpt: " + excerpt(raw, fallbackExcerptChars),
	}
}

// fallbackAnswer builds the deterministic answer fallback.
func fallbackAnswer(raw string) *Answer {
	return &Answer{
		Answer:           "The answer could not be structured. Raw response excerpt: " + excerpt(raw, fallbackExcerptChars),
		RelevantSections: []string{},
		ConfidenceLevel:  ConfidenceLow,
	}
}

// excerpt truncates s to n bytes at a rune boundary, marking the cut.
func excerpt(s string, n int) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(empty response)"
	}
	if len(s) <= n {
		return s
	}
	cut := s[:n]
	for len(cut) > 0 && cut[len(cut)-1]&0xC0 == 0x80 {
		cut = cut[:len(cut)-1]
	}
	return cut + "..."
}

// ensureLists replaces nil slices with empty ones so the JSON contract always
// serializes arrays, never null.
func ensureLists(lists ...*[]string) {
	for _, l := range lists {
		if *l == nil {
			*l = []string{}
		}
	}
}

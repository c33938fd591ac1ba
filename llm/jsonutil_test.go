package llm

import (
	"encoding/json"
	"testing"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantKey string // if non-empty, check this key exists in parsed JSON
		wantErr bool
	}{
		{
			name:    "plain JSON",
			input:   `{"summary": "test"}`,
			wantKey: "summary",
		},
		{
			name:    "markdown code block",
			input:   "```json\n{\"summary\": \"test\"}\n```",
			wantKey: "summary",
		},
		{
			name:    "markdown block with trailing text",
			input:   "```json\n{\"summary\": \"test\"}\n```\n\n**Some extra text here**",
			wantKey: "summary",
		},
		{
			name:    "prose before and after",
			input:   "Here is the analysis you asked for:\n\n{\"summary\": \"a lease\"}\n\nLet me know if you have questions.",
			wantKey: "summary",
		},
		{
			name:    "braces inside string values",
			input:   `Sure: {"answer": "the clause {4.2} applies", "confidence_level": "high"} hope that helps`,
			wantKey: "answer",
		},
		{
			name: "JS comments and trailing commas",
			input: "```json\n{\n  \"key_points\": [\n    \"one\",  // first\n    \"two\",  // second\n  ]\n}\n```",
			wantKey: "key_points",
		},
		{
			name:    "URL in string not stripped",
			input:   `{"url": "http://example.com/path"}`,
			wantKey: "url",
		},
		{
			name:    "empty input",
			input:   "",
			wantErr: true,
		},
		{
			name:    "no JSON at all",
			input:   "I cannot process this.",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ExtractJSON(tt.input)

			if tt.wantErr {
				if result != "" {
					t.Errorf("expected empty result, got: %s", result)
				}
				return
			}

			if result == "" {
				t.Fatal("expected JSON result, got empty string")
			}

			var parsed map[string]any
			if err := json.Unmarshal([]byte(result), &parsed); err != nil {
				t.Fatalf("result is not valid JSON: %v\nresult: %s", err, result)
			}

			if tt.wantKey != "" {
				if _, ok := parsed[tt.wantKey]; !ok {
					t.Errorf("expected key %q in parsed JSON, got keys: %v", tt.wantKey, keysOf(parsed))
				}
			}
		})
	}
}

func TestStripLineComment(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`"plain line"`, `"plain line"`},
		{`"value",          // comment`, `"value",`},
		{`"url": "http://example.com" // comment`, `"url": "http://example.com"`},
		{`"url": "http://example.com"`, `"url": "http://example.com"`},
		{`"escaped \" quote" // gone`, `"escaped \" quote"`},
	}

	for _, tt := range tests {
		if got := stripLineComment(tt.input); got != tt.want {
			t.Errorf("stripLineComment(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func keysOf(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

package server

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plainterms/plainterms/analysis"
	"github.com/plainterms/plainterms/ingest"
	"github.com/plainterms/plainterms/llm"
	_ "github.com/plainterms/plainterms/llm/providers"
	"github.com/plainterms/plainterms/session"
)

const analysisCompletion = `{
	"summary": "A standard apartment lease.",
	"key_points": ["12 month term"],
	"risks_and_concerns": ["No sublet clause"],
	"recommendations": ["Ask about subletting"],
	"simplified_explanation": "You rent for a year."
}`

const answerCompletion = `{
	"answer": "Rent is due on the 1st.",
	"relevant_sections": ["payable on the first day"],
	"confidence_level": "high"
}`

// upstream fakes the completion service with a chat-completions envelope.
func upstream(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(handler)
}

func completionHandler(content string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"model": "test-model",
			"choices": []map[string]any{
				{
					"message":       map[string]any{"role": "assistant", "content": content},
					"finish_reason": "stop",
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}

// testStack wires a full server against the given upstream URL.
type testStack struct {
	mux      *http.ServeMux
	registry *session.Registry
	ledger   *session.Ledger
}

func newTestStack(upstreamURL string) *testStack {
	client := llm.NewClient(llm.Endpoint{
		Provider: "openai",
		URL:      upstreamURL,
		Model:    "test-model",
		APIKey:   "test-key",
	})

	registry := session.NewRegistry()
	ledger := session.NewLedger()
	parsers := ingest.NewRegistry()
	analyzer := analysis.NewAnalyzer(client, registry, ledger)

	srv := New(analyzer, registry, ledger, parsers, ingest.NewFetcher(0, parsers))
	mux := http.NewServeMux()
	srv.RegisterHandlers(mux)

	return &testStack{mux: mux, registry: registry, ledger: ledger}
}

func (s *testStack) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.mux.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestAnalyzeTextEndpoint(t *testing.T) {
	up := upstream(t, completionHandler(analysisCompletion))
	defer up.Close()
	stack := newTestStack(up.URL)

	w := stack.do(t, http.MethodPost, "/api/analyze-text", map[string]string{
		"text":          "The tenant shall pay rent of $1500 per month.",
		"document_type": "rental_agreement",
		"user_role":     "tenant",
	})
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeBody[analyzeResponse](t, w)
	assert.NotEmpty(t, resp.DocumentID)
	assert.Equal(t, "A standard apartment lease.", resp.Summary)
	assert.NotNil(t, resp.KeyPoints)

	// The document is now resolvable from the registry.
	text, err := stack.registry.GetText(resp.DocumentID)
	require.NoError(t, err)
	assert.Contains(t, text, "$1500")
}

func TestAnalyzeTextEmptyInput(t *testing.T) {
	stack := newTestStack("http://127.0.0.1:0")

	w := stack.do(t, http.MethodPost, "/api/analyze-text", map[string]string{"text": "   "})
	require.Equal(t, http.StatusBadRequest, w.Code)

	resp := decodeBody[errorResponse](t, w)
	assert.Equal(t, "input", resp.Category)
}

func TestAnalyzeTextInvalidBody(t *testing.T) {
	stack := newTestStack("http://127.0.0.1:0")

	req := httptest.NewRequest(http.MethodPost, "/api/analyze-text", strings.NewReader("not json"))
	w := httptest.NewRecorder()
	stack.mux.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalyzeTextMethodNotAllowed(t *testing.T) {
	stack := newTestStack("http://127.0.0.1:0")
	w := stack.do(t, http.MethodGet, "/api/analyze-text", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestAnalyzeTextBadAPIKey(t *testing.T) {
	up := upstream(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "invalid key"}`, http.StatusUnauthorized)
	})
	defer up.Close()
	stack := newTestStack(up.URL)

	w := stack.do(t, http.MethodPost, "/api/analyze-text", map[string]string{"text": "lease text"})
	require.Equal(t, http.StatusBadGateway, w.Code)

	resp := decodeBody[errorResponse](t, w)
	assert.Equal(t, "configuration", resp.Category)
	assert.Contains(t, resp.Error, "API key")
}

func TestAnalyzeTextUpstreamDown(t *testing.T) {
	up := upstream(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "oops", http.StatusInternalServerError)
	})
	defer up.Close()
	stack := newTestStack(up.URL)

	w := stack.do(t, http.MethodPost, "/api/analyze-text", map[string]string{"text": "lease text"})
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	resp := decodeBody[errorResponse](t, w)
	assert.Equal(t, "upstream", resp.Category)
}

func TestAnalyzeDocumentEndpoint(t *testing.T) {
	up := upstream(t, completionHandler(analysisCompletion))
	defer up.Close()
	stack := newTestStack(up.URL)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "lease.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("The tenant shall pay rent monthly."))
	require.NoError(t, err)
	require.NoError(t, mw.WriteField("document_type", "rental_agreement"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/analyze-document", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	stack.mux.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody[analyzeResponse](t, w)
	assert.NotEmpty(t, resp.DocumentID)
	assert.Equal(t, "A standard apartment lease.", resp.Summary)
}

func TestAnalyzeDocumentMissingFile(t *testing.T) {
	stack := newTestStack("http://127.0.0.1:0")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("document_type", "contract"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/analyze-document", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	stack.mux.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeBody[errorResponse](t, w)
	assert.Equal(t, "input", resp.Category)
}

func TestAnalyzeURLRejectsUnsafeURL(t *testing.T) {
	stack := newTestStack("http://127.0.0.1:0")

	w := stack.do(t, http.MethodPost, "/api/analyze-url", map[string]string{
		"url": "http://169.254.169.254/latest/meta-data",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	resp := decodeBody[errorResponse](t, w)
	assert.Equal(t, "input", resp.Category)
}

func TestAskQuestionEndpoint(t *testing.T) {
	up := upstream(t, completionHandler(answerCompletion))
	defer up.Close()
	stack := newTestStack(up.URL)

	id := stack.registry.Store("Rent is payable on the first day of each month.",
		analysis.Options{}, &analysis.Analysis{})

	w := stack.do(t, http.MethodPost, "/api/ask-question", map[string]string{
		"question":    "When is rent due?",
		"document_id": id,
	})
	require.Equal(t, http.StatusOK, w.Code)

	resp := decodeBody[analysis.Answer](t, w)
	assert.Equal(t, "Rent is due on the 1st.", resp.Answer)
	assert.Equal(t, "high", resp.ConfidenceLevel)

	require.Len(t, stack.ledger.All(), 1)
}

func TestAskQuestionUnknownDocument(t *testing.T) {
	up := upstream(t, completionHandler(answerCompletion))
	defer up.Close()
	stack := newTestStack(up.URL)

	w := stack.do(t, http.MethodPost, "/api/ask-question", map[string]string{
		"question":    "When is rent due?",
		"document_id": "b2c7e6f0-0000-0000-0000-000000000000",
	})
	require.Equal(t, http.StatusNotFound, w.Code)

	resp := decodeBody[errorResponse](t, w)
	assert.Equal(t, "context", resp.Category)
}

func TestAskQuestionNoContext(t *testing.T) {
	stack := newTestStack("http://127.0.0.1:0")

	w := stack.do(t, http.MethodPost, "/api/ask-question", map[string]string{
		"question": "When is rent due?",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	resp := decodeBody[errorResponse](t, w)
	assert.Equal(t, "context", resp.Category)
}

func TestChatHistoryLifecycle(t *testing.T) {
	up := upstream(t, completionHandler(answerCompletion))
	defer up.Close()
	stack := newTestStack(up.URL)

	// Empty to start.
	w := stack.do(t, http.MethodGet, "/api/chat-history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	listing := decodeBody[map[string]json.RawMessage](t, w)
	var count int
	require.NoError(t, json.Unmarshal(listing["count"], &count))
	assert.Zero(t, count)

	// One exchange lands in the history.
	w = stack.do(t, http.MethodPost, "/api/ask-question", map[string]string{
		"question":      "When is rent due?",
		"document_text": "Rent is payable on the first day of each month.",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = stack.do(t, http.MethodGet, "/api/chat-history", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		History []analysis.ChatRecord `json:"history"`
		Count   int                   `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "When is rent due?", body.History[0].Question)

	// DELETE clears it.
	w = stack.do(t, http.MethodDelete, "/api/chat-history", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = stack.do(t, http.MethodGet, "/api/chat-history", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Zero(t, body.Count)
	assert.Empty(t, body.History)
}

func TestHealthEndpoint(t *testing.T) {
	stack := newTestStack("http://127.0.0.1:0")
	stack.registry.Store("text", analysis.Options{}, &analysis.Analysis{})

	w := stack.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody[map[string]any](t, w)
	assert.Equal(t, "healthy", body["status"])
	assert.EqualValues(t, 1, body["documents"])
}

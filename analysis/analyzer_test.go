package analysis_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plainterms/plainterms/analysis"
	"github.com/plainterms/plainterms/llm"
	_ "github.com/plainterms/plainterms/llm/providers"
)

// fakeStore is an in-memory DocumentStore that hands out sequential IDs.
type fakeStore struct {
	texts map[string]string
	next  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{texts: map[string]string{}}
}

func (s *fakeStore) Store(text string, _ analysis.Options, _ *analysis.Analysis) string {
	s.next++
	id := fmt.Sprintf("doc-%d", s.next)
	s.texts[id] = text
	return id
}

func (s *fakeStore) GetText(id string) (string, error) {
	text, ok := s.texts[id]
	if !ok {
		return "", fmt.Errorf("document %s not found", id)
	}
	return text, nil
}

// fakeLedger records appended chat exchanges.
type fakeLedger struct {
	records []analysis.ChatRecord
}

func (l *fakeLedger) Append(rec analysis.ChatRecord) {
	l.records = append(l.records, rec)
}

// completionServer returns an httptest server that responds to every request
// with the given completion text wrapped in a chat-completions envelope.
func completionServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"model": "test-model",
			"choices": []map[string]any{
				{
					"message":       map[string]any{"role": "assistant", "content": content},
					"finish_reason": "stop",
				},
			},
			"usage": map[string]any{"total_tokens": 42},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func newTestAnalyzer(serverURL string, store *fakeStore, ledger *fakeLedger) *analysis.Analyzer {
	client := llm.NewClient(llm.Endpoint{
		Provider: "openai",
		URL:      serverURL,
		Model:    "test-model",
		APIKey:   "test-key",
	})
	return analysis.NewAnalyzer(client, store, ledger)
}

func TestAnalyzeDocument(t *testing.T) {
	srv := completionServer(t, `{
		"summary": "A one-year apartment lease.",
		"key_points": ["Term is 12 months", "Rent is $1500"],
		"risks_and_concerns": ["Automatic renewal clause"],
		"recommendations": ["Calendar the renewal deadline"],
		"simplified_explanation": "You rent the apartment for a year at $1500 a month."
	}`)
	defer srv.Close()

	store := newFakeStore()
	ledger := &fakeLedger{}
	a := newTestAnalyzer(srv.URL, store, ledger)

	result, err := a.AnalyzeDocument(context.Background(), "  Lease text here.\r\nSection 1.  ", analysis.Options{
		DocumentType: analysis.DocTypeRentalAgreement,
		UserRole:     analysis.RoleTenant,
	})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.NotEmpty(t, result.DocumentID)
	assert.Equal(t, "A one-year apartment lease.", result.Analysis.Summary)
	assert.Len(t, result.Analysis.KeyPoints, 2)

	// Stored text is the normalized form.
	stored, err := store.GetText(result.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, "Lease text here.\nSection 1.", stored)

	assert.Empty(t, ledger.records, "analysis must not touch the chat ledger")
}

func TestAnalyzeDocumentEmptyText(t *testing.T) {
	store := newFakeStore()
	a := newTestAnalyzer("http://127.0.0.1:0", store, &fakeLedger{})

	_, err := a.AnalyzeDocument(context.Background(), "   \n\t ", analysis.Options{})
	require.ErrorIs(t, err, analysis.ErrEmptyDocument)
	assert.Zero(t, store.next, "nothing may be stored for rejected input")
}

func TestAnalyzeDocumentMalformedCompletionStillStores(t *testing.T) {
	srv := completionServer(t, "I cannot process this.")
	defer srv.Close()

	store := newFakeStore()
	a := newTestAnalyzer(srv.URL, store, &fakeLedger{})

	result, err := a.AnalyzeDocument(context.Background(), "Some contract text.", analysis.Options{})
	require.NoError(t, err)
	assert.Contains(t, result.Analysis.SimplifiedExplanation, "I cannot process this.")
	assert.NotEmpty(t, result.DocumentID)

	stored, err := store.GetText(result.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, "Some contract text.", stored)
}

func TestAskQuestionByDocumentID(t *testing.T) {
	srv := completionServer(t, `{
		"answer": "Rent is due on the first of each month.",
		"relevant_sections": ["Rent shall be paid on the 1st"],
		"confidence_level": "high"
	}`)
	defer srv.Close()

	store := newFakeStore()
	ledger := &fakeLedger{}
	a := newTestAnalyzer(srv.URL, store, ledger)

	id := store.Store("Rent shall be paid on the 1st of each month.", analysis.Options{}, &analysis.Analysis{})

	ans, err := a.AskQuestion(context.Background(), "When is rent due?", id, "")
	require.NoError(t, err)
	assert.Equal(t, "Rent is due on the first of each month.", ans.Answer)
	assert.Equal(t, "high", ans.ConfidenceLevel)

	require.Len(t, ledger.records, 1)
	rec := ledger.records[0]
	assert.Equal(t, "When is rent due?", rec.Question)
	assert.Equal(t, ans.Answer, rec.Answer)
	assert.False(t, rec.Timestamp.IsZero())
}

func TestAskQuestionWithRawText(t *testing.T) {
	srv := completionServer(t, `{"answer": "Thirty days.", "relevant_sections": [], "confidence_level": "medium"}`)
	defer srv.Close()

	store := newFakeStore()
	a := newTestAnalyzer(srv.URL, store, &fakeLedger{})

	ans, err := a.AskQuestion(context.Background(), "What is the notice period?", "", "Notice period is thirty days.")
	require.NoError(t, err)
	assert.Equal(t, "Thirty days.", ans.Answer)
	assert.Zero(t, store.next, "raw question text must not be stored")
}

func TestAskQuestionUnknownDocumentID(t *testing.T) {
	srv := completionServer(t, "{}")
	defer srv.Close()

	ledger := &fakeLedger{}
	a := newTestAnalyzer(srv.URL, newFakeStore(), ledger)

	_, err := a.AskQuestion(context.Background(), "When is rent due?", "no-such-doc", "")
	require.ErrorIs(t, err, analysis.ErrMissingContext)
	assert.Empty(t, ledger.records)
}

func TestAskQuestionNoContext(t *testing.T) {
	a := newTestAnalyzer("http://127.0.0.1:0", newFakeStore(), &fakeLedger{})

	_, err := a.AskQuestion(context.Background(), "When is rent due?", "", "")
	require.ErrorIs(t, err, analysis.ErrMissingContext)
}

func TestAskQuestionEmptyQuestion(t *testing.T) {
	a := newTestAnalyzer("http://127.0.0.1:0", newFakeStore(), &fakeLedger{})

	_, err := a.AskQuestion(context.Background(), "  ", "doc-1", "")
	require.Error(t, err)
	require.ErrorIs(t, err, analysis.ErrEmptyDocument)
}

func TestAskQuestionUpstreamErrorSkipsLedger(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "invalid api key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	ledger := &fakeLedger{}
	a := newTestAnalyzer(srv.URL, newFakeStore(), ledger)

	_, err := a.AskQuestion(context.Background(), "When is rent due?", "", "Rent is due on the 1st.")
	require.Error(t, err)
	assert.True(t, llm.IsFatal(err))
	assert.Empty(t, ledger.records, "failed exchanges must not reach the ledger")
}

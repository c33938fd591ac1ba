package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/plainterms/plainterms/llm"
	"github.com/plainterms/plainterms/metrics"
)

// ErrMissingContext is returned when a question arrives with neither a known
// document identifier nor raw text to ground the answer.
var ErrMissingContext = errors.New("document ID or text is required")

// DocumentStore is the registry surface the analyzer needs: store a new
// analyzed document and resolve an identifier back to its canonical text.
type DocumentStore interface {
	Store(text string, opts Options, result *Analysis) string
	GetText(id string) (string, error)
}

// ChatRecorder receives the question/answer ledger appends.
type ChatRecorder interface {
	Append(rec ChatRecord)
}

// completionTemperature keeps extraction consistent run to run.
const completionTemperature = 0.3

// maxCompletionTokens bounds the structured response length.
const maxCompletionTokens = 2048

// Analyzer orchestrates the pipeline: normalize, compose, invoke, coerce,
// store. Construct one per process and inject it into request handlers.
type Analyzer struct {
	client   *llm.Client
	store    DocumentStore
	ledger   ChatRecorder
	logger   *slog.Logger
	maxChars int
	qaChars  int
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithAnalysisLimit overrides the analysis prompt character ceiling.
func WithAnalysisLimit(n int) AnalyzerOption {
	return func(a *Analyzer) {
		a.maxChars = n
	}
}

// WithQuestionLimit overrides the Q&A grounding character ceiling.
func WithQuestionLimit(n int) AnalyzerOption {
	return func(a *Analyzer) {
		a.qaChars = n
	}
}

// WithAnalyzerLogger sets the logger.
func WithAnalyzerLogger(logger *slog.Logger) AnalyzerOption {
	return func(a *Analyzer) {
		a.logger = logger
	}
}

// NewAnalyzer creates an analyzer backed by the given completion client,
// document store, and chat ledger.
func NewAnalyzer(client *llm.Client, store DocumentStore, ledger ChatRecorder, opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		client:   client,
		store:    store,
		ledger:   ledger,
		logger:   slog.Default(),
		maxChars: DefaultMaxAnalysisChars,
		qaChars:  DefaultMaxQuestionChars,
	}

	for _, opt := range opts {
		opt(a)
	}

	return a
}

// AnalyzeDocument runs the full analysis pipeline on source text. The
// canonical text and its analysis are stored in the registry under a fresh
// document identifier. Transport and service errors propagate; malformed
// completion output does not — it resolves to the fallback analysis.
func (a *Analyzer) AnalyzeDocument(ctx context.Context, source string, opts Options) (*Result, error) {
	text, err := Normalize(source)
	if err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	raw, err := a.complete(ctx, AnalysisMessages(text, opts, a.maxChars))
	if err != nil {
		return nil, fmt.Errorf("analyze document: %w", err)
	}

	result := CoerceAnalysis(raw, a.logger)

	// The registry is only touched after the completion call returns, so no
	// lock is held while awaiting the external service.
	id := a.store.Store(text, opts, result)

	a.logger.Info("Document analyzed",
		"document_id", id,
		"document_type", string(opts.DocumentType),
		"text_chars", len(text))

	return &Result{DocumentID: id, Analysis: result}, nil
}

// AskQuestion answers a follow-up question grounded in a previously analyzed
// document (by identifier) or in freshly supplied text. The exchange is
// appended to the chat ledger on success.
func (a *Analyzer) AskQuestion(ctx context.Context, question, documentID, documentText string) (*Answer, error) {
	q, err := Normalize(question)
	if err != nil {
		return nil, fmt.Errorf("question is required: %w", err)
	}

	text, err := a.resolveContext(documentID, documentText)
	if err != nil {
		return nil, err
	}

	raw, err := a.complete(ctx, QuestionMessages(q, text, a.qaChars))
	if err != nil {
		return nil, fmt.Errorf("answer question: %w", err)
	}

	answer := CoerceAnswer(raw, a.logger)

	a.ledger.Append(ChatRecord{
		Question:         q,
		Answer:           answer.Answer,
		RelevantSections: answer.RelevantSections,
		ConfidenceLevel:  answer.ConfidenceLevel,
		Timestamp:        time.Now().UTC(),
	})

	return answer, nil
}

// resolveContext resolves the text that must ground a question. A document
// identifier is preferred over raw text; raw text is used as-is and never
// stored. An unknown identifier is a hard failure — answering from empty
// context would silently produce ungrounded answers.
func (a *Analyzer) resolveContext(documentID, documentText string) (string, error) {
	if documentID != "" {
		text, err := a.store.GetText(documentID)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrMissingContext, err)
		}
		return text, nil
	}

	if text, err := Normalize(documentText); err == nil {
		return text, nil
	}

	return "", ErrMissingContext
}

// complete invokes the completion client and records latency.
func (a *Analyzer) complete(ctx context.Context, messages []llm.Message) (string, error) {
	temp := completionTemperature

	start := time.Now()
	resp, err := a.client.Complete(ctx, llm.Request{
		Messages:    messages,
		Temperature: &temp,
		MaxTokens:   maxCompletionTokens,
	})
	metrics.CompletionDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// Package server exposes the analysis pipeline over HTTP. The handlers are a
// thin mapping layer: validation and orchestration live in the analysis
// package.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/plainterms/plainterms/analysis"
	"github.com/plainterms/plainterms/ingest"
	"github.com/plainterms/plainterms/llm"
	"github.com/plainterms/plainterms/metrics"
	"github.com/plainterms/plainterms/session"
)

// maxJSONBodySize limits JSON POST bodies to prevent DoS.
const maxJSONBodySize = 1 << 20 // 1 MB

// Server holds the request handlers and their collaborators.
type Server struct {
	analyzer       *analysis.Analyzer
	registry       *session.Registry
	ledger         *session.Ledger
	parsers        *ingest.Registry
	fetcher        *ingest.Fetcher
	logger         *slog.Logger
	maxUploadBytes int64
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithMaxUploadBytes caps uploaded file size.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		s.maxUploadBytes = n
	}
}

// New creates a server around the given pipeline collaborators.
func New(analyzer *analysis.Analyzer, registry *session.Registry, ledger *session.Ledger,
	parsers *ingest.Registry, fetcher *ingest.Fetcher, opts ...Option) *Server {
	s := &Server{
		analyzer:       analyzer,
		registry:       registry,
		ledger:         ledger,
		parsers:        parsers,
		fetcher:        fetcher,
		logger:         slog.Default(),
		maxUploadBytes: 10 << 20,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// RegisterHandlers registers all routes on the given mux:
//
//	POST   /api/analyze-text
//	POST   /api/analyze-document
//	POST   /api/analyze-url
//	POST   /api/ask-question
//	GET    /api/chat-history
//	DELETE /api/chat-history
//	GET    /health
//	GET    /metrics
func (s *Server) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/api/analyze-text", s.instrument("analyze-text", s.handleAnalyzeText))
	mux.HandleFunc("/api/analyze-document", s.instrument("analyze-document", s.handleAnalyzeDocument))
	mux.HandleFunc("/api/analyze-url", s.instrument("analyze-url", s.handleAnalyzeURL))
	mux.HandleFunc("/api/ask-question", s.instrument("ask-question", s.handleAskQuestion))
	mux.HandleFunc("/api/chat-history", s.instrument("chat-history", s.handleChatHistory))
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
}

// statusRecorder captures the response status for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// instrument wraps a handler with a request counter.
func (s *Server) instrument(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
	}
}

// errorResponse is the JSON error body.
type errorResponse struct {
	Error    string `json:"error"`
	Category string `json:"category"`
}

// writeError maps pipeline errors onto HTTP statuses and a remediation
// category: input and context errors are client faults; fatal upstream errors
// mean configuration (typically a bad API key); exhausted transient errors
// mean the service is temporarily unavailable.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, analysis.ErrEmptyDocument):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Category: "input"})
	case errors.Is(err, session.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error(), Category: "context"})
	case errors.Is(err, analysis.ErrMissingContext):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Category: "context"})
	case llm.IsFatal(err):
		s.logger.Error("Completion service rejected the request", "error", err)
		writeJSON(w, http.StatusBadGateway, errorResponse{
			Error:    upstreamDetail(err),
			Category: "configuration",
		})
	default:
		s.logger.Error("Completion service unavailable", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{
			Error:    upstreamDetail(err),
			Category: "upstream",
		})
	}
}

// upstreamDetail renders an actionable message for upstream failures,
// distinguishing a bad API key from rate limiting.
func upstreamDetail(err error) string {
	var svcErr *llm.ServiceError
	if errors.As(err, &svcErr) {
		switch svcErr.Status {
		case http.StatusUnauthorized, http.StatusForbidden:
			return "the completion service rejected the API key; check your credentials"
		case http.StatusTooManyRequests:
			return "the completion service is rate limiting requests; try again shortly"
		default:
			return fmt.Sprintf("the completion service returned status %d", svcErr.Status)
		}
	}
	return "the completion service could not be reached"
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("Failed to encode JSON response", "error", err)
	}
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"documents": s.registry.Len(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

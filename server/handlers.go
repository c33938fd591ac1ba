package server

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/plainterms/plainterms/analysis"
)

// analyzeTextRequest is the request body for POST /api/analyze-text.
type analyzeTextRequest struct {
	Text            string `json:"text"`
	DocumentType    string `json:"document_type"`
	UserRole        string `json:"user_role"`
	ComplexityLevel string `json:"complexity_level"`
}

// analyzeResponse is the response body for all analyze endpoints.
type analyzeResponse struct {
	DocumentID            string   `json:"document_id"`
	Summary               string   `json:"summary"`
	KeyPoints             []string `json:"key_points"`
	RisksAndConcerns      []string `json:"risks_and_concerns"`
	Recommendations       []string `json:"recommendations"`
	SimplifiedExplanation string   `json:"simplified_explanation"`
}

func toAnalyzeResponse(result *analysis.Result) analyzeResponse {
	return analyzeResponse{
		DocumentID:            result.DocumentID,
		Summary:               result.Analysis.Summary,
		KeyPoints:             result.Analysis.KeyPoints,
		RisksAndConcerns:      result.Analysis.RisksAndConcerns,
		Recommendations:       result.Analysis.Recommendations,
		SimplifiedExplanation: result.Analysis.SimplifiedExplanation,
	}
}

func optionsFrom(docType, role, complexity string) analysis.Options {
	return analysis.Options{
		DocumentType:    analysis.DocumentType(docType),
		UserRole:        analysis.UserRole(role),
		ComplexityLevel: analysis.ComplexityLevel(complexity),
	}
}

// handleAnalyzeText analyzes pasted document text.
func (s *Server) handleAnalyzeText(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	var req analyzeTextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body", Category: "input"})
		return
	}

	result, err := s.analyzer.AnalyzeDocument(r.Context(), req.Text,
		optionsFrom(req.DocumentType, req.UserRole, req.ComplexityLevel))
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAnalyzeResponse(result))
}

// handleAnalyzeDocument analyzes an uploaded file. Options arrive as
// multipart form fields alongside the file.
func (s *Server) handleAnalyzeDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid multipart form", Category: "input"})
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "file is required", Category: "input"})
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "could not read file", Category: "input"})
		return
	}

	text, err := s.parsers.ExtractText(header.Filename, header.Header.Get("Content-Type"), content)
	if err != nil {
		s.logger.Warn("Text extraction failed",
			"filename", header.Filename,
			"error", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:    "could not extract text from the document",
			Category: "input",
		})
		return
	}

	result, err := s.analyzer.AnalyzeDocument(r.Context(), text,
		optionsFrom(r.FormValue("document_type"), r.FormValue("user_role"), r.FormValue("complexity_level")))
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAnalyzeResponse(result))
}

// analyzeURLRequest is the request body for POST /api/analyze-url.
type analyzeURLRequest struct {
	URL             string `json:"url"`
	DocumentType    string `json:"document_type"`
	UserRole        string `json:"user_role"`
	ComplexityLevel string `json:"complexity_level"`
}

// handleAnalyzeURL fetches a remote document and analyzes it.
func (s *Server) handleAnalyzeURL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	var req analyzeURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body", Category: "input"})
		return
	}

	text, err := s.fetcher.FetchText(r.Context(), req.URL)
	if err != nil {
		s.logger.Warn("URL fetch failed", "url", req.URL, "error", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error(), Category: "input"})
		return
	}

	result, err := s.analyzer.AnalyzeDocument(r.Context(), text,
		optionsFrom(req.DocumentType, req.UserRole, req.ComplexityLevel))
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAnalyzeResponse(result))
}

// askQuestionRequest is the request body for POST /api/ask-question.
type askQuestionRequest struct {
	Question     string `json:"question"`
	DocumentID   string `json:"document_id"`
	DocumentText string `json:"document_text"`
}

// handleAskQuestion answers a follow-up question grounded in an analyzed
// document or in supplied text.
func (s *Server) handleAskQuestion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	var req askQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body", Category: "input"})
		return
	}

	answer, err := s.analyzer.AskQuestion(r.Context(), req.Question, req.DocumentID, req.DocumentText)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, answer)
}

// handleChatHistory serves the chat ledger: GET lists all records oldest
// first, DELETE clears them.
func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		records := s.ledger.All()
		writeJSON(w, http.StatusOK, map[string]any{
			"history": records,
			"count":   len(records),
		})
	case http.MethodDelete:
		s.ledger.Clear()
		writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

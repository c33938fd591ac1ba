// Package providers implements completion provider adapters.
package providers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/plainterms/plainterms/llm"
)

// GeminiProvider implements the Google Generative Language REST API.
type GeminiProvider struct{}

func init() {
	llm.RegisterProvider(&GeminiProvider{})
}

// Name returns the provider identifier.
func (g *GeminiProvider) Name() string {
	return "gemini"
}

// BuildURL constructs the generateContent endpoint for the given model.
func (g *GeminiProvider) BuildURL(baseURL, model string) string {
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")
	return fmt.Sprintf("%s/models/%s:generateContent", baseURL, model)
}

// SetHeaders adds the Gemini API key header.
func (g *GeminiProvider) SetHeaders(req *http.Request, apiKey string) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey != "" {
		req.Header.Set("x-goog-api-key", apiKey)
	}
}

// geminiRequest is the generateContent request format.
type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	GenerationConfig  geminiGenConfig `json:"generationConfig"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	TopP            float64  `json:"topP"`
	TopK            int      `json:"topK"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
}

// BuildRequestBody creates the generateContent request body. System messages
// become the systemInstruction; everything else is concatenated into user
// content parts.
func (g *GeminiProvider) BuildRequestBody(_ string, messages []llm.Message, temperature *float64, maxTokens int) ([]byte, error) {
	var system *geminiContent
	var contents []geminiContent

	for _, msg := range messages {
		if msg.Role == "system" {
			system = &geminiContent{Parts: []geminiPart{{Text: msg.Content}}}
			continue
		}
		contents = append(contents, geminiContent{
			Role:  "user",
			Parts: []geminiPart{{Text: msg.Content}},
		})
	}

	if len(contents) == 0 {
		return nil, fmt.Errorf("no user content in messages")
	}

	req := geminiRequest{
		Contents:          contents,
		SystemInstruction: system,
		GenerationConfig: geminiGenConfig{
			Temperature:     temperature, // nil = provider default
			TopP:            0.8,
			TopK:            40,
			MaxOutputTokens: maxTokens,
		},
	}

	return json.Marshal(req)
}

// geminiResponse is the generateContent response format.
type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
			Role string `json:"role"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	ModelVersion string `json:"modelVersion"`
}

// ParseResponse extracts content from a generateContent response.
func (g *GeminiProvider) ParseResponse(body []byte, model string) (*llm.Response, error) {
	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse gemini response: %w", err)
	}

	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates in response")
	}

	var content strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		content.WriteString(part.Text)
	}

	usedModel := resp.ModelVersion
	if usedModel == "" {
		usedModel = model
	}

	return &llm.Response{
		Content:      content.String(),
		Model:        usedModel,
		TokensUsed:   resp.UsageMetadata.TotalTokenCount,
		FinishReason: resp.Candidates[0].FinishReason,
	}, nil
}

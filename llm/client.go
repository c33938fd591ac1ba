// Package llm provides a provider-agnostic text-completion client with a
// bounded retry policy. Providers register themselves at init time and are
// selected by name from configuration.
package llm

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"
)

// maxResponseSize limits the completion response body to prevent memory exhaustion.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

// Client sends completion requests to a single configured provider endpoint.
type Client struct {
	endpoint    Endpoint
	httpClient  *http.Client
	retryConfig RetryConfig
	logger      *slog.Logger
}

// Endpoint identifies the provider and model a Client talks to.
type Endpoint struct {
	// Provider is a registered provider name ("gemini", "openai").
	Provider string

	// URL overrides the provider's default base URL when non-empty.
	URL string

	// Model is the model identifier sent to the provider.
	Model string

	// APIKey authenticates the request. Providers fall back to their
	// conventional environment variable when empty.
	APIKey string
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`    // "system" or "user"
	Content string `json:"content"` // Message content
}

// Request defines a completion request.
type Request struct {
	// Messages is the prompt to send.
	Messages []Message

	// Temperature controls randomness. nil uses the provider default.
	Temperature *float64

	// MaxTokens limits response length. 0 uses the provider default.
	MaxTokens int
}

// Response contains the completion result.
type Response struct {
	// Content is the generated text.
	Content string

	// Model is the model that produced the response.
	Model string

	// TokensUsed is the total tokens consumed, when the provider reports it.
	TokensUsed int

	// FinishReason indicates why generation stopped.
	FinishReason string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithRetryConfig sets the retry configuration.
func WithRetryConfig(cfg RetryConfig) ClientOption {
	return func(client *Client) {
		client.retryConfig = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(client *Client) {
		client.logger = logger
	}
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(client *Client) {
		client.httpClient.Timeout = d
	}
}

// NewClient creates a client for the given endpoint.
func NewClient(endpoint Endpoint, opts ...ClientOption) *Client {
	c := &Client{
		endpoint:    endpoint,
		retryConfig: DefaultRetryConfig(),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Complete sends a completion request, retrying transient failures per the
// retry configuration. Fatal errors (auth, bad request) surface immediately so
// a misconfigured API key reaches the caller instead of burning retries.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	if len(req.Messages) == 0 {
		return nil, NewFatalError(fmt.Errorf("at least one message is required"))
	}

	provider := GetProvider(c.endpoint.Provider)
	if provider == nil {
		return nil, NewFatalError(fmt.Errorf("unknown provider: %s", c.endpoint.Provider))
	}

	var lastErr error
	for attempt := 1; attempt <= c.retryConfig.MaxAttempts; attempt++ {
		resp, err := c.doRequest(ctx, provider, req)
		if err == nil {
			return resp, nil
		}

		lastErr = err

		if IsFatal(err) {
			return nil, err
		}

		if attempt < c.retryConfig.MaxAttempts {
			backoff := c.calculateBackoff(attempt)
			c.logger.Debug("Completion request failed, retrying",
				"attempt", attempt,
				"max_attempts", c.retryConfig.MaxAttempts,
				"backoff", backoff,
				"error", err)

			select {
			case <-ctx.Done():
				return nil, NewTransientError(ctx.Err())
			case <-time.After(backoff):
			}
		}
	}

	return nil, fmt.Errorf("all %d attempts failed: %w", c.retryConfig.MaxAttempts, lastErr)
}

// calculateBackoff computes exponential backoff duration with jitter.
// Jitter prevents thundering herd when multiple clients retry simultaneously.
func (c *Client) calculateBackoff(attempt int) time.Duration {
	multiplier := 1.0
	for i := 1; i < attempt; i++ {
		multiplier *= c.retryConfig.BackoffMultiplier
	}

	backoff := time.Duration(float64(c.retryConfig.BackoffBase) * multiplier)
	if backoff > c.retryConfig.MaxBackoff {
		backoff = c.retryConfig.MaxBackoff
	}

	// Add jitter: +/- 25% to prevent synchronized retries
	jitter := float64(backoff) * 0.25 * (rand.Float64()*2 - 1)
	return backoff + time.Duration(jitter)
}

// doRequest executes a single HTTP request to the provider endpoint.
func (c *Client) doRequest(ctx context.Context, provider Provider, req Request) (*Response, error) {
	url := provider.BuildURL(c.endpoint.URL, c.endpoint.Model)

	body, err := provider.BuildRequestBody(c.endpoint.Model, req.Messages, req.Temperature, req.MaxTokens)
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("build request body: %w", err))
	}

	c.logger.Debug("Sending completion request",
		"provider", provider.Name(),
		"model", c.endpoint.Model,
		"messages", len(req.Messages))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("create HTTP request: %w", err))
	}

	httpReq.Header.Set("Content-Type", "application/json")
	provider.SetHeaders(httpReq, c.endpoint.APIKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Network errors are transient
		return nil, NewTransientError(fmt.Errorf("HTTP request failed: %w", err))
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("read response body: %w", err))
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, classifyHTTPError(httpResp.StatusCode, respBody)
	}

	return provider.ParseResponse(respBody, c.endpoint.Model)
}

// classifyHTTPError determines if an HTTP error is transient or fatal.
// The status code is preserved so callers can distinguish a bad API key
// from rate limiting when rendering a remediation message.
func classifyHTTPError(statusCode int, body []byte) error {
	bodyStr := string(body)
	if len(bodyStr) > 200 {
		bodyStr = bodyStr[:200] + "..."
	}

	err := &ServiceError{Status: statusCode, Body: bodyStr}

	switch {
	case statusCode == http.StatusTooManyRequests:
		// Rate limiting is transient
		return NewTransientError(err)
	case statusCode >= 500:
		// Server errors are transient
		return NewTransientError(err)
	case statusCode == http.StatusUnauthorized,
		statusCode == http.StatusForbidden:
		// Auth errors are fatal
		return NewFatalError(err)
	default:
		// Remaining 4xx indicate a caller or configuration problem
		return NewFatalError(err)
	}
}

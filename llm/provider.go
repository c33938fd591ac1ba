package llm

import (
	"net/http"
	"sync"
)

// Provider defines the interface for completion provider implementations.
type Provider interface {
	// Name returns the provider identifier (e.g., "gemini", "openai").
	Name() string

	// BuildURL constructs the full API endpoint URL. baseURL is empty to use
	// the provider default; model is included where the provider's URL scheme
	// requires it.
	BuildURL(baseURL, model string) string

	// SetHeaders adds provider-specific headers to the request. apiKey may be
	// empty, in which case the provider falls back to its conventional
	// environment variable.
	SetHeaders(req *http.Request, apiKey string)

	// BuildRequestBody creates the JSON request body for the provider.
	// temperature is nil to use the provider default.
	BuildRequestBody(model string, messages []Message, temperature *float64, maxTokens int) ([]byte, error)

	// ParseResponse extracts the response from provider-specific JSON.
	ParseResponse(body []byte, model string) (*Response, error)
}

// providerRegistry holds registered providers.
var (
	providerRegistry = make(map[string]Provider)
	providerMu       sync.RWMutex
)

// RegisterProvider adds a provider to the registry.
func RegisterProvider(p Provider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	providerRegistry[p.Name()] = p
}

// GetProvider retrieves a provider by name.
func GetProvider(name string) Provider {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return providerRegistry[name]
}

// ListProviders returns all registered provider names.
func ListProviders() []string {
	providerMu.RLock()
	defer providerMu.RUnlock()

	names := make([]string, 0, len(providerRegistry))
	for name := range providerRegistry {
		names = append(names, name)
	}
	return names
}

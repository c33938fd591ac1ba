// Package config provides configuration loading and management for Plainterms.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete Plainterms configuration.
type Config struct {
	Server Server `yaml:"server"`
	Model  Model  `yaml:"model"`
	Limits Limits `yaml:"limits"`
	Ingest Ingest `yaml:"ingest"`
}

// Server configures the HTTP listener.
type Server struct {
	// Addr is the listen address (default ":8080").
	Addr string `yaml:"addr"`
}

// Model configures the completion service.
type Model struct {
	// Provider is the registered provider name ("gemini" or "openai").
	Provider string `yaml:"provider"`
	// Name is the model identifier (e.g. "gemini-2.0-flash").
	Name string `yaml:"name"`
	// Endpoint overrides the provider's default base URL when non-empty.
	Endpoint string `yaml:"endpoint"`
	// APIKeyEnv names the environment variable holding the API key.
	APIKeyEnv string `yaml:"api_key_env"`
	// Timeout is the maximum time to wait for a completion response.
	Timeout time.Duration `yaml:"timeout"`
	// MaxRetries is how many times a transient failure is retried.
	MaxRetries int `yaml:"max_retries"`
}

// Limits bounds how much document text is sent to the completion service.
type Limits struct {
	// AnalysisChars caps document text in analysis prompts.
	AnalysisChars int `yaml:"analysis_chars"`
	// QuestionChars caps grounding text in Q&A prompts.
	QuestionChars int `yaml:"question_chars"`
}

// Ingest configures document intake.
type Ingest struct {
	// MaxUploadBytes caps uploaded file size.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
	// FetchTimeout bounds remote URL fetches.
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: Server{
			Addr: ":8080",
		},
		Model: Model{
			Provider:   "gemini",
			Name:       "gemini-2.0-flash",
			Endpoint:   "", // Provider default
			APIKeyEnv:  "GEMINI_API_KEY",
			Timeout:    30 * time.Second,
			MaxRetries: 1,
		},
		Limits: Limits{
			AnalysisChars: 8000,
			QuestionChars: 6000,
		},
		Ingest: Ingest{
			MaxUploadBytes: 10 << 20, // 10 MB
			FetchTimeout:   20 * time.Second,
		},
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Model.Provider == "" {
		return fmt.Errorf("model.provider is required")
	}
	if c.Model.Name == "" {
		return fmt.Errorf("model.name is required")
	}
	if c.Model.Timeout <= 0 {
		return fmt.Errorf("model.timeout must be positive")
	}
	if c.Model.MaxRetries < 0 {
		return fmt.Errorf("model.max_retries must not be negative")
	}
	if c.Limits.AnalysisChars <= 0 || c.Limits.QuestionChars <= 0 {
		return fmt.Errorf("limits must be positive")
	}
	return nil
}

// APIKey resolves the configured API key from the environment.
func (c *Config) APIKey() string {
	if c.Model.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.Model.APIKeyEnv)
}

// LoadFromFile loads configuration from a YAML file, applied over defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// Load returns the configuration from path when it exists, defaults
// otherwise.
func Load(path string) (*Config, error) {
	if path == "" {
		return DefaultConfig(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	return LoadFromFile(path)
}

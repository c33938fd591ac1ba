package llm

import "time"

// RetryConfig holds retry configuration for completion requests.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts, including the first.
	MaxAttempts int

	// BackoffBase is the initial backoff duration.
	BackoffBase time.Duration

	// BackoffMultiplier is applied to backoff on each retry.
	BackoffMultiplier float64

	// MaxBackoff caps the maximum backoff duration.
	MaxBackoff time.Duration
}

// DefaultRetryConfig returns the default policy: one retry on transient
// failure, never more. Upstream rate limits surface quickly this way.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:       2,
		BackoffBase:       500 * time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxBackoff:        5 * time.Second,
	}
}

package resilience

import "time"

// FromRetryConfig builds a RetryConfig from the pipeline's flat retry
// settings. Backoff values are in milliseconds; zero or negative values
// fall back to the defaults.
func FromRetryConfig(maxAttempts, initialBackoffMs, maxBackoffMs int, multiplier, jitterFraction float64) RetryConfig {
	return RetryConfig{
		MaxAttempts:    maxAttempts,
		InitialBackoff: time.Duration(initialBackoffMs) * time.Millisecond,
		MaxBackoff:     time.Duration(maxBackoffMs) * time.Millisecond,
		Multiplier:     multiplier,
		JitterFraction: jitterFraction,
	}.withDefaults()
}

// FromCircuitConfig builds a CircuitBreakerConfig from the pipeline's flat
// circuit settings. NewCircuitBreaker fills any unset field.
func FromCircuitConfig(failureThreshold, resetTimeoutSecs int) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: failureThreshold,
		ResetTimeout:     time.Duration(resetTimeoutSecs) * time.Second,
	}
}

package resilience

import "time"

// Config tunes the transport layer shared by the Gemini, Ollama and NATS
// adapters. Section retries with user-visible notices happen above it, so a
// provider call is attempted at most RetryMaxAttempts times per section attempt.
type Config struct {
	// RetryMaxAttempts counts the first call; 1 disables transport retries.
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	// RetryMaxBackoff caps each wait; it is raised to RetryInitialBackoff if lower.
	RetryMaxBackoff time.Duration
	RetryMultiplier float64

	// BreakerEnabled gives every operation name its own breaker. It trips
	// once BreakerMinRequests calls were seen and the failure ratio reaches
	// BreakerFailureRatio, then stays open for BreakerOpenTimeout.
	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32

	// OnStateChange receives breaker transitions as (operation, from, to),
	// e.g. ("gemini.extract", "closed", "open").
	OnStateChange func(operation, from, to string)
}

// DefaultConfig allows two transport attempts with a 200ms initial backoff
// capped at 1s, keeping a flaky provider call inside the provider timeout.
func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:        2,
		RetryInitialBackoff:     200 * time.Millisecond,
		RetryMaxBackoff:         time.Second,
		RetryMultiplier:         2,
		BreakerEnabled:          true,
		BreakerMinRequests:      10,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      30 * time.Second,
		BreakerHalfOpenMaxCalls: 2,
	}
}

func (c Config) normalize() Config {
	def := DefaultConfig()
	out := c
	out.RetryMaxAttempts = orDefault(out.RetryMaxAttempts, def.RetryMaxAttempts)
	out.RetryInitialBackoff = orDefault(out.RetryInitialBackoff, def.RetryInitialBackoff)
	out.RetryMaxBackoff = max(out.RetryMaxBackoff, out.RetryInitialBackoff)
	if out.RetryMultiplier < 1 {
		out.RetryMultiplier = def.RetryMultiplier
	}
	out.BreakerMinRequests = orDefault(out.BreakerMinRequests, def.BreakerMinRequests)
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	out.BreakerOpenTimeout = orDefault(out.BreakerOpenTimeout, def.BreakerOpenTimeout)
	out.BreakerHalfOpenMaxCalls = orDefault(out.BreakerHalfOpenMaxCalls, def.BreakerHalfOpenMaxCalls)
	return out
}

func orDefault[T int | uint32 | time.Duration](v, def T) T {
	if v <= 0 {
		return def
	}
	return v
}

package resilience

import "time"

type Config struct {
	RetryMaxAttempts    int
	RetryInitialBackoff time.Duration
	RetryMaxBackoff     time.Duration
	RetryMultiplier     float64

	BreakerEnabled          bool
	BreakerMinRequests      uint32
	BreakerFailureRatio     float64
	BreakerOpenTimeout      time.Duration
	BreakerHalfOpenMaxCalls uint32
}

// DefaultConfig suits an interactive client: few quick retries and a breaker
// that opens after a handful of failed reads so the user hears about an
// unreachable server fast.
func DefaultConfig() Config {
	return Config{
		RetryMaxAttempts:    3,
		RetryInitialBackoff: 200 * time.Millisecond,
		RetryMaxBackoff:     time.Second,
		RetryMultiplier:     2,

		BreakerEnabled:          true,
		BreakerMinRequests:      5,
		BreakerFailureRatio:     0.6,
		BreakerOpenTimeout:      15 * time.Second,
		BreakerHalfOpenMaxCalls: 1,
	}
}

// normalize replaces unset or out-of-range values with the defaults.
func (c Config) normalize() Config {
	def := DefaultConfig()
	out := c

	orDefault(&out.RetryMaxAttempts, def.RetryMaxAttempts)
	orDefault(&out.RetryInitialBackoff, def.RetryInitialBackoff)
	orDefault(&out.RetryMaxBackoff, def.RetryMaxBackoff)
	orDefault(&out.BreakerMinRequests, def.BreakerMinRequests)
	orDefault(&out.BreakerOpenTimeout, def.BreakerOpenTimeout)
	orDefault(&out.BreakerHalfOpenMaxCalls, def.BreakerHalfOpenMaxCalls)

	out.RetryMaxBackoff = max(out.RetryMaxBackoff, out.RetryInitialBackoff)
	if out.RetryMultiplier < 1 {
		out.RetryMultiplier = def.RetryMultiplier
	}
	if out.BreakerFailureRatio <= 0 || out.BreakerFailureRatio > 1 {
		out.BreakerFailureRatio = def.BreakerFailureRatio
	}
	return out
}

func orDefault[T int | uint32 | time.Duration](v *T, def T) {
	if *v <= 0 {
		*v = def
	}
}

package classification

import (
	"context"
	"time"
)

// RetryConfig tunes RetryPolicy's backoff curve for one external
// classifier call.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Multiplier  float64
	Jitter      float64
}

// DefaultRetryConfig mirrors the external classifier's documented SLA:
// three attempts, doubling backoff from 100ms, capped at 5s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Multiplier:  2.0,
		Jitter:      0.1,
	}
}

// RetryPolicy repeats a classifier call with exponential backoff until it
// succeeds or MaxAttempts is exhausted. It carries no fallback functions
// of its own — classifyByLLM's rule-based fallback is the only fallback
// in this engine, applied once RetryPolicy gives up.
type RetryPolicy struct {
	cfg RetryConfig
}

// NewRetryPolicy builds a RetryPolicy, filling any zero field from
// DefaultRetryConfig.
func NewRetryPolicy(cfg RetryConfig) *RetryPolicy {
	defaults := DefaultRetryConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaults.BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = defaults.MaxDelay
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = defaults.Multiplier
	}
	if cfg.Jitter < 0 {
		cfg.Jitter = defaults.Jitter
	}
	return &RetryPolicy{cfg: cfg}
}

// MaxAttempts reports the policy's configured attempt ceiling.
func (p *RetryPolicy) MaxAttempts() int {
	return p.cfg.MaxAttempts
}

// Run calls fn up to MaxAttempts times, waiting an exponentially growing,
// jittered delay between attempts, and returns the last result once fn
// succeeds or attempts are exhausted.
func (p *RetryPolicy) Run(ctx context.Context, fn func(ctx context.Context) (LLMResult, error)) (LLMResult, error) {
	var lastErr error
	for attempt := 0; attempt < p.cfg.MaxAttempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if attempt < p.cfg.MaxAttempts-1 {
			select {
			case <-ctx.Done():
				return LLMResult{}, ctx.Err()
			case <-time.After(p.delay(attempt)):
			}
		}
	}
	return LLMResult{}, lastErr
}

func (p *RetryPolicy) delay(attempt int) time.Duration {
	delay := float64(p.cfg.BaseDelay) * pow(p.cfg.Multiplier, float64(attempt))
	if delay > float64(p.cfg.MaxDelay) {
		delay = float64(p.cfg.MaxDelay)
	}

	jitterRange := delay * p.cfg.Jitter
	if jitterRange > 0 {
		jitter := float64(time.Now().UnixNano() % int64(2*jitterRange+1))
		delay = delay - jitterRange + jitter
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

func pow(base, exp float64) float64 {
	result := 1.0
	expInt := int(exp)
	for expInt > 0 {
		if expInt%2 == 1 {
			result *= base
		}
		base *= base
		expInt /= 2
	}
	return result
}

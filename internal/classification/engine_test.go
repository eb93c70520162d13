package classification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxpoynt/connector-framework/internal/classification/cache"
	"github.com/taxpoynt/connector-framework/internal/classification/usage"
	"github.com/taxpoynt/connector-framework/internal/domain/transaction"
)

type stubLLM struct {
	result LLMResult
	err    error
	calls  int
}

func (s *stubLLM) Classify(ctx context.Context, tier Tier, anonymizedNarration string, req Request) (LLMResult, error) {
	s.calls++
	return s.result, s.err
}

func highComplexityRequest() Request {
	return Request{
		RequestID: "req-1",
		Transaction: transaction.Transaction{
			Amount:    2_000_000,
			Narration: "x y",
			Timestamp: time.Date(2024, 3, 18, 10, 0, 0, 0, time.UTC),
		},
		User: UserContext{
			UserID:             "u1",
			Industry:           "General",
			PreviousClassCount: 0,
			SubscriptionTier:   SubscriptionScale,
		},
		Strategy: StrategyAccuracyFirst,
	}
}

func TestClassifyRuleTierNeverCallsLLM(t *testing.T) {
	llm := &stubLLM{}
	engine := &Engine{LLM: llm, Usage: usage.NewTracker(0)}

	req := Request{
		RequestID: "req-rule",
		Transaction: transaction.Transaction{
			Amount:    250_000,
			Narration: "Salary payment - January 2024",
			Timestamp: time.Date(2024, 1, 16, 10, 0, 0, 0, time.UTC),
		},
		User:     UserContext{SubscriptionTier: SubscriptionStarter},
		Strategy: StrategyBalanced,
	}

	result := engine.Classify(context.Background(), req)

	assert.Equal(t, TierRule, result.Tier)
	assert.Equal(t, 0, llm.calls)
	assert.Equal(t, 0.0, result.CostNGN)
}

func TestClassifyLLMTierPopulatesResultAndCachesIt(t *testing.T) {
	llm := &stubLLM{result: LLMResult{
		IsBusinessIncome: true,
		Confidence:       0.86,
		TaxCategory:      transaction.TaxStandardRate,
		VATApplicable:    true,
		TokensUsed:       120,
	}}
	mgr := cache.NewManager(cache.DefaultConfigValues(), nil, nil)
	engine := &Engine{LLM: llm, Cache: mgr, Usage: usage.NewTracker(0)}

	req := highComplexityRequest()
	result := engine.Classify(context.Background(), req)

	require.Equal(t, 1, llm.calls)
	assert.True(t, result.IsBusinessIncome)
	assert.InDelta(t, 0.86, result.Confidence, 0.001)
	assert.Greater(t, result.CostNGN, 0.0)

	// A second identical-bucket request should hit cache and skip the LLM.
	req2 := highComplexityRequest()
	req2.RequestID = "req-2"
	result2 := engine.Classify(context.Background(), req2)

	assert.Equal(t, 1, llm.calls, "second call should be served from cache")
	assert.True(t, result2.CacheHit)
	assert.Equal(t, 0.0, result2.CostNGN)
}

func TestClassifyFallsBackToRuleOnLLMError(t *testing.T) {
	llm := &stubLLM{err: errors.New("upstream unavailable")}
	engine := &Engine{LLM: llm, Usage: usage.NewTracker(0)}

	req := highComplexityRequest()
	result := engine.Classify(context.Background(), req)

	assert.True(t, result.FallbackUsed)
	assert.Equal(t, 0.0, result.CostNGN)
}

func TestClassifyLowConfidenceRequiresReview(t *testing.T) {
	llm := &stubLLM{result: LLMResult{IsBusinessIncome: true, Confidence: 0.3}}
	engine := &Engine{LLM: llm, ReviewThreshold: 0.6, Usage: usage.NewTracker(0)}

	result := engine.Classify(context.Background(), highComplexityRequest())
	assert.True(t, result.RequiresReview)
}

func TestClassifyRecordsUsageEvent(t *testing.T) {
	llm := &stubLLM{result: LLMResult{IsBusinessIncome: true, Confidence: 0.9}}
	tracker := usage.NewTracker(0)
	engine := &Engine{LLM: llm, Usage: tracker}

	engine.Classify(context.Background(), highComplexityRequest())

	events := tracker.Events()
	require.NotEmpty(t, events)
	found := false
	for _, e := range events {
		if e.Type == usage.EventClassification {
			found = true
		}
	}
	assert.True(t, found)
}

// flakyLLM fails the first failUntil calls, then succeeds.
type flakyLLM struct {
	failUntil int
	calls     int
	result    LLMResult
}

func (s *flakyLLM) Classify(ctx context.Context, tier Tier, anonymizedNarration string, req Request) (LLMResult, error) {
	s.calls++
	if s.calls <= s.failUntil {
		return LLMResult{}, errors.New("transient upstream error")
	}
	return s.result, nil
}

func fastRetryPolicy() *RetryPolicy {
	return NewRetryPolicy(RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
		Multiplier:  1.5,
		Jitter:      0,
	})
}

func TestClassifyRetriesTransientLLMFailureBeforeFallback(t *testing.T) {
	llm := &flakyLLM{failUntil: 1, result: LLMResult{IsBusinessIncome: true, Confidence: 0.9}}
	engine := &Engine{LLM: llm, Retry: fastRetryPolicy(), Usage: usage.NewTracker(0)}

	result := engine.Classify(context.Background(), highComplexityRequest())

	assert.False(t, result.FallbackUsed)
	assert.True(t, result.IsBusinessIncome)
	assert.Equal(t, 2, llm.calls)
}

func TestClassifyFallsBackToRuleAfterExhaustingRetries(t *testing.T) {
	llm := &flakyLLM{failUntil: 10, result: LLMResult{IsBusinessIncome: true, Confidence: 0.9}}
	engine := &Engine{LLM: llm, Retry: fastRetryPolicy(), Usage: usage.NewTracker(0)}

	result := engine.Classify(context.Background(), highComplexityRequest())

	assert.True(t, result.FallbackUsed)
	assert.Equal(t, 3, llm.calls)
}

func TestClassifyBreakerTripsToFallbackAfterSustainedFailures(t *testing.T) {
	llm := &stubLLM{err: errors.New("provider down")}
	breaker := NewProviderBreaker(ProviderBreakerConfig{MaxFailures: 2, Timeout: time.Minute})
	engine := &Engine{LLM: llm, Breaker: breaker, Usage: usage.NewTracker(0)}

	for i := 0; i < 2; i++ {
		result := engine.Classify(context.Background(), highComplexityRequest())
		assert.True(t, result.FallbackUsed)
	}
	assert.Equal(t, ProviderStateOpen, breaker.State())

	callsBeforeTrip := llm.calls
	result := engine.Classify(context.Background(), highComplexityRequest())
	assert.True(t, result.FallbackUsed)
	assert.Equal(t, callsBeforeTrip, llm.calls, "breaker should short-circuit without calling the LLM again")
}

func TestUpdateFeedbackDelegatesToCache(t *testing.T) {
	mgr := cache.NewManager(cache.DefaultConfigValues(), nil, nil)
	tracker := usage.NewTracker(0)
	engine := &Engine{Cache: mgr, Usage: tracker}

	ok := engine.UpdateFeedback(context.Background(), "unknown-request", true)
	assert.False(t, ok)

	events := tracker.Events()
	require.Len(t, events, 1)
	assert.Equal(t, usage.EventFeedback, events[0].Type)
}

package classification

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/taxpoynt/connector-framework/internal/apperrors"
	"github.com/taxpoynt/connector-framework/internal/classification/cache"
	"github.com/taxpoynt/connector-framework/internal/classification/costoptimizer"
	"github.com/taxpoynt/connector-framework/internal/classification/privacy"
	"github.com/taxpoynt/connector-framework/internal/classification/rulefallback"
	"github.com/taxpoynt/connector-framework/internal/classification/usage"
	"github.com/taxpoynt/connector-framework/internal/domain/transaction"
)

// LLMResult is what an external LLM classifier returns for one anonymized
// transaction.
type LLMResult struct {
	IsBusinessIncome bool
	Confidence       float64
	TaxCategory      transaction.TaxCategory
	VATApplicable    bool
	Reasoning        string
	TokensUsed       int
}

// LLMClassifier is the external classification provider the engine calls
// for every tier above Rule. Implementations own their own HTTP transport,
// retries, and per-tier model selection; the engine only needs a result or
// an error.
type LLMClassifier interface {
	Classify(ctx context.Context, tier Tier, anonymizedNarration string, req Request) (LLMResult, error)
}

// DefaultReviewThreshold is the confidence floor below which a result is
// flagged requires_review when Engine.ReviewThreshold is unset.
const DefaultReviewThreshold = 0.6

// Engine ties the cost optimizer, rule fallback, cache, privacy redactor,
// and usage tracker into the full classification flow described by §4.8.
type Engine struct {
	LLM             LLMClassifier
	Cache           *cache.Manager
	Usage           *usage.Tracker
	ReviewThreshold float64
	Log             logrus.FieldLogger

	// Retry, when set, wraps the LLM call with retry/backoff before the
	// engine gives up and drops to the rule fallback. Nil means call the
	// classifier once, matching the engine's original direct-call behavior.
	Retry *RetryPolicy

	// Breaker, when set, trips after sustained LLM failures and short-
	// circuits straight to the rule fallback instead of retrying a
	// provider that's already down. Distinct from the connector-protocol
	// breaker: this one's failure domain is the external classifier, not
	// any single connector's transport.
	Breaker *ProviderBreaker
}

// Classify runs req through tier selection, the rule evaluator or cache-
// backed LLM path, validation, caching, and usage tracking, in that order.
func (e *Engine) Classify(ctx context.Context, req Request) Result {
	start := time.Now()
	tier := costoptimizer.SelectTier(req)

	var result Result
	if tier == TierRule {
		result = e.classifyByRule(req)
	} else {
		result = e.classifyByLLM(ctx, req, tier)
	}

	result.ProcessingMS = time.Since(start).Milliseconds()
	result.ClassifiedAt = time.Now()

	e.recordUsage(req, result)
	return result
}

func (e *Engine) classifyByRule(req Request) Result {
	outcome := rulefallback.Evaluate(req.Transaction, req.User)
	return Result{
		RequestID:        req.RequestID,
		IsBusinessIncome: outcome.IsBusinessIncome,
		Confidence:       outcome.Confidence,
		TaxCategory:      deriveTaxCategory(outcome.IsBusinessIncome),
		VATApplicable:    outcome.IsBusinessIncome,
		Reasoning:        "rule-based classification: no LLM call for the Rule tier",
		RequiresReview:   outcome.Confidence < e.reviewThreshold(),
		Tier:             TierRule,
		CostNGN:          0,
	}
}

func (e *Engine) classifyByLLM(ctx context.Context, req Request, tier Tier) Result {
	if e.Cache != nil {
		if cached, hit := e.Cache.Get(ctx, req); hit {
			e.emitEvent(usage.Event{Type: usage.EventCacheHit, RequestID: req.RequestID, UserID: req.User.UserID, OrgID: req.User.OrgID})
			return cached
		}
		e.emitEvent(usage.Event{Type: usage.EventCacheMiss, RequestID: req.RequestID, UserID: req.User.UserID, OrgID: req.User.OrgID})
	}

	result, err := e.callLLM(ctx, req, tier)
	if err != nil {
		if e.Log != nil {
			e.Log.WithError(err).WithField("request_id", req.RequestID).Warn("classification falling back to rule evaluator")
		}
		result = e.classifyByRule(req)
		result.FallbackUsed = true
		result.Tier = tier
		e.emitEvent(usage.Event{Type: usage.EventRuleFallback, RequestID: req.RequestID, UserID: req.User.UserID, OrgID: req.User.OrgID,
			Metadata: map[string]interface{}{"reason": err.Error()}})
		return result
	}

	if e.Cache != nil {
		e.Cache.Store(ctx, req, result)
	}
	return result
}

func (e *Engine) callLLM(ctx context.Context, req Request, tier Tier) (Result, error) {
	anonymized := privacy.Redact(req.Transaction.Narration, req.Privacy)
	if validation := privacy.Validate(anonymized); !validation.IsValid {
		return Result{}, apperrors.Privacy("residual PII detected in anonymized narration").
			WithDetail("findings", validation.Findings)
	}

	llmResult, err := e.classifyWithRetry(ctx, tier, anonymized, req)
	if err != nil {
		return Result{}, apperrors.Classification("external classifier call failed", err)
	}

	return Result{
		RequestID:        req.RequestID,
		IsBusinessIncome: llmResult.IsBusinessIncome,
		Confidence:       llmResult.Confidence,
		TaxCategory:      llmResult.TaxCategory,
		VATApplicable:    llmResult.VATApplicable,
		Reasoning:        llmResult.Reasoning,
		RequiresReview:   llmResult.Confidence < e.reviewThreshold(),
		Tier:             tier,
		CostNGN:          costoptimizer.EstimatedCost(tier),
		TokensUsed:       llmResult.TokensUsed,
	}, nil
}

// classifyWithRetry calls the external classifier directly when no Retry
// handler is configured, or runs it through the handler's backoff loop
// (with no fallback functions of its own — the engine's own rule-based
// path is the fallback, applied one level up in classifyByLLM). When a
// Breaker is also configured, the whole retry sequence runs inside it, so
// a provider already tripped open fails fast instead of spending its
// retry budget on a call that won't succeed.
func (e *Engine) classifyWithRetry(ctx context.Context, tier Tier, anonymized string, req Request) (LLMResult, error) {
	runWithRetry := func() (LLMResult, error) {
		if e.Retry == nil {
			return e.LLM.Classify(ctx, tier, anonymized, req)
		}
		return e.Retry.Run(ctx, func(ctx context.Context) (LLMResult, error) {
			return e.LLM.Classify(ctx, tier, anonymized, req)
		})
	}

	if e.Breaker == nil {
		return runWithRetry()
	}

	var llmResult LLMResult
	err := e.Breaker.Execute(func() error {
		r, err := runWithRetry()
		llmResult = r
		return err
	})
	return llmResult, err
}

func (e *Engine) reviewThreshold() float64 {
	if e.ReviewThreshold > 0 {
		return e.ReviewThreshold
	}
	return DefaultReviewThreshold
}

func (e *Engine) recordUsage(req Request, result Result) {
	if e.Usage == nil {
		return
	}
	e.emitEvent(usage.Event{
		Type:             usage.EventClassification,
		UserID:           req.User.UserID,
		OrgID:            req.User.OrgID,
		RequestID:        req.RequestID,
		Tier:             result.Tier,
		Confidence:       result.Confidence,
		IsBusinessIncome: result.IsBusinessIncome,
		CostNGN:          result.CostNGN,
		TokensUsed:       result.TokensUsed,
		ProcessingMS:     result.ProcessingMS,
		CacheHit:         result.CacheHit,
	})
}

func (e *Engine) emitEvent(event usage.Event) {
	if e.Usage == nil {
		return
	}
	e.Usage.Record(event)
}

// UpdateFeedback relays user feedback to the cache so the affected entry's
// accuracy can be recomputed and, if it has fallen below threshold, evicted.
func (e *Engine) UpdateFeedback(ctx context.Context, requestID string, wasCorrect bool) bool {
	evicted := false
	if e.Cache != nil {
		evicted = e.Cache.UpdateFeedback(ctx, requestID, wasCorrect)
	}
	e.emitEvent(usage.Event{
		Type:      usage.EventFeedback,
		RequestID: requestID,
		Metadata:  map[string]interface{}{"was_correct": wasCorrect},
	})
	return evicted
}

// deriveTaxCategory applies the Nigerian VAT default: classified business
// income is standard-rated, everything else (personal income, transfers)
// is exempt. The rule and fallback paths have no finer-grained signal than
// business/personal, unlike an LLM call which can return zero-rated goods
// explicitly.
func deriveTaxCategory(isBusinessIncome bool) transaction.TaxCategory {
	if isBusinessIncome {
		return transaction.TaxStandardRate
	}
	return transaction.TaxExempt
}

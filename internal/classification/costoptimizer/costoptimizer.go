// Package costoptimizer computes a transaction's classification
// complexity score and maps it to an execution tier under a configurable
// cost/accuracy strategy.
package costoptimizer

import (
	"strings"

	"github.com/taxpoynt/connector-framework/internal/classification"
)

// TierCostNGN is the estimated external-LLM cost of one classification at
// each tier.
var TierCostNGN = map[classification.Tier]float64{
	classification.TierRule:     0,
	classification.TierLite:     0.8,
	classification.TierPremium:  3.2,
	classification.TierAdvanced: 48.0,
}

// subscriptionCeiling is the highest Tier a subscription may draw,
// regardless of what the strategy would otherwise select.
var subscriptionCeiling = map[classification.SubscriptionTier]classification.Tier{
	classification.SubscriptionStarter:      classification.TierRule,
	classification.SubscriptionProfessional: classification.TierPremium,
	classification.SubscriptionEnterprise:   classification.TierPremium,
	classification.SubscriptionScale:        classification.TierAdvanced,
}

var tierRank = map[classification.Tier]int{
	classification.TierRule:     0,
	classification.TierLite:     1,
	classification.TierPremium:  2,
	classification.TierAdvanced: 3,
}

// thresholds maps a strategy to its (rule, lite, premium) complexity
// cutoffs: scores below the first cutoff select Rule, below the second
// select Lite, below the third select Premium, otherwise the
// subscription's ceiling tier.
type thresholds struct {
	rule, lite, premium float64
}

var strategyThresholds = map[classification.Strategy]thresholds{
	classification.StrategyBalanced:      {rule: 0.2, lite: 0.5, premium: 0.8},
	classification.StrategyAggressive:    {rule: 0.35, lite: 0.65, premium: 0.9},
	classification.StrategyAccuracyFirst: {rule: 0.1, lite: 0.3, premium: 0.6},
	classification.StrategyEnterprise:    {rule: 0.05, lite: 0.15, premium: 0.4},
}

// ComplexityScore scores req in [0,1] per the published weighting: a
// narration signal, a brevity signal, two amount signals, a history
// signal, an industry signal, and a missing-time signal, all normalized
// around a 0.5 baseline.
func ComplexityScore(req classification.Request) float64 {
	score := 0.0
	narration := strings.ToLower(req.Transaction.Narration)

	if classification.ContainsAny(narration, classification.StrongPersonalKeywords) {
		score -= 0.3
	}
	if classification.ContainsAny(narration, classification.StrongBusinessKeywords) {
		score += 0.2
	}
	if len(strings.Fields(req.Transaction.Narration)) <= 3 {
		score += 0.3
	}
	if req.Transaction.Amount > 1_000_000 {
		score += 0.2
	}
	if req.Transaction.Amount < 5_000 {
		score += 0.1
	}
	if req.User.PreviousClassCount < 10 {
		score += 0.2
	}
	if strings.EqualFold(req.User.Industry, "General") {
		score += 0.1
	}
	if req.Transaction.Timestamp.IsZero() {
		score += 0.1
	}

	return clamp(score+0.5, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SelectTier maps req's complexity score to a Tier under req.Strategy,
// clamped to the user's subscription ceiling.
func SelectTier(req classification.Request) classification.Tier {
	strategy := req.Strategy
	if strategy == "" {
		strategy = classification.StrategyBalanced
	}
	t, ok := strategyThresholds[strategy]
	if !ok {
		t = strategyThresholds[classification.StrategyBalanced]
	}

	score := ComplexityScore(req)
	ceiling := subscriptionCeiling[req.User.SubscriptionTier]
	if ceiling == "" {
		ceiling = classification.TierPremium
	}

	// Enterprise strategy defaults to Premium-or-better processing; the
	// only way down to Rule is the floor complexity score this formula can
	// produce (0.2 — a strong personal-keyword narration with no other
	// contributor) from a user whose correction history has earned a
	// trust level above 0.9.
	if strategy == classification.StrategyEnterprise {
		if score <= 0.2 && req.User.TrustLevel > 0.9 {
			return classification.TierRule
		}
		if tierRank[classification.TierPremium] > tierRank[ceiling] {
			return ceiling
		}
		return classification.TierPremium
	}

	var selected classification.Tier
	switch {
	case score < t.rule:
		selected = classification.TierRule
	case score < t.lite:
		selected = classification.TierLite
	case score < t.premium:
		selected = classification.TierPremium
	default:
		selected = ceiling
	}

	if tierRank[selected] > tierRank[ceiling] {
		return ceiling
	}
	return selected
}

// EstimatedCost returns the published per-call cost of tier in NGN.
func EstimatedCost(tier classification.Tier) float64 {
	return TierCostNGN[tier]
}

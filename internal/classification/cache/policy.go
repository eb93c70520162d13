package cache

import "github.com/taxpoynt/connector-framework/internal/classification"

// riskFactorCount counts the result-level warning signs a store-policy
// decision weighs: a result sent for manual review, and a result that only
// reached its conclusion via the rule-based fallback rather than the
// originally selected tier. Spec names "risk factors" without enumerating
// them; these two are the signals the classification Result actually
// carries.
func riskFactorCount(result classification.Result) int {
	count := 0
	if result.RequiresReview {
		count++
	}
	if result.FallbackUsed {
		count++
	}
	return count
}

// ShouldStore reports whether result qualifies for caching under strategy.
//
// The optimizer's Strategy enum (Aggressive/Balanced/AccuracyFirst/
// Enterprise, §4.8.1) and the cache's store-policy names (Conservative/
// Balanced/Aggressive, §4.8.3) don't share a vocabulary: the same
// "strategy" knob a user sets drives both the cost/accuracy tradeoff and
// how cautiously results are cached. AccuracyFirst and Enterprise, being
// the two accuracy-favoring optimizer strategies, map to the cache's most
// cautious policy, Conservative; Aggressive and Balanced map onto
// themselves.
func ShouldStore(strategy classification.Strategy, result classification.Result) bool {
	risk := riskFactorCount(result)
	switch strategy {
	case classification.StrategyAggressive:
		return result.Confidence >= 0.3
	case classification.StrategyAccuracyFirst, classification.StrategyEnterprise:
		return result.Confidence >= 0.8 && !result.RequiresReview && risk == 0
	default: // Balanced, and unset
		return result.Confidence >= 0.6 && risk <= 1
	}
}

package costoptimizer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/taxpoynt/connector-framework/internal/classification"
	"github.com/taxpoynt/connector-framework/internal/domain/transaction"
)

func baseRequest() classification.Request {
	return classification.Request{
		Transaction: transaction.Transaction{
			Amount:    50_000,
			Narration: "Payment for goods supplied",
			Timestamp: time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC),
		},
		User: classification.UserContext{
			Industry:           "Trading",
			PreviousClassCount: 50,
			SubscriptionTier:   classification.SubscriptionProfessional,
		},
		Strategy: classification.StrategyBalanced,
	}
}

func TestComplexityScoreWithinBounds(t *testing.T) {
	req := baseRequest()
	score := ComplexityScore(req)
	assert.GreaterOrEqual(t, score, 0.0)
	assert.LessOrEqual(t, score, 1.0)
}

func TestComplexityScorePersonalKeywordLowersScore(t *testing.T) {
	req := baseRequest()
	req.Transaction.Narration = "salary payment"
	personal := ComplexityScore(req)

	req2 := baseRequest()
	business := ComplexityScore(req2)

	assert.Less(t, personal, business)
}

func TestSelectTierClampsToSubscriptionCeiling(t *testing.T) {
	req := baseRequest()
	req.Transaction.Amount = 2_000_000 // pushes complexity high
	req.Transaction.Narration = "x y"
	req.User.PreviousClassCount = 0
	req.User.SubscriptionTier = classification.SubscriptionStarter

	tier := SelectTier(req)
	assert.Equal(t, classification.TierRule, tier)
}

func TestSelectTierLowestComplexityIsAtMostLite(t *testing.T) {
	// The strong-personal-keyword penalty (-0.3) is the only negative
	// contributor, so the floor complexity score sits at the Balanced
	// Rule/Lite boundary (~0.2); either side of that boundary is correct
	// depending on floating-point rounding, but it must never escalate
	// past Lite.
	req := baseRequest()
	req.Transaction.Narration = "salary payment for march to staff member"
	req.Transaction.Amount = 250_000
	req.User.PreviousClassCount = 50
	req.User.Industry = "Trading"

	assert.InDelta(t, 0.2, ComplexityScore(req), 0.001)
	tier := SelectTier(req)
	assert.Contains(t, []classification.Tier{classification.TierRule, classification.TierLite}, tier)
}

func TestSelectTierHighComplexityUsesAccuracyFirst(t *testing.T) {
	req := baseRequest()
	req.Strategy = classification.StrategyAccuracyFirst
	req.Transaction.Amount = 2_000_000
	req.Transaction.Narration = "x y"
	req.User.PreviousClassCount = 0
	req.User.Industry = "General"
	req.User.SubscriptionTier = classification.SubscriptionScale

	tier := SelectTier(req)
	assert.Equal(t, classification.TierAdvanced, tier)
}

func TestSelectTierEnterpriseDefaultsToPremiumOrBetter(t *testing.T) {
	req := baseRequest()
	req.Strategy = classification.StrategyEnterprise
	req.User.SubscriptionTier = classification.SubscriptionScale

	tier := SelectTier(req)
	assert.Equal(t, classification.TierPremium, tier)
}

func TestSelectTierEnterpriseTrustedUserRoutesToRule(t *testing.T) {
	req := baseRequest()
	req.Strategy = classification.StrategyEnterprise
	req.Transaction.Narration = "salary payment for march to staff member"
	req.Transaction.Amount = 250_000
	req.User.TrustLevel = 0.95

	assert.InDelta(t, 0.2, ComplexityScore(req), 0.001)
	tier := SelectTier(req)
	assert.Equal(t, classification.TierRule, tier)
}

func TestSelectTierEnterpriseUntrustedUserStaysAtPremium(t *testing.T) {
	req := baseRequest()
	req.Strategy = classification.StrategyEnterprise
	req.Transaction.Narration = "salary payment for march to staff member"
	req.Transaction.Amount = 250_000
	req.User.TrustLevel = 0.5

	tier := SelectTier(req)
	assert.Equal(t, classification.TierPremium, tier)
}

func TestEstimatedCostMatchesPublishedTable(t *testing.T) {
	assert.Equal(t, 0.0, EstimatedCost(classification.TierRule))
	assert.Equal(t, 0.8, EstimatedCost(classification.TierLite))
	assert.Equal(t, 3.2, EstimatedCost(classification.TierPremium))
	assert.Equal(t, 48.0, EstimatedCost(classification.TierAdvanced))
}

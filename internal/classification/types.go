// Package classification implements the Nigerian-business-pattern
// transaction classification engine: tiered cost/accuracy tradeoffs,
// privacy-preserving anonymization, rule-based fallback, and two-level
// caching over an external LLM classifier.
package classification

import (
	"time"

	"github.com/taxpoynt/connector-framework/internal/domain/transaction"
)

// Tier is a classifier execution path, trading cost for accuracy.
type Tier string

const (
	TierRule     Tier = "Rule"
	TierLite     Tier = "Lite"
	TierPremium  Tier = "Premium"
	TierAdvanced Tier = "Advanced"
)

// SubscriptionTier bounds the highest classification Tier a user may draw.
type SubscriptionTier string

const (
	SubscriptionStarter      SubscriptionTier = "Starter"
	SubscriptionProfessional SubscriptionTier = "Professional"
	SubscriptionEnterprise   SubscriptionTier = "Enterprise"
	SubscriptionScale        SubscriptionTier = "Scale"
)

// Strategy is an optimizer policy mapping complexity score to Tier.
type Strategy string

const (
	StrategyAggressive    Strategy = "Aggressive"
	StrategyBalanced      Strategy = "Balanced"
	StrategyAccuracyFirst Strategy = "AccuracyFirst"
	StrategyEnterprise    Strategy = "Enterprise"
)

// PrivacyLevel controls how aggressively narration is anonymized before
// being sent to an external LLM.
type PrivacyLevel string

const (
	PrivacyStandard PrivacyLevel = "Standard"
	PrivacyHigh     PrivacyLevel = "High"
	PrivacyMaximum  PrivacyLevel = "Maximum"
)

// UserContext carries the subscriber and history facts the cost optimizer
// and rule fallback both need.
type UserContext struct {
	UserID              string
	OrgID               string
	SubscriptionTier    SubscriptionTier
	Industry            string
	PreviousClassCount  int
	PreviousBusinessPct float64
	SameSenderTotal     int
	SameSenderBusiness  int

	// BusinessSize is one of "sme", "enterprise", "large"; empty defaults
	// to "sme" wherever it feeds the business-context cache hash.
	BusinessSize string
	// State is the Nigerian state the business operates from, e.g. "Lagos".
	State string
	// YearsInOperation is how long the business has been trading.
	YearsInOperation int
	// TrustLevel in [0,1] reflects accumulated correction history; a
	// highly trusted Enterprise-strategy user can route to the Rule tier
	// at a complexity score that would otherwise require Premium.
	TrustLevel float64
}

// EffectiveBusinessSize returns u.BusinessSize, defaulting to "sme" when
// unset, matching the classifier's default business-size assumption.
func (u UserContext) EffectiveBusinessSize() string {
	if u.BusinessSize == "" {
		return "sme"
	}
	return u.BusinessSize
}

// Request is one classification request.
type Request struct {
	RequestID   string
	Transaction transaction.Transaction
	User        UserContext
	Strategy    Strategy
	Privacy     PrivacyLevel
}

// Result is the outcome of classifying one Request.
type Result struct {
	RequestID        string
	IsBusinessIncome bool
	Confidence       float64
	TaxCategory      transaction.TaxCategory
	VATApplicable    bool
	Reasoning        string
	RequiresReview   bool
	Tier             Tier
	CacheHit         bool
	FallbackUsed     bool
	CostNGN          float64
	TokensUsed       int
	ProcessingMS     int64
	ClassifiedAt     time.Time
}

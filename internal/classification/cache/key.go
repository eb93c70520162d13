package cache

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/taxpoynt/connector-framework/internal/classification"
)

// Amount category buckets, by transaction size in NGN.
const (
	AmountVerySmall = "very_small"
	AmountSmall     = "small"
	AmountMedium    = "medium"
	AmountLarge     = "large"
	AmountVeryLarge = "very_large"
)

// Narration pattern buckets.
const (
	NarrationBusiness = "business"
	NarrationPersonal = "personal"
	NarrationShort    = "short"
	NarrationNeutral  = "neutral"
)

// Time-of-day buckets.
const (
	TimeBusinessHours = "business_hours"
	TimeEvening       = "evening"
	TimeOffHours      = "off_hours"
	TimeUnknown       = "unknown"
)

// Day-of-week buckets.
const (
	DayWeekday  = "weekday"
	DaySaturday = "saturday"
	DaySunday   = "sunday"
)

// Key is the deterministic cache-key shape derived from a classification
// request: two requests that fall into the same buckets on every axis
// produce an identical Key, and therefore hit the same cache entry.
type Key struct {
	AmountCategory     string
	NarrationPattern   string
	TimeCategory       string
	DayCategory        string
	BusinessContextHash string
	PrivacyLevel       string
}

// String renders Key in the persisted distributed-cache key shape:
// tx_class:<amount_cat>:<narr_pat>:<time_cat>:<day_cat>:<biz_hash>:<privacy_level>.
func (k Key) String() string {
	return fmt.Sprintf("tx_class:%s:%s:%s:%s:%s:%s",
		k.AmountCategory, k.NarrationPattern, k.TimeCategory, k.DayCategory,
		k.BusinessContextHash, k.PrivacyLevel)
}

// DeriveKey computes the deterministic cache key for req.
func DeriveKey(req classification.Request) Key {
	return Key{
		AmountCategory:      amountCategory(req.Transaction.Amount),
		NarrationPattern:    narrationPattern(req.Transaction.Narration),
		TimeCategory:        timeCategory(req.Transaction.Timestamp),
		DayCategory:         dayCategory(req.Transaction.Timestamp),
		BusinessContextHash: businessContextHash(req),
		PrivacyLevel:        string(req.Privacy),
	}
}

func amountCategory(amount float64) string {
	switch {
	case amount < 5_000:
		return AmountVerySmall
	case amount < 25_000:
		return AmountSmall
	case amount < 100_000:
		return AmountMedium
	case amount < 500_000:
		return AmountLarge
	default:
		return AmountVeryLarge
	}
}

func narrationPattern(narration string) string {
	lower := strings.ToLower(narration)
	if classification.ContainsAny(lower, classification.StrongPersonalKeywords) ||
		classification.ContainsAny(lower, classification.ModeratePersonalKeywords) {
		return NarrationPersonal
	}
	if classification.ContainsAny(lower, classification.StrongBusinessKeywords) ||
		classification.ContainsAny(lower, classification.ModerateBusinessKeywords) ||
		classification.ContainsAny(lower, classification.WeakBusinessKeywords) {
		return NarrationBusiness
	}
	if len(strings.Fields(narration)) <= 3 {
		return NarrationShort
	}
	return NarrationNeutral
}

func timeCategory(ts time.Time) string {
	if ts.IsZero() {
		return TimeUnknown
	}
	hour := ts.Hour()
	switch {
	case hour >= 8 && hour <= 18:
		return TimeBusinessHours
	case hour > 18 && hour <= 22:
		return TimeEvening
	default:
		return TimeOffHours
	}
}

func dayCategory(ts time.Time) string {
	if ts.IsZero() {
		return DayWeekday
	}
	switch ts.Weekday() {
	case time.Saturday:
		return DaySaturday
	case time.Sunday:
		return DaySunday
	default:
		return DayWeekday
	}
}

// businessContextHash hashes the user's industry, business size, and
// subscription tier into an 8-character digest, widening the key's
// business-context dimension without blowing up the number of distinct
// buckets. The three fields are serialized as JSON with sorted keys (Go's
// encoding/json sorts map keys alphabetically) before hashing, so the
// digest is reproducible across processes regardless of struct field
// order.
func businessContextHash(req classification.Request) string {
	fields := map[string]string{
		"business_size":     req.User.EffectiveBusinessSize(),
		"industry":          req.User.Industry,
		"subscription_tier": string(req.User.SubscriptionTier),
	}
	raw, _ := json.Marshal(fields)
	sum := md5.Sum(raw)
	return hex.EncodeToString(sum[:])[:8]
}

// Package rulefallback implements the zero-cost rule-based classifier
// used both as the Rule tier and as the fallback path when the external
// LLM classifier fails.
package rulefallback

import (
	"strings"
	"time"

	"github.com/taxpoynt/connector-framework/internal/classification"
	"github.com/taxpoynt/connector-framework/internal/domain/transaction"
)

type weightedMatch struct {
	weight     float64
	confidence float64
}

var (
	strongBusinessMatch   = weightedMatch{weight: 0.8, confidence: 0.9}
	moderateBusinessMatch = weightedMatch{weight: 0.5, confidence: 0.7}
	weakBusinessMatch     = weightedMatch{weight: 0.2, confidence: 0.4}
	strongPersonalMatch   = weightedMatch{weight: -0.9, confidence: 0.95}
	moderatePersonalMatch = weightedMatch{weight: -0.6, confidence: 0.8}
)

type locationWeight struct {
	token  string
	weight float64
}

var locationWeights = []locationWeight{
	{"lagos", 0.7}, {"abuja", 0.65}, {"port harcourt", 0.6}, {"kano", 0.55},
	{"ibadan", 0.5}, {"aba", 0.45}, {"onitsha", 0.45},
	{"market", 0.4}, {"industrial area", 0.4},
}

type amountBand struct {
	lo, hi float64 // hi < 0 means unbounded
	weight float64
}

var amountBands = []amountBand{
	{500, 2_000, 0.06},
	{2_000, 10_000, 0.12},
	{10_000, 100_000, 0.18},
	{100_000, 1_000_000, 0.24},
	{1_000_000, -1, 0.27},
}

var amountDivisors = []float64{1_000, 5_000, 10_000, 50_000, 100_000}

// Outcome is the rule evaluator's classification of one transaction.
type Outcome struct {
	BusinessScore    float64
	IsBusinessIncome bool
	Confidence       float64
	StrongMatchCount int
	TotalMatchCount  int
}

type accumulator struct {
	weightedSum   float64
	absWeightSum  float64
	strongMatches int
	totalMatches  int
}

func (a *accumulator) add(m weightedMatch) {
	a.weightedSum += m.weight * m.confidence
	a.absWeightSum += abs(m.weight)
	a.totalMatches++
	if abs(m.weight) >= 0.8 {
		a.strongMatches++
	}
}

// Evaluate scores tx against the weighted narration, amount, time, location
// and repeat-sender pattern families and remaps the result to [0,1].
func Evaluate(tx transaction.Transaction, user classification.UserContext) Outcome {
	acc := &accumulator{}
	narrationLower := strings.ToLower(tx.Narration)

	addNarrationMatch(acc, narrationLower)
	addAmountDivisorMatch(acc, tx.Amount)
	addAmountBandMatch(acc, tx.Amount)
	addTimeMatch(acc, tx.Timestamp)
	addLocationMatch(acc, narrationLower)
	addRepeatSenderMatch(acc, user)

	var raw float64
	if acc.absWeightSum > 0 {
		raw = clamp(acc.weightedSum/acc.absWeightSum, -1, 1)
	}
	businessScore := (raw + 1) / 2
	isBusiness := businessScore > 0.5

	confidence := blendConfidence(raw, acc.strongMatches, acc.totalMatches)

	return Outcome{
		BusinessScore:    businessScore,
		IsBusinessIncome: isBusiness,
		Confidence:       confidence,
		StrongMatchCount: acc.strongMatches,
		TotalMatchCount:  acc.totalMatches,
	}
}

// addNarrationMatch applies at most one narration family match, the
// strongest one present, so a generic word like "payment" inside an
// otherwise decisively personal narration ("salary payment") cannot dilute
// a strong keyword's signal.
func addNarrationMatch(acc *accumulator, narrationLower string) {
	switch {
	case classification.ContainsAny(narrationLower, classification.StrongPersonalKeywords):
		acc.add(strongPersonalMatch)
	case classification.ContainsAny(narrationLower, classification.StrongBusinessKeywords):
		acc.add(strongBusinessMatch)
	case classification.ContainsAny(narrationLower, classification.ModeratePersonalKeywords):
		acc.add(moderatePersonalMatch)
	case classification.ContainsAny(narrationLower, classification.ModerateBusinessKeywords):
		acc.add(moderateBusinessMatch)
	case classification.ContainsAny(narrationLower, classification.WeakBusinessKeywords):
		acc.add(weakBusinessMatch)
	}
}

// addAmountDivisorMatch applies the first round-figure divisor that fits,
// rather than stacking all of them, per the documented "small positive
// weight" per match.
func addAmountDivisorMatch(acc *accumulator, amount float64) {
	for _, divisor := range amountDivisors {
		if modFloat(amount, divisor) == 0 {
			acc.add(weightedMatch{weight: 0.08, confidence: 0.5})
			return
		}
	}
}

func addAmountBandMatch(acc *accumulator, amount float64) {
	for _, band := range amountBands {
		if amount >= band.lo && (band.hi < 0 || amount < band.hi) {
			acc.add(weightedMatch{weight: band.weight, confidence: 0.6})
			return
		}
	}
}

func addTimeMatch(acc *accumulator, ts time.Time) {
	if ts.IsZero() {
		return
	}
	hour := ts.Hour()
	switch ts.Weekday() {
	case time.Saturday:
		if hour >= 9 && hour <= 16 {
			acc.add(weightedMatch{weight: 0.21, confidence: 0.6})
			return
		}
	case time.Sunday:
		if hour >= 10 && hour <= 14 {
			acc.add(weightedMatch{weight: 0.1, confidence: 0.5})
			return
		}
	default:
		if hour >= 8 && hour <= 18 {
			acc.add(weightedMatch{weight: 0.3, confidence: 0.65})
			return
		}
	}
	if hour >= 0 && hour < 6 {
		acc.add(weightedMatch{weight: -0.2, confidence: 0.55})
	}
}

func addLocationMatch(acc *accumulator, narrationLower string) {
	for _, loc := range locationWeights {
		if strings.Contains(narrationLower, loc.token) {
			acc.add(weightedMatch{weight: loc.weight, confidence: 0.65})
			return
		}
	}
}

func addRepeatSenderMatch(acc *accumulator, user classification.UserContext) {
	if user.SameSenderTotal <= 0 {
		return
	}
	ratio := float64(user.SameSenderBusiness) / float64(user.SameSenderTotal)
	acc.add(weightedMatch{weight: 0.5 * ratio, confidence: 0.6})
}

// blendConfidence derives a base confidence from how extreme the raw
// (pre-remap) score is — 0.4 neutral, 0.6 moderate, 0.8 extreme — then
// blends in the fraction of strong pattern matches. A strong match (a
// strong-business or strong-personal keyword) floors confidence at the
// extreme band: a decisive narration signal should never be reported as
// low-confidence just because weaker amount/time signals pulled the
// overall score back toward neutral.
func blendConfidence(raw float64, strongMatches, totalMatches int) float64 {
	extremity := abs(raw)
	base := 0.4
	switch {
	case extremity >= 0.6:
		base = 0.8
	case extremity >= 0.3:
		base = 0.6
	}

	var strongFraction float64
	if totalMatches > 0 {
		strongFraction = float64(strongMatches) / float64(totalMatches)
	}
	blended := base + strongFraction*(1-base)

	if strongMatches > 0 && blended < 0.8 {
		blended = 0.8
	}
	return clamp(blended, 0, 1)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func modFloat(a, b float64) float64 {
	if b == 0 {
		return -1
	}
	q := float64(int64(a / b))
	return a - q*b
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

// Package privacy anonymizes transaction narrations before they leave the
// process for an external LLM call, and validates that anonymization left
// no residual Nigerian PII behind.
package privacy

import (
	"regexp"
	"strings"

	"github.com/taxpoynt/connector-framework/internal/classification"
)

var (
	phoneRe = regexp.MustCompile(`(\+234|0)[7-9][0-1]\d{8}|\d{11}`)
	// accountRe matches 10-12 digit runs not already consumed as a phone number.
	accountRe  = regexp.MustCompile(`\b\d{10,12}\b`)
	emailRe    = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	nameRe     = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s[A-Z][a-z]+){1,2}\b`)
	addressRe  = regexp.MustCompile(`\b[A-Z][a-zA-Z]*\s(?:Street|St|Road|Rd|Avenue|Ave|Close|Cl)\b`)
	identifierRe = regexp.MustCompile(`\b\d{6,}\b`)
)

// nigerianCities supplements addressRe: a bare city name counts as an
// address substring even without a following "Street"/"Road" suffix.
var nigerianCities = []string{
	"lagos", "abuja", "port harcourt", "kano", "ibadan", "aba", "onitsha",
}

// Redact applies the redaction rules for level to narration.
func Redact(narration string, level classification.PrivacyLevel) string {
	out := narration

	out = phoneRe.ReplaceAllString(out, "[PHONE]")
	out = accountRe.ReplaceAllString(out, "[ACCOUNT]")
	out = emailRe.ReplaceAllString(out, "[EMAIL]")

	if level == classification.PrivacyHigh || level == classification.PrivacyMaximum {
		out = nameRe.ReplaceAllString(out, "[NAME]")
		out = addressRe.ReplaceAllString(out, "[ADDRESS]")
		out = redactCityNames(out)
	}

	if level == classification.PrivacyMaximum {
		out = identifierRe.ReplaceAllString(out, "[IDENTIFIER]")
		out = redactNonWhitelistedWords(out)
	}

	return out
}

func redactCityNames(narration string) string {
	out := narration
	for _, city := range nigerianCities {
		re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(city) + `\b`)
		out = re.ReplaceAllString(out, "[ADDRESS]")
	}
	return out
}

// whitelistTerms are the only bare words Maximum privacy leaves untouched,
// beyond the bracketed redaction tokens themselves and pure punctuation.
var whitelistTerms = buildWhitelist()

func buildWhitelist() map[string]bool {
	w := make(map[string]bool)
	for _, list := range [][]string{
		classification.StrongBusinessKeywords,
		classification.ModerateBusinessKeywords,
		classification.WeakBusinessKeywords,
	} {
		for _, term := range list {
			for _, word := range strings.Fields(term) {
				w[strings.ToLower(word)] = true
			}
		}
	}
	return w
}

// wordRe matches either a whole bracketed redaction token (left untouched)
// or a bare word (checked against the whitelist).
var wordRe = regexp.MustCompile(`\[[A-Z]+\]|[A-Za-z]+`)

func redactNonWhitelistedWords(narration string) string {
	return wordRe.ReplaceAllStringFunc(narration, func(word string) string {
		if strings.HasPrefix(word, "[") {
			return word
		}
		if whitelistTerms[strings.ToLower(word)] {
			return word
		}
		return "[TERM]"
	})
}

// AmountRounding returns the rounding granularity (NGN) applied at level.
func AmountRounding(level classification.PrivacyLevel) float64 {
	switch level {
	case classification.PrivacyHigh:
		return 5_000
	case classification.PrivacyMaximum:
		return 10_000
	default:
		return 1_000
	}
}

// RoundAmount rounds amount to the nearest multiple of level's rounding
// granularity.
func RoundAmount(amount float64, level classification.PrivacyLevel) float64 {
	grain := AmountRounding(level)
	if grain <= 0 {
		return amount
	}
	return float64(int64(amount/grain+0.5)) * grain
}

// BankTier buckets a bank name into its tier, falling back to "tier3" for
// anything unrecognized.
func BankTier(bankName string) string {
	lower := strings.ToLower(bankName)
	switch {
	case containsAny(lower, []string{"gtbank", "guaranty trust", "zenith", "access bank", "first bank", "uba", "united bank for africa"}):
		return "tier1"
	case containsAny(lower, []string{"fidelity", "union bank", "fcmb", "sterling", "wema", "stanbic"}):
		return "tier2"
	case containsAny(lower, []string{"kuda", "opay", "palmpay", "moniepoint", "piggyvest"}):
		return "digital"
	default:
		return "tier3"
	}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// PartOfDay categorizes an hour-of-day into the bucket Standard/High/
// Maximum redaction substitutes for a literal timestamp.
func PartOfDay(hour int) string {
	switch {
	case hour >= 5 && hour < 12:
		return "morning"
	case hour >= 12 && hour < 17:
		return "afternoon"
	case hour >= 17 && hour < 21:
		return "evening"
	default:
		return "night"
	}
}

// ValidationResult is the outcome of scanning an anonymized narration for
// residual PII.
type ValidationResult struct {
	IsValid       bool
	PrivacyScore  float64
	Findings      []string
}

// Validate scans narration (already redacted) for any pattern that should
// have been removed. Each finding deducts 0.2 from a base score of 1.0.
func Validate(narration string) ValidationResult {
	var findings []string

	if phoneRe.MatchString(narration) {
		findings = append(findings, "residual phone number")
	}
	if accountRe.MatchString(narration) {
		findings = append(findings, "residual account number")
	}
	if emailRe.MatchString(narration) {
		findings = append(findings, "residual email address")
	}

	score := 1.0 - 0.2*float64(len(findings))
	if score < 0 {
		score = 0
	}

	return ValidationResult{
		IsValid:      len(findings) == 0,
		PrivacyScore: score,
		Findings:     findings,
	}
}

// NDPRReport is the data-protection disclosure accompanying every
// anonymized payload sent to an external LLM.
type NDPRReport struct {
	CategoriesProcessed []string
	CategoriesExcluded  []string
	RetentionPeriod     string
	TechniquesApplied   []string
	ThirdPartyRetention string
}

// BuildNDPRReport describes what was and wasn't processed for level.
func BuildNDPRReport(level classification.PrivacyLevel) NDPRReport {
	processed := []string{"transaction amount (categorized)", "transaction narration (redacted)", "transaction timestamp (categorized)"}
	excluded := []string{"account holder name", "account number", "phone number", "email address", "physical address"}
	techniques := []string{"pattern-based redaction", "categorical generalization"}

	if level == classification.PrivacyHigh || level == classification.PrivacyMaximum {
		techniques = append(techniques, "name and address suppression")
	}
	if level == classification.PrivacyMaximum {
		techniques = append(techniques, "residual-identifier suppression", "non-whitelisted term suppression")
	}

	return NDPRReport{
		CategoriesProcessed: processed,
		CategoriesExcluded:  excluded,
		RetentionPeriod:     "7 years",
		TechniquesApplied:   techniques,
		ThirdPartyRetention: "not retained",
	}
}

package classification

import "strings"

// StrongBusinessKeywords are narration substrings that signal business
// income with high confidence.
var StrongBusinessKeywords = []string{
	"invoice", "payment for goods", "payment for services", "contract payment",
	"professional fee", "consultation", "commission", "sales revenue",
	"business income", "service charge", "delivery fee", "installation",
}

// StrongPersonalKeywords are narration substrings that signal personal
// (non-business) income with high confidence.
var StrongPersonalKeywords = []string{
	"salary", "wage", "allowance", "stipend", "pension", "family support",
	"personal loan", "gift", "donation", "pocket money", "upkeep", "maintenance",
	"welfare",
}

// ModerateBusinessKeywords signal business income with medium confidence.
var ModerateBusinessKeywords = []string{
	"supply", "supplies", "vendor", "wholesale", "retail", "goods", "services rendered",
}

// WeakBusinessKeywords signal business income with low confidence.
var WeakBusinessKeywords = []string{
	"transfer", "payment", "fund",
}

// ModeratePersonalKeywords signal personal income with medium confidence.
var ModeratePersonalKeywords = []string{
	"rent", "school fees", "feeding", "transport fare", "airtime",
}

// ContainsAny reports whether narration contains any of keywords, matched
// case-insensitively as substrings.
func ContainsAny(narration string, keywords []string) bool {
	lower := strings.ToLower(narration)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

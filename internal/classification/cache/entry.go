package cache

import (
	"time"

	"github.com/taxpoynt/connector-framework/internal/classification"
)

// Entry is one stored classification outcome, plus the bookkeeping needed
// to evict it on staleness, size pressure, or negative feedback.
type Entry struct {
	Key                Key
	Result             classification.Result
	OriginalRequestID  string
	StoredAt           time.Time
	ExpiresAt          time.Time
	LastAccessed       time.Time
	UserConfirmations  int
	UserCorrections    int
}

// Expired reports whether e's TTL has elapsed as of now.
func (e *Entry) Expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Accuracy is confirmations / (confirmations + corrections). An entry with
// no feedback yet is treated as fully accurate.
func (e *Entry) Accuracy() float64 {
	total := e.UserConfirmations + e.UserCorrections
	if total == 0 {
		return 1.0
	}
	return float64(e.UserConfirmations) / float64(total)
}

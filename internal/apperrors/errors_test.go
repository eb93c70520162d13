package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	base := errors.New("dial tcp: timeout")
	err := Connection("failed to reach host", base)

	assert.Equal(t, "[ConnectionError] failed to reach host: dial tcp: timeout", err.Error())
	assert.Equal(t, base, err.Unwrap())
}

func TestWithDetail(t *testing.T) {
	err := Validation("amount", "must be positive").WithDetail("received", -5)

	assert.Equal(t, "amount", err.Details["field"])
	assert.Equal(t, -5, err.Details["received"])
}

func TestIsAndAs(t *testing.T) {
	err := RateLimit("too many requests")

	assert.True(t, Is(err, KindRateLimit))
	assert.False(t, Is(err, KindTimeout))

	wrapped := fmtWrap(err)
	extracted, ok := As(wrapped)
	assert.True(t, ok)
	assert.Equal(t, KindRateLimit, extracted.Kind)
}

func fmtWrap(err error) error {
	return fmt.Errorf("context: %w", err)
}

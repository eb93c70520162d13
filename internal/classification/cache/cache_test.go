package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxpoynt/connector-framework/internal/classification"
	"github.com/taxpoynt/connector-framework/internal/domain/transaction"
)

func newTestManager() *Manager {
	return NewManager(Config{MaxMemoryEntries: 10, TTL: time.Hour}, nil, nil)
}

func requestA() classification.Request {
	return classification.Request{
		RequestID: "req-a",
		Transaction: transaction.Transaction{
			Amount:    50_000,
			Narration: "Payment for goods supplied",
			Timestamp: time.Date(2024, 3, 15, 14, 30, 0, 0, time.UTC),
		},
		User: classification.UserContext{
			Industry:         "Trading",
			SubscriptionTier: classification.SubscriptionProfessional,
		},
		Privacy: classification.PrivacyStandard,
	}
}

func TestDeriveKeySameBucketsProduceSameKey(t *testing.T) {
	a := requestA()
	b := requestA()
	b.RequestID = "req-b"
	b.Transaction.Amount = 52_000
	b.Transaction.Narration = "Payment for goods supplied to vendor"

	assert.Equal(t, DeriveKey(a).String(), DeriveKey(b).String())
}

func TestManagerCacheHitReturnsZeroCost(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	a := requestA()
	stored := classification.Result{
		RequestID:        a.RequestID,
		IsBusinessIncome: true,
		Confidence:        0.86,
		Tier:             classification.TierPremium,
		CostNGN:          3.2,
	}
	m.Store(ctx, a, stored)

	b := requestA()
	b.RequestID = "req-b"
	b.Transaction.Amount = 52_000
	b.Transaction.Narration = "Payment for goods supplied to vendor"

	result, hit := m.Get(ctx, b)
	require.True(t, hit)
	assert.True(t, result.CacheHit)
	assert.Equal(t, 0.0, result.CostNGN)
	assert.True(t, result.IsBusinessIncome)
}

func TestManagerDoesNotStoreBelowPolicyThreshold(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	req := requestA()
	low := classification.Result{Confidence: 0.4, Tier: classification.TierLite}
	m.Store(ctx, req, low)

	_, hit := m.Get(ctx, req)
	assert.False(t, hit)
}

func TestUpdateFeedbackEvictsOnLowAccuracy(t *testing.T) {
	m := newTestManager()
	ctx := context.Background()

	req := requestA()
	result := classification.Result{RequestID: req.RequestID, Confidence: 0.75, Tier: classification.TierPremium}
	m.Store(ctx, req, result)

	ok := m.UpdateFeedback(ctx, req.RequestID, false)
	require.True(t, ok)

	_, hit := m.Get(ctx, req)
	assert.False(t, hit, "entry should be evicted after a correction drops accuracy below 0.5")
}

func TestUpdateFeedbackUnknownRequestReturnsFalse(t *testing.T) {
	m := newTestManager()
	ok := m.UpdateFeedback(context.Background(), "unknown", true)
	assert.False(t, ok)
}

func TestMemoryStoreEvictsOldestWhenFull(t *testing.T) {
	store := newMemoryStore(10)
	base := time.Now()

	for i := 0; i < 10; i++ {
		e := &Entry{LastAccessed: base.Add(time.Duration(i) * time.Minute), ExpiresAt: base.Add(time.Hour)}
		store.set(keyName(i), e)
	}
	assert.Equal(t, 10, store.size())

	// One more insert should trigger eviction of the oldest entry (index 0).
	store.set(keyName(10), &Entry{LastAccessed: base.Add(20 * time.Minute), ExpiresAt: base.Add(time.Hour)})

	_, stillThere := store.get(keyName(0), base.Add(30*time.Minute))
	assert.False(t, stillThere)
}

func keyName(i int) string {
	return string(rune('a' + i))
}

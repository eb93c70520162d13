package usage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxpoynt/connector-framework/internal/classification"
)

func TestRecordStampsIDAndTimestamp(t *testing.T) {
	tr := NewTracker(0)
	event := tr.Record(Event{Type: EventClassification})

	assert.NotEmpty(t, event.EventID)
	assert.False(t, event.RecordedAt.IsZero())
}

func TestEventsPreserveAppendOrder(t *testing.T) {
	tr := NewTracker(0)
	tr.Record(Event{EventID: "1", Type: EventAPICall})
	tr.Record(Event{EventID: "2", Type: EventAPICall})
	tr.Record(Event{EventID: "3", Type: EventAPICall})

	events := tr.Events()
	require.Len(t, events, 3)
	assert.Equal(t, "1", events[0].EventID)
	assert.Equal(t, "2", events[1].EventID)
	assert.Equal(t, "3", events[2].EventID)
}

func TestTrackerTrimsOldestHalfWhenFull(t *testing.T) {
	tr := NewTracker(4)
	for i := 0; i < 5; i++ {
		tr.Record(Event{EventID: string(rune('a' + i)), Type: EventAPICall})
	}

	events := tr.Events()
	// After the 5th insert trips the bound, the oldest half (2 of 5) is
	// trimmed, leaving the most recent 3.
	require.Len(t, events, 3)
	assert.Equal(t, "c", events[0].EventID)
	assert.Equal(t, "e", events[2].EventID)
}

func TestAggregateComputesCacheHitRateAndCost(t *testing.T) {
	tr := NewTracker(0)
	tr.Record(Event{Type: EventClassification, Tier: classification.TierPremium, IsBusinessIncome: true, CostNGN: 3.2, ProcessingMS: 120})
	tr.Record(Event{Type: EventClassification, Tier: classification.TierRule, IsBusinessIncome: false, CostNGN: 0, ProcessingMS: 5})
	tr.Record(Event{Type: EventCacheHit})
	tr.Record(Event{Type: EventCacheMiss})

	agg := tr.Aggregate()

	assert.Equal(t, 4, agg.Volume)
	assert.Equal(t, 0.5, agg.CacheHitRate)
	assert.InDelta(t, 3.2, agg.TotalCostNGN, 0.001)
	assert.Equal(t, 0.5, agg.BusinessIncomeRatio)
	assert.Equal(t, 1, agg.TierDistribution[classification.TierPremium])
}

func TestAggregateComputesUserAgreementRate(t *testing.T) {
	tr := NewTracker(0)
	tr.Record(Event{Type: EventFeedback, Metadata: map[string]interface{}{"was_correct": true}})
	tr.Record(Event{Type: EventFeedback, Metadata: map[string]interface{}{"was_correct": true}})
	tr.Record(Event{Type: EventFeedback, Metadata: map[string]interface{}{"was_correct": false}})

	agg := tr.Aggregate()
	assert.InDelta(t, 2.0/3.0, agg.UserAgreementRate, 0.001)
}

func TestAggregateOnEmptyLogIsZeroValued(t *testing.T) {
	tr := NewTracker(0)
	agg := tr.Aggregate()
	assert.Equal(t, 0, agg.Volume)
	assert.Equal(t, 0.0, agg.CacheHitRate)
}

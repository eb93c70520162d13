// Package usage implements the classification engine's append-only event
// log and its on-demand aggregations.
package usage

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/taxpoynt/connector-framework/internal/classification"
)

// EventType enumerates the kinds of event the tracker records.
type EventType string

const (
	EventClassification EventType = "Classification"
	EventAPICall         EventType = "APICall"
	EventCacheHit        EventType = "CacheHit"
	EventCacheMiss       EventType = "CacheMiss"
	EventRuleFallback    EventType = "RuleFallback"
	EventFeedback        EventType = "Feedback"
	EventCost            EventType = "Cost"
	EventTime            EventType = "Time"
	EventError           EventType = "Error"
)

// Event is one usage record.
type Event struct {
	EventID          string
	Type             EventType
	UserID           string
	OrgID            string
	RequestID        string
	Tier             classification.Tier
	Confidence       float64
	IsBusinessIncome bool
	CostNGN          float64
	TokensUsed       int
	ProcessingMS     int64
	CacheHit         bool
	Metadata         map[string]interface{}
	RecordedAt       time.Time
}

// Tracker is an append-only, size-bounded event log. Bounded by maxEvents:
// when full, the oldest half is trimmed to make room, matching §5's
// resource policy for the usage log.
type Tracker struct {
	mu        sync.Mutex
	events    []Event
	maxEvents int
}

// NewTracker builds a Tracker bounded by maxEvents (a non-positive value
// disables trimming, growing unbounded — only appropriate for tests).
func NewTracker(maxEvents int) *Tracker {
	return &Tracker{maxEvents: maxEvents}
}

// Record appends event to the log, stamping an ID if one wasn't supplied.
func (t *Tracker) Record(event Event) Event {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.RecordedAt.IsZero() {
		event.RecordedAt = time.Now()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.events = append(t.events, event)
	if t.maxEvents > 0 && len(t.events) > t.maxEvents {
		half := len(t.events) / 2
		trimmed := make([]Event, len(t.events)-half)
		copy(trimmed, t.events[half:])
		t.events = trimmed
	}
	return event
}

// Events returns a copy of the log in append order.
func (t *Tracker) Events() []Event {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Event, len(t.events))
	copy(out, t.events)
	return out
}

// Aggregates summarizes the current event log.
type Aggregates struct {
	Volume             int
	TierDistribution    map[classification.Tier]int
	ResponseTimeMeanMS  float64
	ResponseTimeMedianMS float64
	ResponseTimeP95MS   float64
	CacheHitRate        float64
	TotalCostNGN        float64
	BusinessIncomeRatio float64
	UserAgreementRate   float64
	ErrorRate           float64
}

// Aggregate computes Aggregates over the Tracker's current event log.
func (t *Tracker) Aggregate() Aggregates {
	events := t.Events()
	return aggregate(events)
}

func aggregate(events []Event) Aggregates {
	agg := Aggregates{TierDistribution: make(map[classification.Tier]int)}
	if len(events) == 0 {
		return agg
	}

	var classifications, cacheable, cacheHits, businessIncome int
	var confirmations, corrections, errors int
	var durations []int64

	for _, e := range events {
		switch e.Type {
		case EventClassification:
			classifications++
			agg.TierDistribution[e.Tier]++
			if e.IsBusinessIncome {
				businessIncome++
			}
			agg.TotalCostNGN += e.CostNGN
			if e.ProcessingMS > 0 {
				durations = append(durations, e.ProcessingMS)
			}
		case EventCacheHit:
			cacheHits++
			cacheable++
		case EventCacheMiss:
			cacheable++
		case EventFeedback:
			if wasCorrect, ok := e.Metadata["was_correct"].(bool); ok {
				if wasCorrect {
					confirmations++
				} else {
					corrections++
				}
			}
		case EventError:
			errors++
		}
	}

	agg.Volume = len(events)
	if classifications > 0 {
		agg.BusinessIncomeRatio = float64(businessIncome) / float64(classifications)
	}
	if cacheable > 0 {
		agg.CacheHitRate = float64(cacheHits) / float64(cacheable)
	}
	if total := confirmations + corrections; total > 0 {
		agg.UserAgreementRate = float64(confirmations) / float64(total)
	}
	if agg.Volume > 0 {
		agg.ErrorRate = float64(errors) / float64(agg.Volume)
	}

	if len(durations) > 0 {
		sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
		var sum int64
		for _, d := range durations {
			sum += d
		}
		agg.ResponseTimeMeanMS = float64(sum) / float64(len(durations))
		agg.ResponseTimeMedianMS = float64(percentile(durations, 0.5))
		agg.ResponseTimeP95MS = float64(percentile(durations, 0.95))
	}

	return agg
}

// percentile returns the p-th percentile (0..1) of a sorted slice: the
// element at index floor(p*(len-1)), without interpolation.
func percentile(sorted []int64, p float64) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(p * float64(len(sorted)-1))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

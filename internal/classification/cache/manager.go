// Package cache implements the classification engine's two-level cache:
// a bounded in-memory map consulted first, backed by an optional
// distributed (Redis) tier, keyed deterministically off the shape of a
// classification request rather than its exact field values.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/taxpoynt/connector-framework/internal/classification"
)

// DefaultTTL is the cache entry lifetime applied when Config.TTL is zero.
const DefaultTTL = 24 * time.Hour

// Config tunes the Manager's two levels.
type Config struct {
	MaxMemoryEntries int
	TTL              time.Duration
}

func DefaultConfigValues() Config {
	return Config{MaxMemoryEntries: 1000, TTL: DefaultTTL}
}

// Manager is the classification engine's cache facade: Get/Store operate
// on classification.Request/Result values directly, deriving and tracking
// the Key internally so callers never juggle cache-key strings.
type Manager struct {
	mu           sync.Mutex
	memory       *memoryStore
	distributed  *DistributedCache
	ttl          time.Duration
	log          logrus.FieldLogger
	requestIndex map[string]string // request ID -> cache key, for feedback lookups
}

// NewManager builds a Manager. distributed may be nil — the cache then
// runs memory-only.
func NewManager(cfg Config, distributed *DistributedCache, log logrus.FieldLogger) *Manager {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	return &Manager{
		memory:       newMemoryStore(cfg.MaxMemoryEntries),
		distributed:  distributed,
		ttl:          cfg.TTL,
		log:          log,
		requestIndex: make(map[string]string),
	}
}

// Get looks up req's derived key in memory, then in the distributed tier.
// A distributed hit is promoted into memory so subsequent lookups avoid
// the round trip.
func (m *Manager) Get(ctx context.Context, req classification.Request) (classification.Result, bool) {
	key := DeriveKey(req)
	now := time.Now()

	if entry, ok := m.memory.get(key.String(), now); ok {
		result := entry.Result
		result.CacheHit = true
		result.CostNGN = 0
		return result, true
	}

	if entry, ok := m.distributed.Get(ctx, key.String()); ok {
		if entry.Expired(now) {
			return classification.Result{}, false
		}
		entry.LastAccessed = now
		m.memory.set(key.String(), entry)
		result := entry.Result
		result.CacheHit = true
		result.CostNGN = 0
		return result, true
	}

	return classification.Result{}, false
}

// Store caches result under req's derived key if ShouldStore(req.Strategy,
// result) permits it.
func (m *Manager) Store(ctx context.Context, req classification.Request, result classification.Result) {
	if !ShouldStore(req.Strategy, result) {
		return
	}

	key := DeriveKey(req)
	now := time.Now()
	entry := &Entry{
		Key:               key,
		Result:            result,
		OriginalRequestID: req.RequestID,
		StoredAt:          now,
		ExpiresAt:         now.Add(m.ttl),
		LastAccessed:      now,
	}

	m.memory.set(key.String(), entry)
	m.distributed.Set(ctx, key.String(), entry, m.ttl)

	if req.RequestID != "" {
		m.mu.Lock()
		m.requestIndex[req.RequestID] = key.String()
		m.mu.Unlock()
	}
}

// UpdateFeedback locates the entry originally produced for requestID,
// bumps its confirmation or correction counter, and evicts it if the
// resulting accuracy drops below 0.5.
func (m *Manager) UpdateFeedback(ctx context.Context, requestID string, wasCorrect bool) bool {
	m.mu.Lock()
	key, ok := m.requestIndex[requestID]
	m.mu.Unlock()
	if !ok {
		return false
	}

	entry, found := m.memory.get(key, time.Now())
	if !found {
		if found, ok := m.distributed.Get(ctx, key); ok {
			entry = found
			m.memory.set(key, entry)
		} else {
			return false
		}
	}

	if wasCorrect {
		entry.UserConfirmations++
	} else {
		entry.UserCorrections++
	}

	if entry.Accuracy() < 0.5 {
		m.memory.delete(key)
		m.distributed.Delete(ctx, key)
		m.mu.Lock()
		delete(m.requestIndex, requestID)
		m.mu.Unlock()
		return true
	}

	m.memory.set(key, entry)
	m.distributed.Set(ctx, key, entry, m.ttl)
	return true
}

// Size returns the number of entries held in the in-memory level.
func (m *Manager) Size() int {
	return m.memory.size()
}

package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// DistributedCache is the optional second cache level: a Redis-backed store
// using the same tx_class:... key shape, consulted after the in-memory
// level misses. Every operation is best-effort — a Redis error degrades to
// memory-only mode for that call rather than surfacing to the classifier.
type DistributedCache struct {
	client *redis.Client
	log    logrus.FieldLogger
}

// NewDistributedCache wraps an existing *redis.Client. Passing a nil client
// is valid and yields a DistributedCache that always misses, used when no
// distributed tier is configured.
func NewDistributedCache(client *redis.Client, log logrus.FieldLogger) *DistributedCache {
	return &DistributedCache{client: client, log: log}
}

func (d *DistributedCache) Get(ctx context.Context, key string) (*Entry, bool) {
	if d == nil || d.client == nil {
		return nil, false
	}

	raw, err := d.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil && d.log != nil {
			d.log.WithError(err).WithField("key", key).Warn("distributed cache degraded to memory-only on read")
		}
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(raw, &entry); err != nil {
		if d.log != nil {
			d.log.WithError(err).WithField("key", key).Warn("distributed cache entry corrupt, treating as miss")
		}
		return nil, false
	}
	return &entry, true
}

func (d *DistributedCache) Set(ctx context.Context, key string, entry *Entry, ttl time.Duration) {
	if d == nil || d.client == nil {
		return
	}

	raw, err := json.Marshal(entry)
	if err != nil {
		if d.log != nil {
			d.log.WithError(err).Warn("distributed cache entry not serializable, skipping write")
		}
		return
	}

	if err := d.client.Set(ctx, key, raw, ttl).Err(); err != nil && d.log != nil {
		d.log.WithError(err).WithField("key", key).Warn("distributed cache degraded to memory-only on write")
	}
}

func (d *DistributedCache) Delete(ctx context.Context, key string) {
	if d == nil || d.client == nil {
		return
	}
	if err := d.client.Del(ctx, key).Err(); err != nil && d.log != nil {
		d.log.WithError(err).WithField("key", key).Warn("distributed cache delete failed")
	}
}

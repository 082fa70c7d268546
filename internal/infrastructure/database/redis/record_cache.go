package redis

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/turtacn/ChemMap/internal/domain/mapping"
	"github.com/turtacn/ChemMap/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChemMap/pkg/errors"
)

// RecordCache stores mapping records as JSON under
// <prefix>record:<fingerprint>:<original>. The fingerprint carries the index
// version and the engine settings, so neither a reload nor a different
// min_score serves records computed under other conditions.
type RecordCache struct {
	client *Client
	logger logging.Logger
	prefix string
	ttl    time.Duration
}

// RecordCacheOption configures a RecordCache.
type RecordCacheOption func(*RecordCache)

// WithPrefix overrides the "chemmap:" key prefix.
func WithPrefix(prefix string) RecordCacheOption {
	return func(c *RecordCache) { c.prefix = prefix }
}

// WithTTL sets the record lifetime; zero keeps records until evicted.
func WithTTL(ttl time.Duration) RecordCacheOption {
	return func(c *RecordCache) { c.ttl = ttl }
}

// NewRecordCache returns a cache over client.
func NewRecordCache(client *Client, log logging.Logger, opts ...RecordCacheOption) *RecordCache {
	if log == nil {
		log = logging.NewNopLogger()
	}
	c := &RecordCache{
		client: client,
		logger: log.Named("record_cache"),
		prefix: "chemmap:",
		ttl:    24 * time.Hour,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *RecordCache) key(fingerprint, original string) string {
	return c.prefix + "record:" + fingerprint + ":" + original
}

// Get returns the cached record, or nil on a miss. An entry that no longer
// decodes is deleted and reported as a miss.
func (c *RecordCache) Get(ctx context.Context, fingerprint, original string) (*mapping.MappingRecord, error) {
	key := c.key(fingerprint, original)
	data, err := c.client.Get(ctx, key).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeCacheError, "failed to read record from cache")
	}

	var rec mapping.MappingRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		c.logger.Warn("dropping undecodable cache entry", logging.String("key", key), logging.Err(err))
		_ = c.client.Del(ctx, key).Err()
		return nil, nil
	}
	return &rec, nil
}

// Set stores rec under fingerprint.
func (c *RecordCache) Set(ctx context.Context, fingerprint string, rec mapping.MappingRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode record")
	}
	if err := c.client.Set(ctx, c.key(fingerprint, rec.Original), data, jitterTTL(c.ttl)).Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeCacheError, "failed to write record to cache")
	}
	return nil
}

// jitterTTL spreads expiry by +/-10% so a batch does not expire at once.
func jitterTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	jitter := float64(ttl) * 0.1 * (rand.Float64()*2 - 1)
	return ttl + time.Duration(jitter)
}

package rating

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SummaryKeyFormatV1 is the cache key format for per-market rating summaries.
const SummaryKeyFormatV1 = "rating_summary_v1:%s"

// DefaultCacheTTL bounds how long a summary may live even without writes.
const DefaultCacheTTL = 10 * time.Minute

// CachedSummarizer caches summaries in Redis in front of another Summarizer.
// The invalidation rule is write-through: any review insert or deletion for a
// market must call Invalidate for it in the same call path, so there is never
// a staleness window. Cache failures degrade to recomputation; a broken cache
// never fails a query.
type CachedSummarizer struct {
	inner Summarizer
	rdb   *redis.Client
	ttl   time.Duration
}

// NewCachedSummarizer wraps inner with a Redis cache.
func NewCachedSummarizer(inner Summarizer, rdb *redis.Client) *CachedSummarizer {
	return &CachedSummarizer{
		inner: inner,
		rdb:   rdb,
		ttl:   DefaultCacheTTL,
	}
}

func summaryKey(marketID string) string {
	return fmt.Sprintf(SummaryKeyFormatV1, marketID)
}

// ForMarket returns the cached summary when present, otherwise recomputes and
// stores it.
func (c *CachedSummarizer) ForMarket(ctx context.Context, marketID string) (Summary, error) {
	key := summaryKey(marketID)

	cached, err := c.rdb.Get(ctx, key).Result()
	if err == nil {
		var s Summary
		if err := json.Unmarshal([]byte(cached), &s); err == nil {
			return s, nil
		}
		// Unparseable entry: fall through and overwrite.
	}

	s, err := c.inner.ForMarket(ctx, marketID)
	if err != nil {
		return Summary{}, err
	}

	if data, err := json.Marshal(s); err == nil {
		// Best effort; a failed cache write only costs a future recompute.
		c.rdb.Set(ctx, key, data, c.ttl)
	}
	return s, nil
}

// Invalidate drops the market's cached summary immediately. Called on every
// review insert or deletion for the market before the write returns.
func (c *CachedSummarizer) Invalidate(ctx context.Context, marketID string) error {
	if err := c.rdb.Del(ctx, summaryKey(marketID)).Err(); err != nil {
		return fmt.Errorf("invalidate rating summary for market %s: %w", marketID, err)
	}
	return nil
}

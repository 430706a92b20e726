package datasource

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/yourusername/tipwatch/internal/metrics"
	"github.com/yourusername/tipwatch/internal/models"
)

// CachedResultFeed serves repeated fetches for the same request from a cache
// until the entry is older than ttl. Failed or partial fetches are not cached.
type CachedResultFeed struct {
	inner ResultFeed
	cache Cache[FeedBatch]
	clock Clock
	ttl   time.Duration
}

// NewCachedResultFeed wraps inner with cache. A nil clock means the wall clock.
func NewCachedResultFeed(inner ResultFeed, cache Cache[FeedBatch], ttl time.Duration, clock Clock) *CachedResultFeed {
	if clock == nil {
		clock = SystemClock{}
	}
	return &CachedResultFeed{inner: inner, cache: cache, clock: clock, ttl: ttl}
}

// Provider returns the wrapped feed's provider.
func (f *CachedResultFeed) Provider() models.Provider {
	return f.inner.Provider()
}

// FetchResults returns a fresh cached batch or fetches from the wrapped feed.
func (f *CachedResultFeed) FetchResults(ctx context.Context, req FetchRequest) (*FeedBatch, error) {
	key := resultCacheKey(f.inner.Provider(), req)
	if entry, ok := f.cache.Get(ctx, key); ok && entry.FreshAt(f.clock.Now(), f.ttl) {
		metrics.RecordCacheHit("results")
		batch := entry.Value
		return &batch, nil
	}
	metrics.RecordCacheMiss("results")

	batch, err := f.inner.FetchResults(ctx, req)
	if err == nil && batch != nil {
		f.cache.Set(ctx, key, Entry[FeedBatch]{StoredAt: f.clock.Now(), Value: *batch})
	}
	return batch, err
}

// CachedPriceFeed is the price-feed counterpart of CachedResultFeed.
type CachedPriceFeed struct {
	inner PriceFeed
	cache Cache[[]PriceRow]
	clock Clock
	ttl   time.Duration
}

// NewCachedPriceFeed wraps inner with cache. A nil clock means the wall clock.
func NewCachedPriceFeed(inner PriceFeed, cache Cache[[]PriceRow], ttl time.Duration, clock Clock) *CachedPriceFeed {
	if clock == nil {
		clock = SystemClock{}
	}
	return &CachedPriceFeed{inner: inner, cache: cache, clock: clock, ttl: ttl}
}

// Provider returns the wrapped feed's provider.
func (f *CachedPriceFeed) Provider() models.Provider {
	return f.inner.Provider()
}

// FetchPrices returns fresh cached prices or fetches from the wrapped feed.
func (f *CachedPriceFeed) FetchPrices(ctx context.Context, date time.Time) ([]PriceRow, error) {
	key := string(f.inner.Provider()) + ":" + models.DateKey(date)
	if entry, ok := f.cache.Get(ctx, key); ok && entry.FreshAt(f.clock.Now(), f.ttl) {
		metrics.RecordCacheHit("prices")
		return entry.Value, nil
	}
	metrics.RecordCacheMiss("prices")

	rows, err := f.inner.FetchPrices(ctx, date)
	if err == nil {
		f.cache.Set(ctx, key, Entry[[]PriceRow]{StoredAt: f.clock.Now(), Value: rows})
	}
	return rows, err
}

// resultCacheKey identifies a fetch by provider, date and the meetings asked for.
func resultCacheKey(provider models.Provider, req FetchRequest) string {
	key := string(provider) + ":" + models.DateKey(req.Date)
	if len(req.Meetings) == 0 {
		return key
	}
	data, err := json.Marshal(req.Meetings)
	if err != nil {
		return key
	}
	sum := sha256.Sum256(data)
	return key + ":" + hex.EncodeToString(sum[:8])
}

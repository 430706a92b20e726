package datasource

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Clock supplies the current time. Tests inject a ManualClock to force expiry.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// ManualClock is a Clock that only moves when told to.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewManualClock returns a clock frozen at start.
func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start}
}

// Now returns the current manual time.
func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Entry is a cached value and the time it was stored.
type Entry[V any] struct {
	StoredAt time.Time `json:"stored_at"`
	Value    V         `json:"value"`
}

// FreshAt reports whether the entry is younger than ttl at now.
func (e Entry[V]) FreshAt(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.StoredAt) < ttl
}

// Cache is a keyed store of timestamped values. Freshness is decided by the
// caller from Entry.StoredAt, so implementations only need to store and evict.
type Cache[V any] interface {
	Get(ctx context.Context, key string) (Entry[V], bool)
	Set(ctx context.Context, key string, entry Entry[V])
}

// TTLCache is an in-process Cache backed by go-cache. Entries are evicted by
// the janitor after the retention period; until then Get returns them even if
// stale.
type TTLCache[V any] struct {
	store *gocache.Cache
}

// NewTTLCache creates an in-process cache that retains entries for retention.
func NewTTLCache[V any](retention time.Duration) *TTLCache[V] {
	return &TTLCache[V]{
		store: gocache.New(retention, retention),
	}
}

// Get returns the stored entry for key.
func (c *TTLCache[V]) Get(_ context.Context, key string) (Entry[V], bool) {
	v, found := c.store.Get(key)
	if !found {
		return Entry[V]{}, false
	}
	entry, ok := v.(Entry[V])
	return entry, ok
}

// Set stores entry under key.
func (c *TTLCache[V]) Set(_ context.Context, key string, entry Entry[V]) {
	c.store.SetDefault(key, entry)
}

// Clear removes every entry.
func (c *TTLCache[V]) Clear() {
	c.store.Flush()
}

// Len returns the number of stored entries, including stale ones.
func (c *TTLCache[V]) Len() int {
	return c.store.ItemCount()
}

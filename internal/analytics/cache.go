package analytics

import (
	"fmt"
	"strings"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"

	"github.com/yourusername/tipwatch/internal/metrics"
	"github.com/yourusername/tipwatch/internal/models"
)

// CacheKey identifies one computed report.
type CacheKey struct {
	Kind   string
	From   time.Time
	To     time.Time
	Filter Filter
	Extra  string
}

// String returns string representation of cache key
func (k CacheKey) String() string {
	return strings.Join([]string{
		k.Kind,
		models.DateKey(k.From),
		models.DateKey(k.To),
		strings.ToUpper(k.Filter.State),
		strings.ToLower(k.Filter.TrackName),
		string(k.Filter.TipType),
		string(k.Filter.Provider),
		k.Extra,
	}, "|")
}

// ReportCache keeps computed analytics reports for a short time so repeated
// queries over the same window do not rescan every tip.
type ReportCache struct {
	cache     *cache.Cache
	ttl       time.Duration
	mu        sync.RWMutex
	hitCount  uint64
	missCount uint64
}

// NewReportCache creates a report cache whose entries live for ttl.
func NewReportCache(ttl time.Duration) *ReportCache {
	return &ReportCache{
		cache: cache.New(ttl, ttl*2),
		ttl:   ttl,
	}
}

// Get retrieves a cached report.
func (rc *ReportCache) Get(key CacheKey) (any, bool) {
	if rc == nil {
		return nil, false
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if v, found := rc.cache.Get(key.String()); found {
		rc.hitCount++
		metrics.RecordCacheHit("analytics")
		return v, true
	}
	rc.missCount++
	metrics.RecordCacheMiss("analytics")
	return nil, false
}

// Set stores a report.
func (rc *ReportCache) Set(key CacheKey, report any) {
	if rc == nil {
		return
	}
	rc.cache.Set(key.String(), report, rc.ttl)
}

// Invalidate drops every cached report whose window contains date.
func (rc *ReportCache) Invalidate(date time.Time) {
	if rc == nil {
		return
	}
	day := models.DateKey(date)
	for k := range rc.cache.Items() {
		parts := strings.SplitN(k, "|", 4)
		if len(parts) < 3 {
			rc.cache.Delete(k)
			continue
		}
		if parts[1] <= day && day <= parts[2] {
			rc.cache.Delete(k)
		}
	}
}

// Clear flushes the entire cache
func (rc *ReportCache) Clear() {
	if rc == nil {
		return
	}
	rc.mu.Lock()
	defer rc.mu.Unlock()

	rc.cache.Flush()
	rc.hitCount = 0
	rc.missCount = 0
}

// Stats returns cache statistics
func (rc *ReportCache) Stats() (hits, misses uint64, ratio float64) {
	if rc == nil {
		return 0, 0, 0
	}
	rc.mu.RLock()
	defer rc.mu.RUnlock()

	hits = rc.hitCount
	misses = rc.missCount
	if total := hits + misses; total > 0 {
		ratio = float64(hits) / float64(total)
	}
	return
}

// ItemCount returns the number of items in cache
func (rc *ReportCache) ItemCount() int {
	if rc == nil {
		return 0
	}
	return rc.cache.ItemCount()
}

func (k CacheKey) withExtra(format string, args ...any) CacheKey {
	k.Extra = fmt.Sprintf(format, args...)
	return k
}

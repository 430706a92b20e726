package datasource

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/tipwatch/internal/config"
)

// Feeds is the set of enabled external feeds.
type Feeds struct {
	// Results are ordered by provider precedence, highest first.
	Results []ResultFeed
	// Prices is nil when the live-price feed is disabled.
	Prices PriceFeed

	httpClient  *RateLimitedHTTPClient
	redisClient *redis.Client
}

// Close releases the HTTP and Redis connections held by the feeds.
func (f *Feeds) Close() error {
	if f.httpClient != nil {
		f.httpClient.Close()
	}
	if f.redisClient != nil {
		return f.redisClient.Close()
	}
	return nil
}

// Factory creates feed implementations based on configuration
type Factory struct {
	logger *logrus.Logger
	config *config.Config
	clock  Clock
}

// NewFactory creates a new data source factory
func NewFactory(cfg *config.Config, logger *logrus.Logger) *Factory {
	return &Factory{
		logger: logger,
		config: cfg,
		clock:  SystemClock{},
	}
}

// WithClock overrides the clock used for cache freshness.
func (f *Factory) WithClock(clock Clock) *Factory {
	f.clock = clock
	return f
}

// Build creates every enabled feed, sharing one rate-limited HTTP client and
// wrapping each feed with the configured cache.
func (f *Factory) Build(ctx context.Context) (*Feeds, error) {
	cfg := f.config
	httpClient := NewRateLimitedHTTPClient(HTTPClientConfigFrom(cfg.HTTPClient), f.logger)
	feeds := &Feeds{httpClient: httpClient}

	if cfg.Cache.Backend == "redis" {
		client, err := NewRedisClient(ctx, cfg.Cache.RedisURL)
		if err != nil {
			return nil, err
		}
		feeds.redisClient = client
	}

	if cfg.Feeds.PF.Enabled {
		pf := NewPFFeed(httpClient, cfg.Feeds.PF.PostRaceURL, cfg.Feeds.PF.APIKey,
			config.Timeout(cfg.Feeds.PF.TimeoutSeconds, 60*time.Second), f.logger)
		feeds.Results = append(feeds.Results, f.cacheResults(feeds, pf))
		f.logger.Info("Created data source: PF post-race")
	}
	if cfg.Feeds.RA.Enabled {
		ra := NewRAFeed(httpClient, cfg.Feeds.RA.BaseURL,
			config.Timeout(cfg.Feeds.RA.TimeoutSeconds, 30*time.Second), f.logger)
		feeds.Results = append(feeds.Results, f.cacheResults(feeds, ra))
		f.logger.Info("Created data source: RA crawler")
	}
	if cfg.Feeds.Skynet.Enabled {
		sk := NewSkynetFeed(httpClient, cfg.Feeds.Skynet.PricesURL, cfg.Feeds.Skynet.APIKey,
			config.Timeout(cfg.Feeds.Skynet.TimeoutSeconds, 15*time.Second), f.logger)
		feeds.Prices = f.cachePrices(feeds, sk)
		f.logger.Info("Created data source: Skynet prices")
	}

	if len(feeds.Results) == 0 {
		feeds.Close()
		return nil, fmt.Errorf("no enabled result feeds configured")
	}
	return feeds, nil
}

func (f *Factory) cacheResults(feeds *Feeds, feed ResultFeed) ResultFeed {
	ttl := f.config.CacheTTL()
	var cache Cache[FeedBatch]
	if feeds.redisClient != nil {
		cache = NewRedisCache[FeedBatch](feeds.redisClient, f.config.Cache.KeyPrefix+"results:", ttl*2, f.logger)
	} else {
		cache = NewTTLCache[FeedBatch](ttl * 2)
	}
	return NewCachedResultFeed(feed, cache, ttl, f.clock)
}

func (f *Factory) cachePrices(feeds *Feeds, feed PriceFeed) PriceFeed {
	ttl := f.config.CacheTTL()
	var cache Cache[[]PriceRow]
	if feeds.redisClient != nil {
		cache = NewRedisCache[[]PriceRow](feeds.redisClient, f.config.Cache.KeyPrefix+"prices:", ttl*2, f.logger)
	} else {
		cache = NewTTLCache[[]PriceRow](ttl * 2)
	}
	return NewCachedPriceFeed(feed, cache, ttl, f.clock)
}

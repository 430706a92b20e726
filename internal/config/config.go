// Package config provides configuration management for tipwatch.
package config

import (
	"fmt"
	"time"
	_ "time/tzdata" // embedded zoneinfo for Australia/*
)

// Config represents the complete application configuration
type Config struct {
	App        AppConfig        `mapstructure:"app" validate:"required"`
	Database   DatabaseConfig   `mapstructure:"database" validate:"required"`
	Feeds      FeedsConfig      `mapstructure:"feeds" validate:"required"`
	HTTPClient HTTPClientConfig `mapstructure:"http_client" validate:"required"`
	Cache      CacheConfig      `mapstructure:"cache" validate:"required"`
	Analytics  AnalyticsConfig  `mapstructure:"analytics" validate:"required"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Health     HealthConfig     `mapstructure:"health"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	Secrets    SecretsConfig    `mapstructure:"secrets"`
}

// AppConfig represents application-level configuration
type AppConfig struct {
	Name        string `mapstructure:"name" validate:"required"`
	Environment string `mapstructure:"environment" validate:"required,environment"`
	LogLevel    string `mapstructure:"log_level" validate:"required,loglevel"`
	Timezone    string `mapstructure:"timezone" validate:"required,timezone"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Host               string `mapstructure:"host" validate:"required"`
	Port               int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	Name               string `mapstructure:"name" validate:"required"`
	User               string `mapstructure:"user" validate:"required"`
	Password           string `mapstructure:"password"`
	SSLMode            string `mapstructure:"ssl_mode" validate:"required,oneof=disable require verify-full"`
	MaxConnections     int    `mapstructure:"max_connections" validate:"required,gt=0"`
	MaxIdleConnections int    `mapstructure:"max_idle_connections" validate:"required,gt=0"`
}

// FeedsConfig groups the external result and price feeds.
type FeedsConfig struct {
	RA     RAFeedConfig     `mapstructure:"ra"`
	PF     PFFeedConfig     `mapstructure:"pf"`
	Skynet SkynetFeedConfig `mapstructure:"skynet"`
}

// RAFeedConfig configures the crawler results feed.
type RAFeedConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	BaseURL        string `mapstructure:"base_url" validate:"omitempty,url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" validate:"gte=0"`
}

// PFFeedConfig configures the post-race runner feed.
type PFFeedConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	PostRaceURL    string `mapstructure:"post_race_url" validate:"omitempty,url"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" validate:"gte=0"`
}

// SkynetFeedConfig configures the live-price feed.
type SkynetFeedConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	PricesURL      string `mapstructure:"prices_url" validate:"omitempty,url"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" validate:"gte=0"`
}

// HTTPClientConfig tunes the shared retrying feed client.
type HTTPClientConfig struct {
	MaxRetries        int     `mapstructure:"max_retries" validate:"gte=0"`
	RetryWaitMinMs    int     `mapstructure:"retry_wait_min_ms" validate:"gte=0"`
	RetryWaitMaxMs    int     `mapstructure:"retry_wait_max_ms" validate:"gte=0"`
	RateLimit         float64 `mapstructure:"rate_limit" validate:"gt=0"`
	CircuitBreakerMax int     `mapstructure:"circuit_breaker_max" validate:"gt=0"`
}

// CacheConfig configures the feed cache in front of repeated external reads.
type CacheConfig struct {
	Backend    string `mapstructure:"backend" validate:"required,cachebackend"`
	TTLSeconds int    `mapstructure:"ttl_seconds" validate:"gt=0"`
	RedisURL   string `mapstructure:"redis_url"`
	KeyPrefix  string `mapstructure:"key_prefix"`
}

// AnalyticsConfig configures staking and sample-size rules.
type AnalyticsConfig struct {
	StakePerUnit         float64 `mapstructure:"stake_per_unit" validate:"gt=0"`
	MinSampleSize        int     `mapstructure:"min_sample_size" validate:"gte=0"`
	InsightMinSampleSize int     `mapstructure:"insight_min_sample_size" validate:"gte=0"`
	DefaultWindowDays    int     `mapstructure:"default_window_days" validate:"gt=0"`
}

// SchedulerConfig configures the periodic reconciliation driver.
type SchedulerConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	ReconcileCron     string `mapstructure:"reconcile_cron" validate:"required_if=Enabled true"`
	JobTimeoutSeconds int    `mapstructure:"job_timeout_seconds" validate:"gte=0"`
}

// HealthConfig configures the health/metrics HTTP server.
type HealthConfig struct {
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
}

// MetricsConfig represents metrics and monitoring configuration
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// SecretsConfig points at an optional AWS Secrets Manager overlay.
type SecretsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Region     string `mapstructure:"region" validate:"required_if=Enabled true"`
	SecretName string `mapstructure:"secret_name" validate:"required_if=Enabled true"`
}

// IsProduction checks if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

// GetDatabaseDSN returns a PostgreSQL DSN string
func (c *Config) GetDatabaseDSN() string {
	return c.Database.DSN()
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User,
		d.Password,
		d.Host,
		d.Port,
		d.Name,
		d.SSLMode,
	)
}

// Location returns the configured racing timezone, UTC if it cannot be loaded.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// CacheTTL returns the feed cache TTL.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSeconds) * time.Second
}

// Timeout converts a seconds setting into a duration, falling back to def.
func Timeout(seconds int, def time.Duration) time.Duration {
	if seconds <= 0 {
		return def
	}
	return time.Duration(seconds) * time.Second
}

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes every environment override, e.g. TIPWATCH_APP_LOG_LEVEL.
	EnvPrefix         = "TIPWATCH"
	defaultConfigPath = "config/config.yaml"
	dotEnvFile        = ".env"
)

// Load reads and parses the configuration from file and environment variables
// It expands environment variable placeholders in the YAML file (${VAR_NAME})
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = defaultConfigPath
	}
	if err := loadDotEnv(dotEnvFile); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found at %s: %w", configPath, err)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v := newViper()
	if err := v.ReadConfig(bytes.NewBufferString(os.ExpandEnv(string(data)))); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}

// LoadWithDefaults loads configuration with default values for optional fields.
// A missing config file is not an error; defaults and environment variables apply.
func LoadWithDefaults(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = defaultConfigPath
	}
	if err := loadDotEnv(dotEnvFile); err != nil {
		return nil, err
	}

	v := newViper()
	setDefaults(v)

	if data, err := os.ReadFile(configPath); err == nil {
		if err := v.ReadConfig(bytes.NewBufferString(os.ExpandEnv(string(data)))); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	return v
}

// loadDotEnv exports variables from a local .env file without overriding the real environment.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "tipwatch")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.timezone", "Australia/Melbourne")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "tipwatch")
	v.SetDefault("database.user", "tipwatch")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.max_idle_connections", 2)

	v.SetDefault("feeds.ra.enabled", true)
	v.SetDefault("feeds.ra.base_url", "https://ra-crawler.onrender.com")
	v.SetDefault("feeds.ra.timeout_seconds", 30)
	v.SetDefault("feeds.pf.enabled", false)
	v.SetDefault("feeds.pf.post_race_url", "https://api.puntingform.com.au/v2/ireel/post-race")
	v.SetDefault("feeds.pf.timeout_seconds", 60)
	v.SetDefault("feeds.skynet.enabled", false)
	v.SetDefault("feeds.skynet.prices_url", "https://puntx.puntingform.com.au/api/skynet/getskynetprices")
	v.SetDefault("feeds.skynet.timeout_seconds", 15)

	v.SetDefault("http_client.max_retries", 2)
	v.SetDefault("http_client.retry_wait_min_ms", 500)
	v.SetDefault("http_client.retry_wait_max_ms", 5000)
	v.SetDefault("http_client.rate_limit", 5.0)
	v.SetDefault("http_client.circuit_breaker_max", 5)

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl_seconds", 300)
	v.SetDefault("cache.key_prefix", "tipwatch:feed:")

	v.SetDefault("analytics.stake_per_unit", 10.0)
	v.SetDefault("analytics.min_sample_size", 5)
	v.SetDefault("analytics.insight_min_sample_size", 10)
	v.SetDefault("analytics.default_window_days", 60)

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.reconcile_cron", "*/30 * * * *")
	v.SetDefault("scheduler.job_timeout_seconds", 600)

	v.SetDefault("health.port", 8080)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

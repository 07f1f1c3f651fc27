package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	Commerce   CommerceConfig
	Catalog    CatalogConfig
	Enrichment EnrichmentConfig
	Cache      CacheConfig
	Store      StoreConfig
	Answers    AnswersConfig
	RateLimit  RateLimitConfig
	Log        LogConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Environment     string        `mapstructure:"environment"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// CommerceConfig holds commerce API configuration
type CommerceConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	StoreURL          string        `mapstructure:"store_url"` // public storefront, used for product links
	AccessToken       string        `mapstructure:"access_token"`
	Currency          string        `mapstructure:"currency"`
	PageSize          int           `mapstructure:"page_size"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	Debug             bool          `mapstructure:"debug"`
}

// CatalogConfig holds catalog synchronizer configuration
type CatalogConfig struct {
	SnapshotTTL       time.Duration `mapstructure:"snapshot_ttl"`
	PageTimeout       time.Duration `mapstructure:"page_timeout"`
	MaxTimeoutRetries int           `mapstructure:"max_timeout_retries"`
	RetryBaseDelay    time.Duration `mapstructure:"retry_base_delay"`
	MaxPages          int           `mapstructure:"max_pages"`
	FailureCooldown   time.Duration `mapstructure:"failure_cooldown"`
	MaxBenefits       int           `mapstructure:"max_benefits"` // per product in the rendered context
}

// EnrichmentConfig holds detail page enrichment configuration
type EnrichmentConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	BatchSize   int           `mapstructure:"batch_size"`
	BatchPause  time.Duration `mapstructure:"batch_pause"`
	Timeout     time.Duration `mapstructure:"timeout"`
	TTL         time.Duration `mapstructure:"ttl"`
	ThrottleTTL time.Duration `mapstructure:"throttle_ttl"`
}

// CacheConfig holds byte cache configuration
type CacheConfig struct {
	Type      string `mapstructure:"type"` // "memory" or "redis"
	RedisURL  string `mapstructure:"redis_url"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// StoreConfig holds answer store configuration
type StoreConfig struct {
	Driver string `mapstructure:"driver"` // "memory" or "sqlite"
	Path   string `mapstructure:"path"`
}

// AnswersConfig holds answer cache configuration
type AnswersConfig struct {
	EntryTTL                      time.Duration `mapstructure:"entry_ttl"`
	PromotionThreshold            int64         `mapstructure:"promotion_threshold"`
	ComparisonKeyIncludesQuestion bool          `mapstructure:"comparison_key_includes_question"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip"` // requests per minute
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "console" or "json"
}

// Load loads configuration from a .env file, environment variables and config files
func Load() (*Config, error) {
	if err := loadEnvFile(".env"); err != nil {
		return nil, err
	}

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/suppchat/")

	// Environment variable settings
	v.SetEnvPrefix("SUPPCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// loadEnvFile exports the variables of path without overriding the
// environment; a missing file is not an error
func loadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("error reading %s: %w", path, err)
	}
	return nil
}

// setDefaults sets default configuration values. Every key needs a default
// so that AutomaticEnv can see it during Unmarshal.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.shutdown_timeout", "10s")

	// Commerce defaults
	v.SetDefault("commerce.base_url", "")
	v.SetDefault("commerce.store_url", "")
	v.SetDefault("commerce.access_token", "")
	v.SetDefault("commerce.currency", "EUR")
	v.SetDefault("commerce.page_size", 250)
	v.SetDefault("commerce.timeout", "30s")
	v.SetDefault("commerce.requests_per_second", 2.0)
	v.SetDefault("commerce.burst", 4)
	v.SetDefault("commerce.debug", false)

	// Catalog defaults
	v.SetDefault("catalog.snapshot_ttl", "4h")
	v.SetDefault("catalog.page_timeout", "30s")
	v.SetDefault("catalog.max_timeout_retries", 3)
	v.SetDefault("catalog.retry_base_delay", "500ms")
	v.SetDefault("catalog.max_pages", 200)
	v.SetDefault("catalog.failure_cooldown", "5m")
	v.SetDefault("catalog.max_benefits", 3)

	// Enrichment defaults
	v.SetDefault("enrichment.enabled", true)
	v.SetDefault("enrichment.batch_size", 10)
	v.SetDefault("enrichment.batch_pause", "1s")
	v.SetDefault("enrichment.timeout", "15s")
	v.SetDefault("enrichment.ttl", "4h")
	v.SetDefault("enrichment.throttle_ttl", "5m")

	// Cache defaults
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.key_prefix", "suppchat:")

	// Store defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "./data/answers.db")

	// Answers defaults
	v.SetDefault("answers.entry_ttl", "2160h") // 90 days
	v.SetDefault("answers.promotion_threshold", 2)
	v.SetDefault("answers.comparison_key_includes_question", true)

	// Rate limit defaults
	v.SetDefault("ratelimit.per_ip", 100)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Commerce.BaseURL == "" {
		return fmt.Errorf("commerce base URL is required (set SUPPCHAT_COMMERCE_BASE_URL)")
	}

	if config.Cache.Type != "memory" && config.Cache.Type != "redis" {
		return fmt.Errorf("cache type must be 'memory' or 'redis', got: %s", config.Cache.Type)
	}

	if config.Cache.Type == "redis" && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when cache type is 'redis'")
	}

	if config.Store.Driver != "memory" && config.Store.Driver != "sqlite" {
		return fmt.Errorf("store driver must be 'memory' or 'sqlite', got: %s", config.Store.Driver)
	}

	if config.Store.Driver == "sqlite" && config.Store.Path == "" {
		return fmt.Errorf("store path is required when store driver is 'sqlite'")
	}

	if config.Answers.PromotionThreshold < 1 {
		return fmt.Errorf("answers promotion threshold must be at least 1, got: %d", config.Answers.PromotionThreshold)
	}

	if config.Answers.EntryTTL <= 0 {
		return fmt.Errorf("answers entry TTL must be positive, got: %s", config.Answers.EntryTTL)
	}

	if config.Catalog.SnapshotTTL <= 0 {
		return fmt.Errorf("catalog snapshot TTL must be positive, got: %s", config.Catalog.SnapshotTTL)
	}

	if config.RateLimit.PerIP < 0 {
		return fmt.Errorf("per-IP rate limit cannot be negative, got: %d", config.RateLimit.PerIP)
	}

	return nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Ebay      EbayConfig      `mapstructure:"ebay"`
	Enrich    EnrichConfig    `mapstructure:"enrich"`
	IO        IOConfig        `mapstructure:"io"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Results   ResultsConfig   `mapstructure:"results"`
	Server    ServerConfig    `mapstructure:"server"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

// AppConfig holds process-wide settings
type AppConfig struct {
	Environment string `mapstructure:"environment" validate:"required"`
	LogLevel    string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
}

// EbayConfig holds catalog API configuration
type EbayConfig struct {
	BaseURL           string        `mapstructure:"base_url" validate:"required,url"`
	Scope             string        `mapstructure:"scope" validate:"required"`
	ClientID          string        `mapstructure:"client_id"`
	ClientSecret      string        `mapstructure:"client_secret"`
	Timeout           time.Duration `mapstructure:"timeout" validate:"gte=0"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"gte=0"`
	Burst             int           `mapstructure:"burst" validate:"gte=1"`
}

// EnrichConfig holds the lookup and fan-out knobs
type EnrichConfig struct {
	MaxConcurrency  int           `mapstructure:"max_concurrency" validate:"gte=1"`
	MaxAttempts     int           `mapstructure:"max_attempts" validate:"gte=1"`
	PacingDelay     time.Duration `mapstructure:"pacing_delay" validate:"gte=0"`
	RetryBackoff    time.Duration `mapstructure:"retry_backoff" validate:"gte=0"`
	CandidateFields []string      `mapstructure:"candidate_fields" validate:"min=1,dive,required"`
}

// IOConfig holds input and output locations
type IOConfig struct {
	InputDir   string `mapstructure:"input_dir" validate:"required"`
	OutputPath string `mapstructure:"output_path" validate:"required"`
	IDColumn   string `mapstructure:"id_column" validate:"required"`
}

// CacheConfig holds cache-related configuration
type CacheConfig struct {
	Type     string        `mapstructure:"type"` // "memory", "redis" or "none"
	RedisURL string        `mapstructure:"redis_url"`
	TTL      time.Duration `mapstructure:"ttl" validate:"gte=0"`
}

// ResultsConfig holds the optional Postgres results sink
type ResultsConfig struct {
	PostgresDSN string `mapstructure:"postgres_dsn"`
	Table       string `mapstructure:"table" validate:"required"`
	BatchSize   int    `mapstructure:"batch_size" validate:"gte=1"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port" validate:"required"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	MaxRecords     int      `mapstructure:"max_records" validate:"gte=1"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	PerIP int `mapstructure:"per_ip" validate:"gte=0"` // requests per minute, 0 disables
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/enricher/")

	// Environment variable settings
	v.SetEnvPrefix("ENRICHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The credentials also come from the bare names used by existing deployments
	_ = v.BindEnv("ebay.client_id", "ENRICHER_EBAY_CLIENT_ID", "CLIENT_ID")
	_ = v.BindEnv("ebay.client_secret", "ENRICHER_EBAY_CLIENT_SECRET", "CLIENT_SECRET")

	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// loadEnvFile loads ./.env when present. Variables already set in the
// environment win over the file.
func loadEnvFile() error {
	if _, err := os.Stat(".env"); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return godotenv.Load(".env")
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("ebay.base_url", "https://api.ebay.com")
	v.SetDefault("ebay.scope", "https://api.ebay.com/oauth/api_scope")
	v.SetDefault("ebay.client_id", "")
	v.SetDefault("ebay.client_secret", "")
	v.SetDefault("ebay.timeout", "0s")
	v.SetDefault("ebay.requests_per_second", 0)
	v.SetDefault("ebay.burst", 10)

	v.SetDefault("enrich.max_concurrency", 100)
	v.SetDefault("enrich.max_attempts", 3)
	v.SetDefault("enrich.pacing_delay", "200ms")
	v.SetDefault("enrich.retry_backoff", "0s")
	v.SetDefault("enrich.candidate_fields", []string{"upc", "name"})

	v.SetDefault("io.input_dir", "./inputs")
	v.SetDefault("io.output_path", "./outputs/results.csv")
	v.SetDefault("io.id_column", "upc")

	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", "720h") // 30 days

	v.SetDefault("results.postgres_dsn", "")
	v.SetDefault("results.table", "enrichment_results")
	v.SetDefault("results.batch_size", 200)

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.max_records", 1000)

	v.SetDefault("ratelimit.per_ip", 100)
}

// Validate checks field ranges and the cross-field rules
func (c *Config) Validate() error {
	if err := validate(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func validate(config *Config) error {
	if err := validator.New().Struct(config); err != nil {
		return err
	}

	switch config.Cache.Type {
	case "memory", "redis", "none":
	default:
		return fmt.Errorf("cache type must be 'memory', 'redis' or 'none', got: %s", config.Cache.Type)
	}

	if config.Cache.Type == "redis" && config.Cache.RedisURL == "" {
		return fmt.Errorf("Redis URL is required when cache type is 'redis'")
	}

	return nil
}

// HasCredentials reports whether both client credentials are set
func (c EbayConfig) HasCredentials() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

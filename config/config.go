package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"forecasting-engine/analytics/ml"
)

// EnvPrefix prefixes every environment override, e.g. FORECAST_SERVER_PORT
const EnvPrefix = "FORECAST"

// Config represents the complete service configuration
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	Forecasting ForecastingConfig `mapstructure:"forecasting"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Insights    InsightsConfig    `mapstructure:"insights"`
	Auth        AuthConfig        `mapstructure:"auth"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig selects log verbosity and encoding
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "text" or "json"
}

// ForecastingConfig contains engine and result cache settings
type ForecastingConfig struct {
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
	CacheMaxEntries   int           `mapstructure:"cache_max_entries"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
	MaxWorkers        int           `mapstructure:"max_workers"`
	StaleAfter        time.Duration `mapstructure:"stale_after"`
	SupportedMetrics  []string      `mapstructure:"supported_metrics"`
	DefaultAlgorithms []string      `mapstructure:"default_algorithms"`
}

// RedisConfig contains the shared result tier settings
type RedisConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// InsightsConfig contains narrative generation settings
type InsightsConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	Provider          string        `mapstructure:"provider"` // "gemini" or "claude"
	Model             string        `mapstructure:"model"`
	APIKey            string        `mapstructure:"api_key"`
	Timeout           time.Duration `mapstructure:"timeout"`
	MaxRetries        int           `mapstructure:"max_retries"`
	RetryBackoff      time.Duration `mapstructure:"retry_backoff"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
	MaxTokens         int           `mapstructure:"max_tokens"`
}

// AuthConfig contains bearer token settings
type AuthConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	JWTSecret string `mapstructure:"jwt_secret"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("forecasting.cache_ttl", 24*time.Hour)
	v.SetDefault("forecasting.cache_max_entries", 10000)
	v.SetDefault("forecasting.cleanup_interval", 30*time.Minute)
	v.SetDefault("forecasting.max_workers", 8)
	v.SetDefault("forecasting.stale_after", 30*24*time.Hour)
	v.SetDefault("forecasting.supported_metrics", []string{})
	v.SetDefault("forecasting.default_algorithms", []string{})

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "forecast:")
	v.SetDefault("redis.timeout", 2*time.Second)

	v.SetDefault("insights.enabled", false)
	v.SetDefault("insights.provider", "gemini")
	v.SetDefault("insights.model", "")
	v.SetDefault("insights.api_key", "")
	v.SetDefault("insights.timeout", 10*time.Second)
	v.SetDefault("insights.max_retries", 1)
	v.SetDefault("insights.retry_backoff", 500*time.Millisecond)
	v.SetDefault("insights.requests_per_second", 2.0)
	v.SetDefault("insights.burst", 1)
	v.SetDefault("insights.max_tokens", 1024)

	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.jwt_secret", "")
}

// Load reads .env, then config.yaml|json from . or ./configs (or configFile when set),
// then FORECAST_* environment overrides.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// provider-native variable names are accepted too
	if err := v.BindEnv("insights.api_key", EnvPrefix+"_INSIGHTS_API_KEY", "GEMINI_API_KEY", "ANTHROPIC_API_KEY"); err != nil {
		return nil, fmt.Errorf("failed to bind insights api key: %w", err)
	}
	if err := v.BindEnv("auth.jwt_secret", EnvPrefix+"_AUTH_JWT_SECRET", "JWT_SECRET"); err != nil {
		return nil, fmt.Errorf("failed to bind JWT secret: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.Insights.Provider = strings.ToLower(strings.TrimSpace(cfg.Insights.Provider))

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}
	if c.Server.ReadTimeout <= 0 || c.Server.WriteTimeout <= 0 || c.Server.IdleTimeout <= 0 {
		return fmt.Errorf("server timeouts must be positive")
	}

	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log format must be text or json, got %q", c.Log.Format)
	}

	f := c.Forecasting
	if f.CacheTTL <= 0 {
		return fmt.Errorf("forecasting cache ttl must be positive")
	}
	if f.CleanupInterval <= 0 {
		return fmt.Errorf("forecasting cleanup interval must be positive")
	}
	if f.MaxWorkers <= 0 {
		return fmt.Errorf("forecasting max workers must be positive")
	}
	if _, err := c.Algorithms(); err != nil {
		return err
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis address cannot be empty when enabled")
		}
		if c.Redis.Timeout <= 0 {
			return fmt.Errorf("redis timeout must be positive")
		}
	}

	if c.Insights.Enabled {
		switch c.Insights.Provider {
		case "gemini", "claude":
		default:
			return fmt.Errorf("unknown insights provider %q", c.Insights.Provider)
		}
		if c.Insights.APIKey == "" {
			return fmt.Errorf("insights api key is required when insights are enabled")
		}
		if c.Insights.Timeout <= 0 {
			return fmt.Errorf("insights timeout must be positive")
		}
		if c.Insights.MaxRetries < 0 {
			return fmt.Errorf("insights max retries cannot be negative")
		}
	}

	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return fmt.Errorf("jwt secret is required when auth is enabled")
	}
	return nil
}

// Algorithms parses the configured default algorithm names
func (c *Config) Algorithms() ([]ml.Algorithm, error) {
	known := make(map[ml.Algorithm]bool, len(ml.Algorithms))
	for _, a := range ml.Algorithms {
		known[a] = true
	}

	out := make([]ml.Algorithm, 0, len(c.Forecasting.DefaultAlgorithms))
	for _, name := range c.Forecasting.DefaultAlgorithms {
		a := ml.Algorithm(strings.ToUpper(strings.TrimSpace(name)))
		if !known[a] {
			return nil, fmt.Errorf("unknown default algorithm %q", name)
		}
		out = append(out, a)
	}
	return out, nil
}

// NewLogger builds the process logger
func (c LogConfig) NewLogger() *logrus.Logger {
	logger := logrus.New()
	if level, err := logrus.ParseLevel(c.Level); err == nil {
		logger.SetLevel(level)
	}
	if c.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}

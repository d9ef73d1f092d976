package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Usage    UsageConfig    `mapstructure:"usage_tracking"`
	Blocking BlockingConfig `mapstructure:"blocking"`
	Suggest  SuggestConfig  `mapstructure:"suggest"`
}

// ServerConfig defines the loopback API and metrics listeners
type ServerConfig struct {
	BindAddress    string   `mapstructure:"bind_address"`
	APIPort        int      `mapstructure:"api_port"`
	MetricsPort    int      `mapstructure:"metrics_port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"` // extension origins allowed by CORS
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Type  string      `mapstructure:"type"` // "bolt" or "redis"
	Path  string      `mapstructure:"path"`
	Redis RedisConfig `mapstructure:"redis"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// UsageConfig defines dwell-time tracking settings
type UsageConfig struct {
	MaxFlushDuration  string `mapstructure:"max_flush_duration"`
	MinCreditDuration string `mapstructure:"min_credit_duration"`
	QueueSize         int    `mapstructure:"queue_size"`
	WriteRetries      int    `mapstructure:"write_retries"`
	RetentionDays     int    `mapstructure:"retention_days"` // 0 keeps records forever
	PruneTime         string `mapstructure:"prune_time"`
}

// BlockingConfig defines study mode blocking settings
type BlockingConfig struct {
	DefaultSites  []string `mapstructure:"default_sites"`
	RuleCacheSize int      `mapstructure:"rule_cache_size"`
	PolicyDir     string   `mapstructure:"policy_dir"` // empty uses the built-in policy
}

// SuggestConfig defines the remote text-generation endpoint
type SuggestConfig struct {
	Endpoint     string `mapstructure:"endpoint"`
	APIKey       string `mapstructure:"api_key"`
	APIKeyHeader string `mapstructure:"api_key_header"`
	Timeout      string `mapstructure:"timeout"`
	MaxSites     int    `mapstructure:"max_sites"`
	// RateLimitPerMinute bounds suggestion requests over the API; 0 disables it
	RateLimitPerMinute int `mapstructure:"rate_limit_per_minute"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetEnvPrefix("FOCUSFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.bind_address", "127.0.0.1")
	v.SetDefault("server.api_port", 7878)
	v.SetDefault("server.metrics_port", 9478)
	v.SetDefault("server.allowed_origins", []string{"chrome-extension://*"})

	// Storage defaults
	v.SetDefault("storage.type", "bolt")
	v.SetDefault("storage.path", defaultStoragePath())
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 4)
	v.SetDefault("storage.redis.min_idle_conns", 1)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Usage tracking defaults
	v.SetDefault("usage_tracking.max_flush_duration", "1h")
	v.SetDefault("usage_tracking.min_credit_duration", "500ms")
	v.SetDefault("usage_tracking.queue_size", 64)
	v.SetDefault("usage_tracking.write_retries", 1)
	v.SetDefault("usage_tracking.retention_days", 0)
	v.SetDefault("usage_tracking.prune_time", "03:00")

	// Blocking defaults
	v.SetDefault("blocking.default_sites", []string{"youtube.com", "tiktok.com", "instagram.com", "netflix.com"})
	v.SetDefault("blocking.rule_cache_size", 1024)
	v.SetDefault("blocking.policy_dir", "")

	// Suggestion defaults
	v.SetDefault("suggest.endpoint", "https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-flash:generateContent")
	v.SetDefault("suggest.api_key", "")
	v.SetDefault("suggest.api_key_header", "x-goog-api-key")
	v.SetDefault("suggest.timeout", "20s")
	v.SetDefault("suggest.max_sites", 10)
	v.SetDefault("suggest.rate_limit_per_minute", 6)
}

// Defaults returns the configuration used when no file or environment
// overrides are present.
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// FindUnknownKeys reads the config file and returns keys that do not map to
// any setting, sorted.
func FindUnknownKeys(configPath string) ([]string, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	known := viper.New()
	setDefaults(known)
	valid := make(map[string]bool)
	for _, key := range known.AllKeys() {
		valid[key] = true
	}

	unknown := []string{}
	for _, key := range v.AllKeys() {
		if !valid[key] {
			unknown = append(unknown, key)
		}
	}
	sort.Strings(unknown)
	return unknown, nil
}

func defaultStoragePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "focusforge", "focusforge.bolt")
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Server.APIPort <= 0 || cfg.Server.APIPort > 65535 {
		return fmt.Errorf("invalid API port: %d", cfg.Server.APIPort)
	}
	if cfg.Server.MetricsPort < 0 || cfg.Server.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.Server.MetricsPort)
	}

	switch cfg.Storage.Type {
	case "":
		cfg.Storage.Type = "bolt"
	case "bolt", "redis":
	default:
		return fmt.Errorf("unsupported storage type: %s (must be bolt or redis)", cfg.Storage.Type)
	}

	if cfg.Storage.Type == "bolt" && cfg.Storage.Path == "" {
		return fmt.Errorf("storage path is required")
	}

	for name, value := range map[string]string{
		"usage_tracking.max_flush_duration":  cfg.Usage.MaxFlushDuration,
		"usage_tracking.min_credit_duration": cfg.Usage.MinCreditDuration,
		"suggest.timeout":                    cfg.Suggest.Timeout,
	} {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
		if d < 0 {
			return fmt.Errorf("invalid %s: must not be negative", name)
		}
	}

	if _, err := time.Parse("15:04", cfg.Usage.PruneTime); err != nil {
		return fmt.Errorf("invalid usage_tracking.prune_time: %w", err)
	}
	if cfg.Usage.WriteRetries < 0 {
		return fmt.Errorf("usage_tracking.write_retries must not be negative")
	}
	if cfg.Suggest.RateLimitPerMinute < 0 {
		return fmt.Errorf("suggest.rate_limit_per_minute must not be negative")
	}
	if cfg.Usage.RetentionDays < 0 {
		return fmt.Errorf("usage_tracking.retention_days must not be negative")
	}

	return nil
}

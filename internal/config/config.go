package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit" mapstructure:"rate_limit"`
	Moderation ModerationConfig `yaml:"moderation" mapstructure:"moderation"`
	Schema     SchemaConfig     `yaml:"schema" mapstructure:"schema"`
	Evidence   EvidenceConfig   `yaml:"evidence" mapstructure:"evidence"`
	Auth       AuthConfig       `yaml:"auth" mapstructure:"auth"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	RequestsPerSec float64  `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	RequestBurst   int      `yaml:"request_burst" mapstructure:"request_burst"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// RateLimitConfig holds the submission caps.
type RateLimitConfig struct {
	DailyCap         int `yaml:"daily_cap" mapstructure:"daily_cap"`
	ProviderCap      int `yaml:"provider_cap" mapstructure:"provider_cap"`
	ProviderCapDays  int `yaml:"provider_cap_days" mapstructure:"provider_cap_days"`
	DailyWindowHours int `yaml:"daily_window_hours" mapstructure:"daily_window_hours"`
}

// ModerationConfig configures entry lifecycle defaults.
type ModerationConfig struct {
	// AutoPublishIndustries lists industry keys whose clean submissions go
	// public immediately instead of being held for review.
	AutoPublishIndustries []string `yaml:"auto_publish_industries" mapstructure:"auto_publish_industries"`
	MaxReasonLength       int      `yaml:"max_reason_length" mapstructure:"max_reason_length"`
}

// SchemaConfig configures the schema registry cache.
type SchemaConfig struct {
	CacheTTLSecs int `yaml:"cache_ttl_secs" mapstructure:"cache_ttl_secs"`
}

// EvidenceConfig configures evidence uploads.
type EvidenceConfig struct {
	MaxSizeBytes int64 `yaml:"max_size_bytes" mapstructure:"max_size_bytes"`
}

// AuthConfig maps bearer tokens to "actor_id:role" pairs for the static
// authenticator. Production deployments plug in a real identity provider.
type AuthConfig struct {
	StaticTokens map[string]string `yaml:"static_tokens" mapstructure:"static_tokens"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("FEELENS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.requests_per_sec", 20)
	v.SetDefault("server.request_burst", 40)
	v.SetDefault("rate_limit.daily_cap", 3)
	v.SetDefault("rate_limit.provider_cap", 5)
	v.SetDefault("rate_limit.provider_cap_days", 365)
	v.SetDefault("rate_limit.daily_window_hours", 24)
	v.SetDefault("moderation.max_reason_length", 2000)
	v.SetDefault("schema.cache_ttl_secs", 300)
	v.SetDefault("evidence.max_size_bytes", 10<<20)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the configuration for the given run mode before any
// collaborator is built. Problems are aggregated so one run reports all of
// them.
func (c *Config) Validate(mode string) error {
	switch mode {
	case "serve", "migrate", "tool":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	var problems []string
	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		problems = append(problems, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
	}
	if c.Store.Driver == "postgres" && c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required for the postgres driver")
	}

	if mode == "serve" {
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		if c.RateLimit.DailyCap < 0 || c.RateLimit.ProviderCap < 0 {
			problems = append(problems, "rate_limit caps must be >= 0")
		}
		if c.RateLimit.DailyCap > 0 && c.RateLimit.DailyWindowHours <= 0 {
			problems = append(problems, "rate_limit.daily_window_hours must be > 0")
		}
		if c.Moderation.MaxReasonLength <= 0 {
			problems = append(problems, "moderation.max_reason_length must be > 0")
		}
		if c.Evidence.MaxSizeBytes <= 0 {
			problems = append(problems, "evidence.max_size_bytes must be > 0")
		}
	}

	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

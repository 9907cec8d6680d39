// Package config loads application configuration from config.yaml and
// WILLOW_-prefixed environment variables.
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
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	FUB      FUBConfig      `yaml:"fub" mapstructure:"fub"`
	CloudCMA CloudCMAConfig `yaml:"cloudcma" mapstructure:"cloudcma"`
	Attom    AttomConfig    `yaml:"attom" mapstructure:"attom"`
	Bridge   BridgeConfig   `yaml:"bridge" mapstructure:"bridge"`
	Scoring  ScoringConfig  `yaml:"scoring" mapstructure:"scoring"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // sqlite or postgres
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// FUBConfig holds Follow Up Boss API settings.
type FUBConfig struct {
	Key        string  `yaml:"key" mapstructure:"key"`
	BaseURL    string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit  float64 `yaml:"rate_limit" mapstructure:"rate_limit"` // requests per second
	AgentEmail string  `yaml:"agent_email" mapstructure:"agent_email"`
}

// CloudCMAConfig holds Cloud CMA API settings.
type CloudCMAConfig struct {
	Key        string `yaml:"key" mapstructure:"key"`
	BaseURL    string `yaml:"base_url" mapstructure:"base_url"`
	WebhookURL string `yaml:"webhook_url" mapstructure:"webhook_url"` // public callback endpoint
}

// AttomConfig holds ATTOM property data API settings.
type AttomConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// BridgeConfig holds the valuation bridge API settings.
type BridgeConfig struct {
	Token   string `yaml:"token" mapstructure:"token"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
}

// ScoringConfig mirrors the fusion engine configuration.
type ScoringConfig struct {
	FelloWeight    float64 `yaml:"fello_weight" mapstructure:"fello_weight"`
	CloudCMAWeight float64 `yaml:"cloudcma_weight" mapstructure:"cloudcma_weight"`
	WillowWeight   float64 `yaml:"willow_weight" mapstructure:"willow_weight"`
	SierraWeight   float64 `yaml:"sierra_weight" mapstructure:"sierra_weight"`
	CriticalAt     int     `yaml:"critical_at" mapstructure:"critical_at"`
	SuperHotAt     int     `yaml:"super_hot_at" mapstructure:"super_hot_at"`
	HotAt          int     `yaml:"hot_at" mapstructure:"hot_at"`
	WarmAt         int     `yaml:"warm_at" mapstructure:"warm_at"`
}

// PipelineConfig tunes the intelligence pipeline.
type PipelineConfig struct {
	PropertyCacheTTLHours int `yaml:"property_cache_ttl_hours" mapstructure:"property_cache_ttl_hours"`
	MaxConcurrentLeads    int `yaml:"max_concurrent_leads" mapstructure:"max_concurrent_leads"`

	// Operator-maintained local market flags feeding the defaults cascade.
	LowInventory      bool `yaml:"low_inventory" mapstructure:"low_inventory"`
	RapidAppreciation bool `yaml:"rapid_appreciation" mapstructure:"rapid_appreciation"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"` // json or console
}

// Load reads configuration from config.yaml (optional) and the environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("WILLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "willow.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("fub.base_url", "https://api.followupboss.com/v1")
	v.SetDefault("fub.rate_limit", 20.0)

	// Secrets have empty defaults so env-only values reach Unmarshal.
	v.SetDefault("fub.key", "")
	v.SetDefault("fub.agent_email", "")
	v.SetDefault("cloudcma.key", "")
	v.SetDefault("cloudcma.webhook_url", "")
	v.SetDefault("attom.key", "")
	v.SetDefault("bridge.token", "")

	v.SetDefault("cloudcma.base_url", "https://cloudcma.com/api/v1")
	v.SetDefault("attom.base_url", "https://api.gateway.attomdata.com/propertyapi/v1.0.0")
	v.SetDefault("bridge.base_url", "https://api.bridgedataoutput.com/api/v2")
	v.SetDefault("scoring.fello_weight", 0.35)
	v.SetDefault("scoring.cloudcma_weight", 0.25)
	v.SetDefault("scoring.willow_weight", 0.25)
	v.SetDefault("scoring.sierra_weight", 0.15)
	v.SetDefault("scoring.critical_at", 90)
	v.SetDefault("scoring.super_hot_at", 80)
	v.SetDefault("scoring.hot_at", 60)
	v.SetDefault("scoring.warm_at", 40)
	v.SetDefault("pipeline.property_cache_ttl_hours", 24)
	v.SetDefault("pipeline.max_concurrent_leads", 5)
	v.SetDefault("pipeline.low_inventory", false)
	v.SetDefault("pipeline.rapid_appreciation", false)

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

// RequireSecrets fails fast when the API credentials the named components
// need are absent. Secrets come only from the environment or the config
// file; there are no baked-in fallbacks.
func (c *Config) RequireSecrets(components ...string) error {
	var missing []string
	for _, comp := range components {
		switch comp {
		case "fub":
			if c.FUB.Key == "" {
				missing = append(missing, "WILLOW_FUB_KEY")
			}
		case "cloudcma":
			if c.CloudCMA.Key == "" {
				missing = append(missing, "WILLOW_CLOUDCMA_KEY")
			}
		case "attom":
			if c.Attom.Key == "" {
				missing = append(missing, "WILLOW_ATTOM_KEY")
			}
		case "bridge":
			if c.Bridge.Token == "" {
				missing = append(missing, "WILLOW_BRIDGE_TOKEN")
			}
		default:
			return eris.Errorf("config: unknown component %q", comp)
		}
	}
	if len(missing) > 0 {
		return eris.New(fmt.Sprintf("config: missing required secrets: %s", strings.Join(missing, ", ")))
	}
	return nil
}

// InitLogger builds the global zap logger from LogConfig.
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

package config

import (
	"time"

	"github.com/mhmod01110/priv-band-ai/internal/ai/quota"
	"github.com/mhmod01110/priv-band-ai/internal/ai/routing"
	redisclient "github.com/mhmod01110/priv-band-ai/internal/infra/redis"
	"github.com/mhmod01110/priv-band-ai/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig            `yaml:"server"`
	Logging   LoggingConfig           `yaml:"logging"`
	Redis     redisclient.Config      `yaml:"redis"`
	Database  postgres.Config         `yaml:"database"`
	Providers []ProviderConfig        `yaml:"providers"`
	Router    routing.RouterConfig    `yaml:"router"`
	Breaker   routing.BreakerConfig   `yaml:"breaker"`
	Quota     map[string]quota.Limits `yaml:"quota"`
	Pipeline  PipelineConfig          `yaml:"pipeline"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// ProviderConfig holds settings for one AI provider.
type ProviderConfig struct {
	Name    string        `yaml:"name"`
	Kind    string        `yaml:"kind"` // "openai" or "gemini"
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// PipelineConfig holds run deadlines and cache TTLs.
type PipelineConfig struct {
	SoftDeadline time.Duration `yaml:"soft_deadline"`
	HardDeadline time.Duration `yaml:"hard_deadline"`
	ResultTTL    time.Duration `yaml:"result_ttl"`
	LockTTL      time.Duration `yaml:"lock_ttl"`
	FallbackTTL  time.Duration `yaml:"fallback_ttl"`
}

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if len(cfg.Providers) == 0 {
		return nil, fmt.Errorf("at least one provider must be configured")
	}
	if cfg.Router.Primary == "" {
		cfg.Router.Primary = cfg.Providers[0].Name
	}
	if cfg.Router.Secondary == "" && len(cfg.Providers) > 1 {
		cfg.Router.Secondary = cfg.Providers[1].Name
	}

	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	for i := range cfg.Providers {
		if cfg.Providers[i].Timeout == 0 {
			cfg.Providers[i].Timeout = 90 * time.Second
		}
	}
	if cfg.Pipeline.SoftDeadline == 0 {
		cfg.Pipeline.SoftDeadline = 4 * time.Minute
	}
	if cfg.Pipeline.HardDeadline == 0 {
		cfg.Pipeline.HardDeadline = 5 * time.Minute
	}
}

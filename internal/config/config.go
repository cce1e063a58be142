// Package config loads and represents the on-disk configuration for the
// timeline server: listen address, upstream settings, and the set of
// principals allowed to fall back to the search endpoint.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Upstream holds settings for talking to the timeline's upstream service.
type Upstream struct {
	BaseURL        string        `yaml:"base_url"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// Config is the root of the YAML configuration file.
type Config struct {
	ListenAddress           string   `yaml:"listen_address"`
	DomainName              string   `yaml:"domain_name"`
	StaticAssetsPath        string   `yaml:"static_assets_path"`
	MetricsPort             int      `yaml:"metrics_port"`
	LogLevel                string   `yaml:"log_level"`
	SearchEnabledPrincipals []string `yaml:"search_enabled_principals"`
	Upstream                Upstream `yaml:"upstream"`
}

// defaults mirrors the zero-config behavior a developer expects when
// running the server against a scratch checkout.
func defaults() *Config {
	return &Config{
		ListenAddress: ":8080",
		MetricsPort:   9090,
		LogLevel:      "info",
		Upstream: Upstream{
			RequestTimeout: 30 * time.Second,
		},
	}
}

// Load reads and parses the YAML configuration file at path. Missing
// fields retain their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration data that has already been read; Load
// reads the file and then calls it.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}
	if cfg.Upstream.BaseURL == "" {
		return nil, fmt.Errorf("config: upstream.base_url is required")
	}
	return cfg, nil
}

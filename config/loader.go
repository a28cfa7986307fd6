package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const envPrefix = "LOGSTITCH"

// Loader handles configuration loading with defaults, a file layer, and
// environment overrides, in that precedence order.
type Loader struct {
	validation bool
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{validation: true}
}

// EnableValidation enables or disables configuration validation
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// LoadFile loads configuration from a JSON file, applying defaults first and
// environment overrides last.
func (l *Loader) LoadFile(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	l.applyEnvOverrides(cfg)

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Defaults returns the default configuration
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name: "logstitch",
		},
		NATS: NATSConfig{
			URLs:          []string{"nats://localhost:4222"},
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}

// applyEnvOverrides applies LOGSTITCH_* environment variables on top of the
// loaded configuration.
func (l *Loader) applyEnvOverrides(cfg *Config) {
	if urls := os.Getenv(envPrefix + "_NATS_URLS"); urls != "" {
		cfg.NATS.URLs = splitAndTrim(urls)
	}
	if username := os.Getenv(envPrefix + "_NATS_USERNAME"); username != "" {
		cfg.NATS.Username = username
	}
	if password := os.Getenv(envPrefix + "_NATS_PASSWORD"); password != "" {
		cfg.NATS.Password = password
	}
	if token := os.Getenv(envPrefix + "_NATS_TOKEN"); token != "" {
		cfg.NATS.Token = token
	}
	if port := os.Getenv(envPrefix + "_METRICS_PORT"); port != "" {
		if parsed, err := strconv.Atoi(port); err == nil {
			cfg.Metrics.Port = parsed
		}
	}
	if env := os.Getenv(envPrefix + "_ENVIRONMENT"); env != "" {
		cfg.Service.Environment = env
	}
}

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

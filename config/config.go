package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Config represents the complete application configuration: service identity,
// NATS connection, metrics exposure, and the concat processor settings.
type Config struct {
	Version string        `json:"version,omitempty"`
	Service ServiceConfig `json:"service"`
	NATS    NATSConfig    `json:"nats"`
	Metrics MetricsConfig `json:"metrics"`

	// Processor holds the concat processor configuration (ports plus
	// aggregation settings), passed through as raw JSON so the processor
	// owns its own schema.
	Processor json.RawMessage `json:"processor"`
}

// ServiceConfig defines service identity
type ServiceConfig struct {
	Name        string `json:"name,omitempty"`
	InstanceID  string `json:"instance_id,omitempty"` // e.g., "west-1", "dev-local"
	Environment string `json:"environment,omitempty"` // "prod", "dev", "test"
}

// NATSConfig for the NATS connection
type NATSConfig struct {
	URLs          []string      `json:"urls,omitempty"`
	Name          string        `json:"name,omitempty"`
	MaxReconnects int           `json:"max_reconnects,omitempty"`
	ReconnectWait time.Duration `json:"reconnect_wait,omitempty"`
	Username      string        `json:"username,omitempty"`
	Password      string        `json:"password,omitempty"`
	Token         string        `json:"token,omitempty"`
}

// MetricsConfig for the Prometheus metrics endpoint
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port,omitempty"`
	Path    string `json:"path,omitempty"`
}

// Validate checks the configuration for structural problems. Processor
// settings are validated by the processor itself at construction time.
func (c *Config) Validate() error {
	if len(c.NATS.URLs) == 0 {
		return fmt.Errorf("nats.urls: at least one URL is required")
	}
	for i, url := range c.NATS.URLs {
		if url == "" {
			return fmt.Errorf("nats.urls[%d]: URL cannot be empty", i)
		}
	}

	if c.NATS.Username != "" && c.NATS.Token != "" {
		return fmt.Errorf("nats: username/password and token auth are mutually exclusive")
	}

	if c.Metrics.Enabled {
		if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port: invalid port %d", c.Metrics.Port)
		}
	}

	if len(c.Processor) == 0 {
		return fmt.Errorf("processor: configuration is required")
	}

	return nil
}

// Clone creates a deep copy of the configuration
func (c *Config) Clone() *Config {
	if c == nil {
		return &Config{}
	}

	data, err := json.Marshal(c)
	if err != nil {
		copied := *c
		return &copied
	}

	var clone Config
	if err := json.Unmarshal(data, &clone); err != nil {
		copied := *c
		return &copied
	}

	return &clone
}

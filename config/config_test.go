package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := Defaults()
	cfg.Processor = json.RawMessage(`{"concat":{"key":"message","n_lines":3}}`)
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(_ *Config) {},
		},
		{
			name:    "no NATS URLs",
			mutate:  func(c *Config) { c.NATS.URLs = nil },
			wantErr: "nats.urls",
		},
		{
			name:    "empty NATS URL",
			mutate:  func(c *Config) { c.NATS.URLs = []string{""} },
			wantErr: "nats.urls[0]",
		},
		{
			name: "conflicting auth",
			mutate: func(c *Config) {
				c.NATS.Username = "user"
				c.NATS.Token = "secret"
			},
			wantErr: "mutually exclusive",
		},
		{
			name:    "invalid metrics port",
			mutate:  func(c *Config) { c.Metrics.Port = 70000 },
			wantErr: "metrics.port",
		},
		{
			name:    "missing processor config",
			mutate:  func(c *Config) { c.Processor = nil },
			wantErr: "processor",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, "logstitch", cfg.Service.Name)
	assert.Equal(t, []string{"nats://localhost:4222"}, cfg.NATS.URLs)
	assert.Equal(t, -1, cfg.NATS.MaxReconnects)
	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9090, cfg.Metrics.Port)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
}

func TestLoader_LoadFile(t *testing.T) {
	configJSON := `{
		"service": {"name": "logstitch-test", "environment": "test"},
		"nats": {"urls": ["nats://nats-1:4222", "nats://nats-2:4222"]},
		"metrics": {"enabled": true, "port": 9191, "path": "/metrics"},
		"processor": {"concat": {"key": "message", "n_lines": 5}}
	}`

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(configJSON), 0o600))

	cfg, err := NewLoader().LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "logstitch-test", cfg.Service.Name)
	assert.Equal(t, "test", cfg.Service.Environment)
	assert.Equal(t, []string{"nats://nats-1:4222", "nats://nats-2:4222"}, cfg.NATS.URLs)
	assert.Equal(t, 9191, cfg.Metrics.Port)

	var processor map[string]any
	require.NoError(t, json.Unmarshal(cfg.Processor, &processor))
	assert.Contains(t, processor, "concat")
}

func TestLoader_LoadFile_Missing(t *testing.T) {
	_, err := NewLoader().LoadFile("/nonexistent/config.json")
	assert.Error(t, err)
}

func TestLoader_LoadFile_InvalidConfig(t *testing.T) {
	// Parses but fails validation: no processor section
	configJSON := `{"nats": {"urls": ["nats://localhost:4222"]}}`

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(configJSON), 0o600))

	_, err := NewLoader().LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "processor")
}

func TestLoader_EnvOverrides(t *testing.T) {
	t.Setenv("LOGSTITCH_NATS_URLS", "nats://override-1:4222, nats://override-2:4222")
	t.Setenv("LOGSTITCH_METRICS_PORT", "9999")
	t.Setenv("LOGSTITCH_ENVIRONMENT", "prod")

	configJSON := `{
		"nats": {"urls": ["nats://file:4222"]},
		"processor": {"concat": {"key": "message", "n_lines": 3}}
	}`

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(configJSON), 0o600))

	cfg, err := NewLoader().LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"nats://override-1:4222", "nats://override-2:4222"}, cfg.NATS.URLs)
	assert.Equal(t, 9999, cfg.Metrics.Port)
	assert.Equal(t, "prod", cfg.Service.Environment)
}

func TestConfig_Clone(t *testing.T) {
	cfg := validConfig()
	cfg.NATS.URLs = []string{"nats://a:4222"}

	clone := cfg.Clone()
	clone.NATS.URLs[0] = "nats://b:4222"

	assert.Equal(t, "nats://a:4222", cfg.NATS.URLs[0])
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "file", cfg.Storage.Backend)
	assert.Equal(t, 168, cfg.Auth.TokenTTLHours)
	assert.Equal(t, "X-N8N-API-KEY", cfg.Classifier.APIKeyHeader)
	assert.Equal(t, 30, cfg.Classifier.TimeoutSeconds)
	assert.Equal(t, "/webhook/classify-problem", cfg.Classifier.ClassifyPath)
	assert.False(t, cfg.Worker.Enabled)
}

func TestLoadConfig_YAMLFile(t *testing.T) {
	path := writeFile(t, "config.yaml", `
server:
  port: "9090"
storage:
  backend: sqlite
  dsn: /tmp/civic.db
classifier:
  base_url: http://n8n:5678
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, "/tmp/civic.db", cfg.Storage.DSN)
	assert.Equal(t, "http://n8n:5678", cfg.Classifier.BaseURL)
	assert.Equal(t, "/webhook/select-bid", cfg.Classifier.SelectBidPath)
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "config.json", `{"server": {"port": "7070"}, "rate_limit": {"enabled": true, "rate": 5, "window": 10}}`)
	t.Setenv("SERVER_PORT", "6060")
	t.Setenv("N8N_CLASSIFY_WEBHOOK", "/webhook/custom-classify")
	t.Setenv("REPORT_LIMIT_PER_DAY", "3")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "6060", cfg.Server.Port)
	assert.Equal(t, 5, cfg.RateLimit.Rate)
	assert.Equal(t, "/webhook/custom-classify", cfg.Classifier.ClassifyPath)
	assert.Equal(t, 3, cfg.RateLimit.ReportsPerDay)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{name: "missing secret", mutate: func(c *Config) { c.Auth.JWTSecret = "" }, wantErr: true},
		{name: "unknown backend", mutate: func(c *Config) { c.Storage.Backend = "cassandra" }, wantErr: true},
		{name: "sqlite without dsn", mutate: func(c *Config) { c.Storage.Backend = "sqlite" }, wantErr: true},
		{name: "mongo without uri", mutate: func(c *Config) { c.Storage.Backend = "mongo" }, wantErr: true},
		{name: "memory backend", mutate: func(c *Config) { c.Storage.Backend = "memory" }},
		{name: "bad rate", mutate: func(c *Config) { c.RateLimit.Rate = 0 }, wantErr: true},
		{name: "tls without cert", mutate: func(c *Config) { c.Server.EnableTLS = true }, wantErr: true},
		{name: "worker without interval", mutate: func(c *Config) {
			c.Worker.Enabled = true
			c.Worker.Interval = 0
		}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Auth.JWTSecret = "test-secret"
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

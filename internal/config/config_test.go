package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_FileAndDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9090
  cors_origins: ["http://localhost:3000"]
database:
  driver: memory
auth:
  jwt_secret: "0123456789abcdef"
logger:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:9090", cfg.Server.Addr())
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.CORSOrigins)
	assert.Equal(t, DriverMemory, cfg.Database.Driver)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, "claims-api", cfg.Auth.Audience)
	assert.Equal(t, 12*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 5*time.Second, cfg.Database.BusyTimeout)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("CLAIMS_JWT_SECRET", "from-the-environment")
	t.Setenv("CLAIMS_DATABASE_PATH", "/var/lib/claims/claims.db")

	cfg, err := Load(writeConfig(t, "database:\n  path: local.db\n"))
	require.NoError(t, err)
	assert.Equal(t, "from-the-environment", cfg.Auth.JWTSecret)
	assert.Equal(t, "/var/lib/claims/claims.db", cfg.Database.Path)
}

func TestLoad_WithoutFile(t *testing.T) {
	t.Setenv("CLAIMS_JWT_SECRET", "0123456789abcdef")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "data/claims.db", cfg.Database.Path)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Server:   ServerConfig{Port: 8080},
			Database: DatabaseConfig{Driver: DriverSQLite, Path: "x.db"},
			Auth:     AuthConfig{JWTSecret: "0123456789abcdef"},
		}
	}

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"short secret", func(c *Config) { c.Auth.JWTSecret = "short" }},
		{"unknown driver", func(c *Config) { c.Database.Driver = "postgres" }},
		{"sqlite without path", func(c *Config) { c.Database.Path = " " }},
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
	}

	base := valid()
	require.NoError(t, base.Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

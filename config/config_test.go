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

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	return path
}

func TestSetupDefaults(t *testing.T) {
	path := writeConfig(t, `
[database]
driver = "sqlite"
`)

	cfg, err := Setup(path)
	require.NoError(t, err)

	assert.Equal(t, "CardioCheck", cfg.App.Name)
	assert.Equal(t, 8080, cfg.Host.Port)
	assert.Equal(t, 7*24*time.Hour, cfg.Security.SessionTTL)
	assert.Equal(t, time.Hour, cfg.Security.ResetTokenTTL)
	assert.Equal(t, 6, cfg.Security.CodeLength)
	assert.Equal(t, time.Minute, cfg.Security.ResendCooldown)
	assert.Equal(t, "@every 1h", cfg.Cleanup.TokensSpec)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, "http://localhost:3000", cfg.Host.BaseURL())
	assert.True(t, cfg.Host.SecureCookies, "production sits behind TLS")
}

func TestSetupSecureCookies(t *testing.T) {
	path := writeConfig(t, `
[app]
env = "development"

[database]
driver = "sqlite"
`)

	cfg, err := Setup(path)
	require.NoError(t, err)
	assert.False(t, cfg.Host.SecureCookies)

	t.Setenv("HOST_SECURE_COOKIES", "true")

	cfg, err = Setup(path)
	require.NoError(t, err)
	assert.True(t, cfg.Host.SecureCookies)

	prod := writeConfig(t, `
[database]
driver = "sqlite"

[host]
secure_cookies = false
`)
	t.Setenv("HOST_SECURE_COOKIES", "")

	cfg, err = Setup(prod)
	require.NoError(t, err)
	assert.False(t, cfg.Host.SecureCookies, "explicit opt out wins")
}

func TestSetupFileAndEnv(t *testing.T) {
	path := writeConfig(t, `
[app]
env = "development"

[host]
port = 9000
domain = "cardio.example.com"

[host.ssl]
enabled = true
certificate_path = "/etc/cert.pem"
certificate_key_path = "/etc/key.pem"

[security]
session_ttl = "24h"
`)

	t.Setenv("DATABASE_URL", "postgres://cardio@localhost/cardio")
	t.Setenv("HOST_PORT", "9100")
	t.Setenv("MAIL_HOST", "smtp.example.com")
	t.Setenv("MAIL_SENDER", "noreply@example.com")

	cfg, err := Setup(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "postgres://cardio@localhost/cardio", cfg.Database.DSN)
	assert.Equal(t, 9100, cfg.Host.Port, "env wins over the file")
	assert.Equal(t, 24*time.Hour, cfg.Security.SessionTTL)
	assert.Equal(t, "https://cardio.example.com", cfg.Host.BaseURL())
	assert.True(t, cfg.App.DevMode())
	assert.True(t, cfg.Mail.Configured())
	assert.False(t, cfg.SMS.Configured())
}

func TestSetupMissingFile(t *testing.T) {
	_, err := Setup(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			App:      AppConfig{Env: "production", LogLevel: "info"},
			Host:     HostConfig{Port: 8080},
			Database: DatabaseConfig{Driver: "sqlite"},
			Security: SecurityConfig{
				SessionTTL:          time.Hour,
				ResetTokenTTL:       time.Hour,
				VerificationCodeTTL: time.Minute,
				CodeLength:          6,
				MaxCodeAttempts:     5,
				RateLimit:           10,
			},
		}
	}

	require.NoError(t, valid().Validate())

	tests := []struct {
		name string
		edit func(*Config)
	}{
		{"log level", func(c *Config) { c.App.LogLevel = "loud" }},
		{"env", func(c *Config) { c.App.Env = "staging" }},
		{"port", func(c *Config) { c.Host.Port = 0 }},
		{"ssl cert", func(c *Config) { c.Host.SSL.Enabled = true }},
		{"driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"postgres dsn", func(c *Config) { c.Database.Driver = "postgres" }},
		{"session ttl", func(c *Config) { c.Security.SessionTTL = 0 }},
		{"code length", func(c *Config) { c.Security.CodeLength = 3 }},
		{"code attempts", func(c *Config) { c.Security.MaxCodeAttempts = 0 }},
		{"rate limit", func(c *Config) { c.Security.RateLimit = 0 }},
		{"turnstile", func(c *Config) { c.Security.Turnstile.Enabled = true }},
		{"bucket", func(c *Config) { c.Storage.Enabled = true }},
		{"redis", func(c *Config) { c.Redis.Enabled = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.edit(c)
			assert.Error(t, c.Validate())
		})
	}
}

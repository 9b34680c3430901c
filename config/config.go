// Package config contains code to set the default values and read
// config files to be used throughout the whole application
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

var (
	validLogLevels = []string{"debug", "info", "warn", "error", "fatal"}
	validDrivers   = []string{"postgres", "sqlite"}
	validEnvs      = []string{"development", "production", "test"}
)

type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Host     HostConfig     `mapstructure:"host"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Security SecurityConfig `mapstructure:"security"`
	Mail     MailConfig     `mapstructure:"mail"`
	SMS      SMSConfig      `mapstructure:"sms"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Cleanup  CleanupConfig  `mapstructure:"cleanup"`
	Admin    AdminConfig    `mapstructure:"admin"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	Env      string `mapstructure:"env"`
	LogLevel string `mapstructure:"log_level"`
}

// DevMode reports whether notification simulation output (codes, links)
// may be written to the logs
func (a AppConfig) DevMode() bool {
	return a.Env == "development"
}

type HostConfig struct {
	Port   int       `mapstructure:"port"`
	Domain string    `mapstructure:"domain"`
	CORS   []string  `mapstructure:"cors"`
	SSL    SSLConfig `mapstructure:"ssl"`
	// SecureCookies marks cookies Secure when TLS ends at a proxy in front
	// of the app. Defaults to true outside development.
	SecureCookies bool `mapstructure:"secure_cookies"`
}

// BaseURL is the public origin used when building links sent to users
func (h HostConfig) BaseURL() string {
	scheme := "http"
	if h.SSL.Enabled {
		scheme = "https"
	}

	return scheme + "://" + h.Domain
}

type SSLConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	CertificatePath    string `mapstructure:"certificate_path"`
	CertificateKeyPath string `mapstructure:"certificate_key_path"`
}

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"`
	DSN          string `mapstructure:"dsn"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type SecurityConfig struct {
	SessionTTL          time.Duration   `mapstructure:"session_ttl"`
	ResetTokenTTL       time.Duration   `mapstructure:"reset_token_ttl"`
	VerificationCodeTTL time.Duration   `mapstructure:"verification_code_ttl"`
	CodeLength          int             `mapstructure:"code_length"`
	ResendCooldown      time.Duration   `mapstructure:"resend_cooldown"`
	MaxCodeAttempts     int             `mapstructure:"max_code_attempts"`
	RateLimit           int             `mapstructure:"rate_limit"`
	LoginAttempts       int             `mapstructure:"login_attempts"`
	LoginWindow         time.Duration   `mapstructure:"login_window"`
	Turnstile           TurnstileConfig `mapstructure:"turnstile"`
}

type TurnstileConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	SecretToken string `mapstructure:"secret_token"`
}

type MailConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Sender   string `mapstructure:"sender"`
}

// Configured reports whether enough SMTP settings are present to send real mail
func (m MailConfig) Configured() bool {
	return m.Host != "" && m.Sender != ""
}

type SMSConfig struct {
	AccountSID string `mapstructure:"account_sid"`
	AuthToken  string `mapstructure:"auth_token"`
	From       string `mapstructure:"from"`
}

func (s SMSConfig) Configured() bool {
	return s.AccountSID != "" && s.AuthToken != "" && s.From != ""
}

type StorageConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Bucket          string        `mapstructure:"bucket"`
	Region          string        `mapstructure:"region"`
	Endpoint        string        `mapstructure:"endpoint"`
	AccessKey       string        `mapstructure:"access_key"`
	SecretAccessKey string        `mapstructure:"secret_access_key"`
	PresignTTL      time.Duration `mapstructure:"presign_ttl"`
}

type CleanupConfig struct {
	TokensSpec           string        `mapstructure:"tokens_spec"`
	AccountsSpec         string        `mapstructure:"accounts_spec"`
	UnverifiedAccountTTL time.Duration `mapstructure:"unverified_account_ttl"`
}

type AdminConfig struct {
	BootstrapEmail string `mapstructure:"bootstrap_email"`
}

var envKeys = []string{
	"app.name",
	"app.env",
	"app.log_level",

	"host.port",
	"host.domain",
	"host.cors",
	"host.ssl.enabled",
	"host.ssl.certificate_path",
	"host.ssl.certificate_key_path",
	"host.secure_cookies",

	"database.driver",
	"database.max_open_conns",
	"database.max_idle_conns",

	"redis.enabled",
	"redis.addr",
	"redis.password",
	"redis.db",

	"security.session_ttl",
	"security.reset_token_ttl",
	"security.verification_code_ttl",
	"security.code_length",
	"security.resend_cooldown",
	"security.max_code_attempts",
	"security.rate_limit",
	"security.login_attempts",
	"security.login_window",
	"security.turnstile.enabled",
	"security.turnstile.secret_token",

	"mail.host",
	"mail.port",
	"mail.username",
	"mail.password",
	"mail.sender",

	"sms.account_sid",
	"sms.auth_token",
	"sms.from",

	"storage.enabled",
	"storage.bucket",
	"storage.region",
	"storage.endpoint",
	"storage.access_key",
	"storage.secret_access_key",
	"storage.presign_ttl",

	"cleanup.tokens_spec",
	"cleanup.accounts_spec",
	"cleanup.unverified_account_ttl",

	"admin.bootstrap_email",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "CardioCheck")
	v.SetDefault("app.env", "production")
	v.SetDefault("app.log_level", "info")

	v.SetDefault("host.port", 8080)
	v.SetDefault("host.domain", "localhost:3000")
	v.SetDefault("host.cors", []string{"http://localhost:3000"})
	v.SetDefault("host.ssl.enabled", false)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)

	v.SetDefault("security.session_ttl", 7*24*time.Hour)
	v.SetDefault("security.reset_token_ttl", time.Hour)
	v.SetDefault("security.verification_code_ttl", 10*time.Minute)
	v.SetDefault("security.code_length", 6)
	v.SetDefault("security.resend_cooldown", time.Minute)
	v.SetDefault("security.max_code_attempts", 5)
	v.SetDefault("security.rate_limit", 10)
	v.SetDefault("security.login_attempts", 5)
	v.SetDefault("security.login_window", 15*time.Minute)
	v.SetDefault("security.turnstile.enabled", false)

	v.SetDefault("mail.port", 587)

	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.region", "auto")
	v.SetDefault("storage.presign_ttl", 15*time.Minute)

	v.SetDefault("cleanup.tokens_spec", "@every 1h")
	v.SetDefault("cleanup.accounts_spec", "@daily")
	v.SetDefault("cleanup.unverified_account_ttl", 7*24*time.Hour)
}

// Setup prepares everything config-related so that the app can
// start working. Function will return an error if something
// is critically wrong and the application can't run because of
// that. An empty path looks for config.toml in the working directory,
// a missing file is fine as long as the environment carries the config.
func Setup(path string) (*Config, error) {
	// .env is a convenience for local development only
	_ = godotenv.Load()

	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for _, k := range envKeys {
		v.BindEnv(k)
	}
	// Hosted Postgres providers hand out DATABASE_URL
	v.BindEnv("database.dsn", "DATABASE_DSN", "DATABASE_URL")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !(path == "" && os.IsNotExist(err)) {
			return nil, fmt.Errorf("failed to read config file, %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config, %w", err)
	}

	if !v.IsSet("host.secure_cookies") {
		cfg.Host.SecureCookies = !cfg.App.DevMode()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the values that would make the server misbehave
// instead of failing loudly at startup
func (c *Config) Validate() error {
	if !slices.Contains(validLogLevels, c.App.LogLevel) {
		return errors.New("invalid log level provided")
	}

	if !slices.Contains(validEnvs, c.App.Env) {
		return errors.New("invalid app env provided")
	}

	if c.Host.Port <= 0 {
		return errors.New("invalid port provided")
	}

	if c.Host.SSL.Enabled {
		if c.Host.SSL.CertificatePath == "" {
			return errors.New("no ssl certificate path provided")
		}

		if c.Host.SSL.CertificateKeyPath == "" {
			return errors.New("no ssl certificate key path provided")
		}
	}

	if !slices.Contains(validDrivers, c.Database.Driver) {
		return errors.New("invalid database driver provided")
	}

	if c.Database.Driver == "postgres" && c.Database.DSN == "" {
		return errors.New("database.dsn (or DATABASE_URL) is required for postgres")
	}

	if c.Security.SessionTTL <= 0 || c.Security.ResetTokenTTL <= 0 || c.Security.VerificationCodeTTL <= 0 {
		return errors.New("token ttls must be bigger than 0")
	}

	if c.Security.CodeLength < 4 || c.Security.CodeLength > 10 {
		return errors.New("security.code_length must be between 4 and 10")
	}

	if c.Security.MaxCodeAttempts <= 0 {
		return errors.New("security.max_code_attempts must be bigger than 0")
	}

	if c.Security.RateLimit <= 0 {
		return errors.New("security.rate_limit must be bigger than 0")
	}

	if c.Security.Turnstile.Enabled && c.Security.Turnstile.SecretToken == "" {
		return errors.New("turnstile secret token is missing")
	}

	if c.Storage.Enabled && c.Storage.Bucket == "" {
		return errors.New("bucket can't be empty")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return errors.New("redis.addr can't be empty")
	}

	return nil
}

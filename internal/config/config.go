// Package config reads the process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	Port           string
	Env            string
	AllowedOrigins []string
	SecureCookies  bool

	// Storage
	DBPath string

	// Auth
	JWTSecret  string
	TokenTTL   time.Duration
	SessionTTL time.Duration

	// Observability
	LogLevel  string
	SentryDSN string

	// Backups to S3-compatible storage. Disabled while BackupBucket is empty.
	BackupBucket     string
	BackupEndpoint   string
	BackupRegion     string
	BackupAccessKey  string
	BackupSecretKey  string
	BackupPrefix     string
	BackupPassphrase string
	BackupInterval   time.Duration
	BackupRetention  time.Duration
}

// Load reads every setting, falling back to defaults for unset variables.
// Malformed durations or booleans are reported rather than silently replaced.
func Load() (*Config, error) {
	var errs []error

	cfg := &Config{
		Port:           getEnv("FLATMATE_PORT", "8080"),
		Env:            getEnv("FLATMATE_ENV", "development"),
		AllowedOrigins: splitList(getEnv("FLATMATE_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:3001")),
		DBPath:         getEnv("FLATMATE_DB_PATH", "flatmate.db"),
		JWTSecret:      getEnv("FLATMATE_JWT_SECRET", ""),
		LogLevel:       getEnv("FLATMATE_LOG_LEVEL", "info"),
		SentryDSN:      getEnv("SENTRY_DSN", ""),

		BackupBucket:     getEnv("FLATMATE_BACKUP_BUCKET", ""),
		BackupEndpoint:   getEnv("FLATMATE_BACKUP_ENDPOINT", ""),
		BackupRegion:     getEnv("FLATMATE_BACKUP_REGION", "us-east-1"),
		BackupAccessKey:  getEnv("FLATMATE_BACKUP_ACCESS_KEY", ""),
		BackupSecretKey:  getEnv("FLATMATE_BACKUP_SECRET_KEY", ""),
		BackupPrefix:     getEnv("FLATMATE_BACKUP_PREFIX", ""),
		BackupPassphrase: getEnv("FLATMATE_BACKUP_PASSPHRASE", ""),
	}

	var err error
	if cfg.TokenTTL, err = parseDuration("FLATMATE_TOKEN_TTL", "192h"); err != nil {
		errs = append(errs, err)
	}
	if cfg.SessionTTL, err = parseDuration("FLATMATE_SESSION_TTL", "720h"); err != nil {
		errs = append(errs, err)
	}
	if cfg.BackupInterval, err = parseDuration("FLATMATE_BACKUP_INTERVAL", "24h"); err != nil {
		errs = append(errs, err)
	}
	if cfg.BackupRetention, err = parseDuration("FLATMATE_BACKUP_RETENTION", "720h"); err != nil {
		errs = append(errs, err)
	}
	if cfg.SecureCookies, err = parseBool("FLATMATE_SECURE_COOKIES", cfg.IsProduction()); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports settings the server cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("FLATMATE_JWT_SECRET is required"))
	} else if c.IsProduction() && len(c.JWTSecret) < 32 {
		errs = append(errs, errors.New("FLATMATE_JWT_SECRET must be at least 32 bytes in production"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("FLATMATE_TOKEN_TTL must be positive"))
	}
	if c.SessionTTL <= 0 {
		errs = append(errs, errors.New("FLATMATE_SESSION_TTL must be positive"))
	}
	if c.BackupsEnabled() {
		if c.BackupAccessKey == "" || c.BackupSecretKey == "" {
			errs = append(errs, errors.New("FLATMATE_BACKUP_ACCESS_KEY and FLATMATE_BACKUP_SECRET_KEY are required when backups are enabled"))
		}
		if c.BackupPassphrase == "" {
			errs = append(errs, errors.New("FLATMATE_BACKUP_PASSPHRASE is required when backups are enabled"))
		}
		if c.BackupInterval <= 0 {
			errs = append(errs, errors.New("FLATMATE_BACKUP_INTERVAL must be positive"))
		}
	}
	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) BackupsEnabled() bool {
	return c.BackupBucket != ""
}

// OriginHosts returns the allowed origins without their scheme, the form
// websocket origin checks match against.
func (c *Config) OriginHosts() []string {
	hosts := make([]string, 0, len(c.AllowedOrigins))
	for _, origin := range c.AllowedOrigins {
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			hosts = append(hosts, origin)
			continue
		}
		hosts = append(hosts, u.Host)
	}
	return hosts
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(getEnv(key, fallback))
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func parseBool(key string, fallback bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

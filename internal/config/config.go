package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

type Config struct {
	Port     string
	Env      string
	BaseURL  string
	LogLevel string

	StoreDriver string
	DatabaseURL string
	SQLitePath  string

	JWTSecret        string
	JWTAccessExpiry  time.Duration
	JWTRefreshExpiry time.Duration

	RequestTimeout time.Duration

	// RecordEncryptionKey seals record passwords and notes at rest when set.
	RecordEncryptionKey string

	GitHub OAuthConfig
	GitLab OAuthConfig
	Google OAuthConfig
}

type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

func (o OAuthConfig) Enabled() bool {
	return o.ClientID != "" && o.ClientSecret != ""
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	jwtSecret, err := requireEnv("JWT_SECRET")
	if err != nil {
		return nil, err
	}

	accessExpiry, err := durationEnv("JWT_ACCESS_EXPIRY", 15*time.Minute)
	if err != nil {
		return nil, err
	}

	refreshExpiry, err := durationEnv("JWT_REFRESH_EXPIRY", 168*time.Hour)
	if err != nil {
		return nil, err
	}

	requestTimeout, err := durationEnv("REQUEST_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		BaseURL:  strings.TrimRight(getEnv("BASE_URL", "http://localhost:8080"), "/"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		StoreDriver: strings.ToLower(getEnv("STORE_DRIVER", StorePostgres)),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		SQLitePath:  getEnv("SQLITE_PATH", "passkeep.db"),

		JWTSecret:        jwtSecret,
		JWTAccessExpiry:  accessExpiry,
		JWTRefreshExpiry: refreshExpiry,

		RequestTimeout: requestTimeout,

		RecordEncryptionKey: getEnv("RECORD_ENCRYPTION_KEY", ""),

		GitHub: oauthEnv("GITHUB"),
		GitLab: oauthEnv("GITLAB"),
		Google: oauthEnv("GOOGLE"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("required environment variable not set: DATABASE_URL")
		}
	case StoreSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("required environment variable not set: SQLITE_PATH")
		}
	default:
		return fmt.Errorf("unsupported STORE_DRIVER %q (want %s or %s)", c.StoreDriver, StorePostgres, StoreSQLite)
	}

	if c.RecordEncryptionKey != "" && len(c.RecordEncryptionKey) < 32 {
		return fmt.Errorf("RECORD_ENCRYPTION_KEY must be at least 32 bytes, got %d", len(c.RecordEncryptionKey))
	}

	return nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// SecureCookies reports whether session cookies should carry the Secure flag.
func (c *Config) SecureCookies() bool {
	return strings.HasPrefix(c.BaseURL, "https://")
}

func oauthEnv(prefix string) OAuthConfig {
	return OAuthConfig{
		ClientID:     getEnv(prefix+"_CLIENT_ID", ""),
		ClientSecret: getEnv(prefix+"_CLIENT_SECRET", ""),
		RedirectURL:  getEnv(prefix+"_REDIRECT_URL", ""),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func requireEnv(key string) (string, error) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return "", fmt.Errorf("required environment variable not set: %s", key)
	}
	return value, nil
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}

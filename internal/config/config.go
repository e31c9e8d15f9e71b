package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration.
type Config struct {
	Env      string
	HTTPAddr string
	BaseURL  string

	DBDSN         string
	SessionSecret string

	// APIKeyEncKey is the hex-encoded 32-byte key used for the reversible
	// display encryption of API key secrets.
	APIKeyEncKey []byte

	LogLevel string

	RateLimitRPM int
	SessionDays  int

	InviteTTLDays      int
	PreviewRecordCap   int
	DefaultMaxSearches int

	AnalyticsURL       string
	AnalyticsTimeoutMS int

	UsageRetentionMonths int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Env = strings.TrimSpace(os.Getenv("BW_ENV"))
	if cfg.Env == "" {
		return nil, fmt.Errorf("BW_ENV is required")
	}
	if cfg.Env != "dev" && cfg.Env != "prod" {
		return nil, fmt.Errorf("BW_ENV must be one of: dev, prod (got: %s)", cfg.Env)
	}

	cfg.HTTPAddr = getEnvOrDefault("BW_HTTP_ADDR", ":8080")

	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("BW_BASE_URL")), "/")
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("BW_BASE_URL is required")
	}

	cfg.DBDSN = strings.TrimSpace(os.Getenv("BW_DB_DSN"))
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("BW_DB_DSN is required")
	}

	cfg.SessionSecret = os.Getenv("BW_SESSION_SECRET")
	if cfg.SessionSecret == "" {
		return nil, fmt.Errorf("BW_SESSION_SECRET is required")
	}
	if cfg.Env == "prod" && len(cfg.SessionSecret) < 32 {
		return nil, fmt.Errorf("BW_SESSION_SECRET must be at least 32 characters (currently %d)", len(cfg.SessionSecret))
	}

	encKeyHex := strings.TrimSpace(os.Getenv("BW_API_KEY_ENC_KEY"))
	if encKeyHex == "" {
		return nil, fmt.Errorf("BW_API_KEY_ENC_KEY is required")
	}
	encKey, err := hex.DecodeString(encKeyHex)
	if err != nil {
		return nil, fmt.Errorf("BW_API_KEY_ENC_KEY must be hex-encoded: %w", err)
	}
	if len(encKey) != 32 {
		return nil, fmt.Errorf("BW_API_KEY_ENC_KEY must decode to 32 bytes (got: %d)", len(encKey))
	}
	cfg.APIKeyEncKey = encKey

	cfg.LogLevel = getEnvOrDefault("BW_LOG_LEVEL", "info")
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("BW_LOG_LEVEL must be one of: debug, info, warn, error (got: %s)", cfg.LogLevel)
	}

	cfg.RateLimitRPM, err = getEnvIntOrDefault("BW_RATE_LIMIT_RPM", 120)
	if err != nil {
		return nil, err
	}

	cfg.SessionDays, err = getEnvIntOrDefault("BW_SESSION_DAYS", 7)
	if err != nil {
		return nil, err
	}

	cfg.InviteTTLDays, err = getEnvIntOrDefault("BW_INVITE_TTL_DAYS", 7)
	if err != nil {
		return nil, err
	}
	if cfg.InviteTTLDays <= 0 {
		return nil, fmt.Errorf("BW_INVITE_TTL_DAYS must be positive (got: %d)", cfg.InviteTTLDays)
	}

	cfg.PreviewRecordCap, err = getEnvIntOrDefault("BW_PREVIEW_RECORD_CAP", 5)
	if err != nil {
		return nil, err
	}

	cfg.DefaultMaxSearches, err = getEnvIntOrDefault("BW_DEFAULT_MAX_SEARCHES", 1000)
	if err != nil {
		return nil, err
	}

	cfg.AnalyticsURL = strings.TrimRight(strings.TrimSpace(os.Getenv("BW_ANALYTICS_URL")), "/")
	if cfg.AnalyticsURL == "" {
		return nil, fmt.Errorf("BW_ANALYTICS_URL is required")
	}

	cfg.AnalyticsTimeoutMS, err = getEnvIntOrDefault("BW_ANALYTICS_TIMEOUT_MS", 2000)
	if err != nil {
		return nil, err
	}
	if cfg.AnalyticsTimeoutMS <= 0 || cfg.AnalyticsTimeoutMS > 30000 {
		return nil, fmt.Errorf("BW_ANALYTICS_TIMEOUT_MS must be between 1 and 30000 (got: %d)", cfg.AnalyticsTimeoutMS)
	}

	cfg.UsageRetentionMonths, err = getEnvIntOrDefault("BW_USAGE_RETENTION_MONTHS", 13)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

// IsDev returns true if running in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

// RedactedValues returns a map of config values with secrets redacted.
func (c *Config) RedactedValues() map[string]string {
	return map[string]string{
		"BW_ENV":                    c.Env,
		"BW_HTTP_ADDR":              c.HTTPAddr,
		"BW_BASE_URL":               c.BaseURL,
		"BW_DB_DSN":                 redactDSN(c.DBDSN),
		"BW_SESSION_SECRET":         "[REDACTED]",
		"BW_API_KEY_ENC_KEY":        "[REDACTED]",
		"BW_LOG_LEVEL":              c.LogLevel,
		"BW_RATE_LIMIT_RPM":         fmt.Sprintf("%d", c.RateLimitRPM),
		"BW_SESSION_DAYS":           fmt.Sprintf("%d", c.SessionDays),
		"BW_INVITE_TTL_DAYS":        fmt.Sprintf("%d", c.InviteTTLDays),
		"BW_PREVIEW_RECORD_CAP":     fmt.Sprintf("%d", c.PreviewRecordCap),
		"BW_DEFAULT_MAX_SEARCHES":   fmt.Sprintf("%d", c.DefaultMaxSearches),
		"BW_ANALYTICS_URL":          c.AnalyticsURL,
		"BW_ANALYTICS_TIMEOUT_MS":   fmt.Sprintf("%d", c.AnalyticsTimeoutMS),
		"BW_USAGE_RETENTION_MONTHS": fmt.Sprintf("%d", c.UsageRetentionMonths),
	}
}

func redactDSN(dsn string) string {
	if start := strings.Index(dsn, "://"); start != -1 {
		if end := strings.Index(dsn[start+3:], "@"); end != -1 {
			return dsn[:start+3] + "[REDACTED]" + dsn[start+3+end:]
		}
	}
	return dsn
}

func getEnvOrDefault(key, defaultValue string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(key string, defaultValue int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer (got: %q)", key, value)
	}
	return parsed, nil
}

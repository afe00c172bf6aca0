package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Config aggregates runtime configuration for the ledger service.
type Config struct {
	HTTP     HTTPConfig
	Database DatabaseConfig
	Rewards  RewardsConfig
	Auth     AuthConfig
	Reports  ReportsConfig
	R2       R2Config
	Logging  LoggingConfig
}

// HTTPConfig governs the fiber server.
type HTTPConfig struct {
	Port            string
	AllowedOrigins  string
	ShutdownTimeout time.Duration
}

// DatabaseConfig describes the single backing datastore.
// URL is either a postgres DSN or "sqlite:<path-or-dsn>".
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	Timeout         time.Duration
}

// RewardsConfig holds the fixed award amounts and the pool debit policy.
type RewardsConfig struct {
	ReferralBonus    int64
	JoinReward       int64
	FollowReward     int64
	PoolDebitPolicy  string
	InviteCodeLength int
}

// AuthConfig carries the gateway token and the admin identities fed to the
// admin predicate.
type AuthConfig struct {
	ServiceToken string
	AdminIDs     []string
}

// ReportsConfig controls the periodic pool report. A zero interval disables it.
type ReportsConfig struct {
	PoolReportInterval time.Duration
}

// R2Config holds Cloudflare R2 (S3 compatible) credentials for report exports.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	AccessKeySecret string
	Bucket          string
	PublicBaseURL   string
}

// Enabled reports whether enough R2 settings are present to upload exports.
func (c R2Config) Enabled() bool {
	return c.AccountID != "" && c.AccessKeyID != "" && c.AccessKeySecret != "" && c.Bucket != ""
}

// LoggingConfig controls zerolog output.
type LoggingConfig struct {
	Level      string
	Format     string // console|json
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

const (
	defaultPort            = "5200"
	defaultStorageTimeout  = 5 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultReferralBonus   = 10
	defaultJoinReward      = 5
	defaultFollowReward    = 5
	defaultInviteCodeLen   = 8
)

// Load reads configuration from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		HTTP: HTTPConfig{
			Port:           normalizePort(valueOrDefault("HTTP_PORT", defaultPort)),
			AllowedOrigins: valueOrDefault("ALLOWED_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		},
		Rewards: RewardsConfig{
			PoolDebitPolicy: strings.ToLower(valueOrDefault("POOL_DEBIT_POLICY", "cap")),
		},
		Auth: AuthConfig{
			ServiceToken: strings.TrimSpace(os.Getenv("SERVICE_TOKEN")),
			AdminIDs:     parseCSV(os.Getenv("ADMIN_IDS")),
		},
		R2: R2Config{
			AccountID:       os.Getenv("CLOUDFLARE_ACCOUNT_ID"),
			AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
			AccessKeySecret: os.Getenv("R2_ACCESS_KEY_SECRET"),
			Bucket:          os.Getenv("R2_BUCKET_NAME"),
			PublicBaseURL:   os.Getenv("CDN_BASE_URL"),
		},
		Logging: LoggingConfig{
			Level:  valueOrDefault("LOG_LEVEL", "info"),
			Format: valueOrDefault("LOG_FORMAT", "console"),
			File:   os.Getenv("LOG_FILE"),
		},
	}

	if cfg.Database.URL == "" {
		return Config{}, errors.New("DATABASE_URL environment variable not set")
	}
	if cfg.Auth.ServiceToken == "" {
		return Config{}, errors.New("SERVICE_TOKEN environment variable not set")
	}

	var err error
	ints := []struct {
		key      string
		fallback int
		dst      *int
	}{
		{"DB_MAX_OPEN_CONNS", 20, &cfg.Database.MaxOpenConns},
		{"DB_MAX_IDLE_CONNS", 5, &cfg.Database.MaxIdleConns},
		{"INVITE_CODE_LENGTH", defaultInviteCodeLen, &cfg.Rewards.InviteCodeLength},
		{"LOG_MAX_SIZE_MB", 100, &cfg.Logging.MaxSizeMB},
		{"LOG_MAX_BACKUPS", 3, &cfg.Logging.MaxBackups},
		{"LOG_MAX_AGE_DAYS", 28, &cfg.Logging.MaxAgeDays},
	}
	for _, i := range ints {
		if *i.dst, err = parseIntWithDefault(i.key, i.fallback); err != nil {
			return Config{}, err
		}
	}

	if cfg.Database.Timeout, err = parseDuration("STORAGE_TIMEOUT", defaultStorageTimeout); err != nil {
		return Config{}, err
	}
	if cfg.Database.Timeout <= 0 {
		return Config{}, fmt.Errorf("STORAGE_TIMEOUT must be positive")
	}
	if cfg.Database.ConnMaxLifetime, err = parseDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.HTTP.ShutdownTimeout, err = parseDuration("HTTP_SHUTDOWN_TIMEOUT", defaultShutdownTimeout); err != nil {
		return Config{}, err
	}
	if cfg.Reports.PoolReportInterval, err = parseDuration("POOL_REPORT_INTERVAL", 0); err != nil {
		return Config{}, err
	}

	if cfg.Rewards.ReferralBonus, err = parseAmount("REFERRAL_BONUS", defaultReferralBonus); err != nil {
		return Config{}, err
	}
	if cfg.Rewards.JoinReward, err = parseAmount("JOIN_REWARD", defaultJoinReward); err != nil {
		return Config{}, err
	}
	if cfg.Rewards.FollowReward, err = parseAmount("FOLLOW_REWARD", defaultFollowReward); err != nil {
		return Config{}, err
	}

	switch cfg.Rewards.PoolDebitPolicy {
	case "cap", "strict":
	default:
		return Config{}, fmt.Errorf("invalid POOL_DEBIT_POLICY %q (want cap or strict)", cfg.Rewards.PoolDebitPolicy)
	}
	// Shorter codes make collisions frequent enough that registration slows down.
	if cfg.Rewards.InviteCodeLength < 6 || cfg.Rewards.InviteCodeLength > 32 {
		return Config{}, fmt.Errorf("INVITE_CODE_LENGTH must be between 6 and 32, got %d", cfg.Rewards.InviteCodeLength)
	}

	return cfg, nil
}

// IsAdmin builds the admin predicate injected into the admin routes.
func (c AuthConfig) IsAdmin() func(userID string) bool {
	admins := make(map[string]struct{}, len(c.AdminIDs))
	for _, id := range c.AdminIDs {
		admins[id] = struct{}{}
	}
	return func(userID string) bool {
		_, ok := admins[userID]
		return ok
	}
}

func valueOrDefault(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func parseIntWithDefault(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	val, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s value %q", key, v)
	}
	return val, nil
}

func parseAmount(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	amount, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s value %q", key, v)
	}
	if amount < 0 {
		return 0, fmt.Errorf("%s must not be negative", key)
	}
	return amount, nil
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", key)
	}
	return d, nil
}

func parseCSV(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	var out []string
	for _, field := range strings.Split(value, ",") {
		if field = strings.TrimSpace(field); field != "" {
			out = append(out, field)
		}
	}
	return out
}

func normalizePort(port string) string {
	// Allow values like ":5200".
	return strings.TrimPrefix(port, ":")
}

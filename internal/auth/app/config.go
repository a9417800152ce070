package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/tabsession/sessiond/internal/auth/service"
	"github.com/tabsession/sessiond/pkg/jwtx"
)

type Config struct {
	Issuer string // Issuer claim stamped into every token (default: sessiond)

	AccessSecret  string // Required: HMAC secret for access tokens
	RefreshSecret string // Required: HMAC secret for refresh tokens, must differ from AccessSecret
	AccessTTL     time.Duration
	RefreshTTL    time.Duration

	DatabaseFile  string // Path to the SQLite user database (default: ./sessiond.db)
	RedisAddr     string // host:port of the refresh-token store (default: localhost:6379)
	RedisPassword string
	StoreTimeout  time.Duration // Per-operation deadline against the token store

	RevocationPolicy  service.RevocationPolicy
	MaxActiveSessions int

	Env                  string // Environment (dev, staging, prod) (default: dev)
	LogLevel             string
	LogFormat            string
	Port                 int
	ShutdownGracePeriod  time.Duration
	HousekeepingInterval time.Duration
}

func LoadConfig() Config {
	return Config{
		Issuer: getEnvOrDefault("SESSIOND_ISSUER", "sessiond"),

		AccessSecret:  os.Getenv("SESSIOND_ACCESS_SECRET"),
		RefreshSecret: os.Getenv("SESSIOND_REFRESH_SECRET"),
		AccessTTL:     getEnvDurationOrDefault("SESSIOND_ACCESS_TTL", jwtx.DefaultAccessTokenTTL),
		RefreshTTL:    getEnvDurationOrDefault("SESSIOND_REFRESH_TTL", jwtx.DefaultRefreshTokenTTL),

		DatabaseFile:  getEnvOrDefault("SESSIOND_DATABASE_FILE", "sessiond.db"),
		RedisAddr:     getEnvOrDefault("SESSIOND_REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("SESSIOND_REDIS_PASSWORD"),
		StoreTimeout:  getEnvDurationOrDefault("SESSIOND_STORE_TIMEOUT", 3*time.Second),

		RevocationPolicy: service.RevocationPolicy(
			getEnvOrDefault("SESSIOND_REVOCATION_POLICY", string(service.PolicyRevokeAll)),
		),
		MaxActiveSessions: getEnvIntOrDefault("SESSIOND_MAX_ACTIVE_SESSIONS", 5),

		Env:                  getEnvOrDefault("SESSIOND_ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("SESSIOND_PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SESSIOND_SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("SESSIOND_HOUSEKEEPING_INTERVAL", time.Hour),
	}
}

// Validate catches the misconfigurations that would otherwise surface as
// confusing runtime auth failures.
func (cfg Config) Validate() error {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return errors.New("SESSIOND_ACCESS_SECRET and SESSIOND_REFRESH_SECRET must both be set")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		// Shared secrets would let an access token pass refresh
		// verification.
		return errors.New("access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if cfg.RefreshTTL <= cfg.AccessTTL {
		return fmt.Errorf("refresh TTL %s must exceed access TTL %s", cfg.RefreshTTL, cfg.AccessTTL)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if d, err := time.ParseDuration(value); err == nil {
		return d
	}

	return defaultValue
}

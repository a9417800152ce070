package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tabsession/sessiond/internal/auth/service"
)

func validConfig() Config {
	cfg := LoadConfig()
	cfg.AccessSecret = "access-secret"
	cfg.RefreshSecret = "refresh-secret"
	return cfg
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig()

	require.Equal(t, "sessiond", cfg.Issuer)
	require.Equal(t, service.PolicyRevokeAll, cfg.RevocationPolicy)
	require.Equal(t, 15*time.Minute, cfg.AccessTTL)
	require.Equal(t, 7*24*time.Hour, cfg.RefreshTTL)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, 3*time.Second, cfg.StoreTimeout)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("SESSIOND_REVOCATION_POLICY", "limit_active")
	t.Setenv("SESSIOND_MAX_ACTIVE_SESSIONS", "3")
	t.Setenv("SESSIOND_ACCESS_TTL", "5m")
	t.Setenv("SESSIOND_PORT", "9090")

	cfg := LoadConfig()
	require.Equal(t, service.PolicyLimitActive, cfg.RevocationPolicy)
	require.Equal(t, 3, cfg.MaxActiveSessions)
	require.Equal(t, 5*time.Minute, cfg.AccessTTL)
	require.Equal(t, 9090, cfg.Port)
}

func TestConfigValidate(t *testing.T) {
	t.Run("accepts a sane config", func(t *testing.T) {
		require.NoError(t, validConfig().Validate())
	})

	t.Run("requires both secrets", func(t *testing.T) {
		cfg := validConfig()
		cfg.RefreshSecret = ""
		require.Error(t, cfg.Validate())
	})

	t.Run("rejects a shared secret", func(t *testing.T) {
		cfg := validConfig()
		cfg.RefreshSecret = cfg.AccessSecret
		require.Error(t, cfg.Validate())
	})

	t.Run("refresh TTL must outlive access TTL", func(t *testing.T) {
		cfg := validConfig()
		cfg.RefreshTTL = cfg.AccessTTL
		require.Error(t, cfg.Validate())
	})
}

package access_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrovia/go-access"
)

func TestConfigFromEnvDefaults(t *testing.T) {
	cfg, err := access.ConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "/dashboard", cfg.GetDashboardRoute())
	assert.Equal(t, "/assinatura", cfg.GetSubscriptionRoute())
	assert.Equal(t, "/login", cfg.GetLoginRoute())
	assert.Equal(t, 5, cfg.GetMaxLoginAttempts())
	assert.Equal(t, 15*time.Minute, cfg.GetAttemptWindow())
	assert.Equal(t, 30*time.Minute, cfg.GetSessionTimeout())
	assert.Equal(t, 5*time.Minute, cfg.GetTimeoutWarningLead())
	assert.Equal(t, time.Minute, cfg.GetActivityPollInterval())
}

func TestConfigFromEnvOverrides(t *testing.T) {
	t.Setenv("ACCESS_DASHBOARD_ROUTE", "/painel")
	t.Setenv("ACCESS_MAX_LOGIN_ATTEMPTS", "3")
	t.Setenv("ACCESS_SESSION_TIMEOUT", "10m")

	cfg, err := access.ConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "/painel", cfg.GetDashboardRoute())
	assert.Equal(t, 3, cfg.GetMaxLoginAttempts())
	assert.Equal(t, 10*time.Minute, cfg.GetSessionTimeout())
}

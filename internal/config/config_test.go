package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/casemgmt/portal-gateway/internal/config"
)

func TestEnvVars_Defaults(t *testing.T) {
	c := config.New()

	require.Equal(t, ":3000", c.GetPort())
	require.Equal(t, "Case Portal Gateway", c.GetAppName())
	require.Equal(t, "http://localhost:3000", c.GetAppBaseURL())
	require.Equal(t, "DEV", c.GetEnv())
	require.Empty(t, c.GetRedisURL())
}

func TestEnvVars_PortIsPrefixedWithColon(t *testing.T) {
	c := config.New()

	t.Setenv("PORT", "8080")
	require.Equal(t, ":8080", c.GetPort())

	t.Setenv("PORT", ":9090")
	require.Equal(t, ":9090", c.GetPort())
}

func TestOidc_Scopes(t *testing.T) {
	c := config.New()

	require.Nil(t, c.GetOidcScopes())

	t.Setenv("OIDC_SCOPE", "openid profile offline_access")
	require.Equal(t, []string{"openid", "profile", "offline_access"}, c.GetOidcScopes())
}

func TestOidc_FederatedSettings(t *testing.T) {
	c := config.New()

	require.Equal(t, "case-portal-gateway", c.GetFederatedLoginValue())
	require.False(t, c.GetFederatedMockingEnabled())

	t.Setenv("AZURE_FEDERATED_CREDENTIALS_MOCKING", "true")
	require.True(t, c.GetFederatedMockingEnabled())
}

func TestBridge_TokenBufferSeconds(t *testing.T) {
	c := config.New()

	require.Equal(t, 30, c.GetBridgeTokenBufferSeconds())

	t.Setenv("INTEGRATION_BRIDGE_TOKEN_BUFFER_SECONDS", "60")
	require.Equal(t, 60, c.GetBridgeTokenBufferSeconds())

	t.Setenv("INTEGRATION_BRIDGE_TOKEN_BUFFER_SECONDS", "not-a-number")
	require.Equal(t, 30, c.GetBridgeTokenBufferSeconds())

	t.Setenv("INTEGRATION_BRIDGE_TOKEN_BUFFER_SECONDS", "-5")
	require.Equal(t, 30, c.GetBridgeTokenBufferSeconds())
}

func TestBridge_RequestTimeoutSeconds(t *testing.T) {
	c := config.New()

	require.Equal(t, 10, c.GetBridgeRequestTimeoutSeconds())

	t.Setenv("INTEGRATION_BRIDGE_REQUEST_TIMEOUT_SECONDS", "5")
	require.Equal(t, 5, c.GetBridgeRequestTimeoutSeconds())

	t.Setenv("INTEGRATION_BRIDGE_REQUEST_TIMEOUT_SECONDS", "0")
	require.Equal(t, 10, c.GetBridgeRequestTimeoutSeconds())
}

func TestSession_CookieSettings(t *testing.T) {
	c := config.New()

	require.Equal(t, 4*time.Hour, c.GetSessionCookieTTL())
	require.True(t, c.GetSessionCookieSecure())

	t.Setenv("SESSION_COOKIE_TTL_HOURS", "12")
	require.Equal(t, 12*time.Hour, c.GetSessionCookieTTL())

	t.Setenv("SESSION_COOKIE_TTL_HOURS", "0")
	require.Equal(t, 4*time.Hour, c.GetSessionCookieTTL())

	t.Setenv("SESSION_COOKIE_SECURE", "false")
	require.False(t, c.GetSessionCookieSecure())
}

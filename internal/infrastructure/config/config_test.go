package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_KeycloakDefaults(t *testing.T) {
	t.Setenv("KEYCLOAK_SERVER_URL", "http://keycloak:8080")
	t.Setenv("KEYCLOAK_REALM", "firefly")
	t.Setenv("KEYCLOAK_CLIENT_ID", "security-center")

	cfg, err := Load(context.Background())
	require.NoError(t, err)

	require.Equal(t, ProviderKeycloak, cfg.IDP.Provider)
	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, 30*time.Minute, cfg.Session.Timeout)
	require.True(t, cfg.Session.SlidingExpiration)
	require.Equal(t, 8*time.Hour, cfg.Session.MaxTTL)
	require.Equal(t, CacheRedis, cfg.Session.Cache)
	require.True(t, cfg.Mapping.FallbackEnabled)
	require.Equal(t, []string{"openid", "profile", "email"}, cfg.Keycloak.Scopes)
	require.True(t, cfg.NeedsRedis())
}

func TestLoad_MissingProviderSettings(t *testing.T) {
	t.Setenv("IDP_PROVIDER", "cognito")
	t.Setenv("COGNITO_REGION", "eu-west-1")

	_, err := Load(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "COGNITO_USER_POOL_ID is required")
	require.Contains(t, err.Error(), "COGNITO_CLIENT_ID is required")
}

func TestLoad_UnknownProvider(t *testing.T) {
	t.Setenv("IDP_PROVIDER", "ldap")

	_, err := Load(context.Background())
	require.ErrorContains(t, err, `IDP_PROVIDER "ldap"`)
}

func TestLoad_LocalWithMemoryCache(t *testing.T) {
	t.Setenv("IDP_PROVIDER", " Local ")
	t.Setenv("LOCAL_IDP_SECRET", "s3cret")
	t.Setenv("SESSION_CACHE", "memory")
	t.Setenv("SESSION_TIMEOUT", "5m")
	t.Setenv("SESSION_MAX_TTL", "1h")
	t.Setenv("IDENTITY_FALLBACK_ENABLED", "false")

	cfg, err := Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, ProviderLocal, cfg.IDP.Provider)
	require.Equal(t, CacheMemory, cfg.Session.Cache)
	require.Equal(t, 5*time.Minute, cfg.Session.Timeout)
	require.False(t, cfg.Mapping.FallbackEnabled)
	require.True(t, cfg.NeedsMongo())
	require.True(t, cfg.NeedsRedis(), "local provider keeps its revocation list in redis")
}

func TestValidate_MaxTTLShorterThanTimeout(t *testing.T) {
	cfg := &Config{
		IDP:     IDPConfig{Provider: ProviderLocal},
		Local:   LocalIDPConfig{Secret: "x"},
		Mongo:   MongoConfig{URI: "mongodb://localhost"},
		Session: SessionConfig{Cache: CacheMemory, Timeout: time.Hour, MaxTTL: time.Minute},
	}
	require.ErrorContains(t, cfg.Validate(), "SESSION_MAX_TTL")
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// TestPurpose: Validates defaults and environment overrides.
// Scope: Unit Test
// Security: Token lifetimes and default tenant come from configuration
// Expected: Unset keys take defaults; set keys override them; the default tenant parses as a UUID.
// Test Case ID: CFG-01
func TestLoad_EnvironmentOverrides(t *testing.T) {
	tenantID := uuid.MustParse("0190a1b2-0000-7000-8000-0000000000aa")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("AUTH_APP_SECRET", testSecret)
	t.Setenv("AUTH_TOKEN_TTL", "30m")
	t.Setenv("AUTH_DEFAULT_TENANT", tenantID.String())
	t.Setenv("ENVIRONMENT", "Production")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 30*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.RefreshTTL)
	require.NotNil(t, cfg.Auth.DefaultTenant)
	assert.Equal(t, tenantID, *cfg.Auth.DefaultTenant)
	assert.True(t, cfg.Auth.Production())
	assert.Equal(t, 64, cfg.Cache.RoleCacheSize)
}

// TestPurpose: Validates that APP_ENVIRONMENT wins over ENVIRONMENT.
// Scope: Unit Test
// Security: Production lockout of test identities depends on this signal
// Expected: APP_ENVIRONMENT is used when both are set.
// Test Case ID: CFG-02
func TestLoad_EnvironmentPrecedence(t *testing.T) {
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("AUTH_APP_SECRET", testSecret)
	t.Setenv("APP_ENVIRONMENT", "staging")
	t.Setenv("ENVIRONMENT", "production")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "staging", cfg.Auth.Environment)
	assert.False(t, cfg.Auth.Production())
}

// TestPurpose: Validates the YAML file overlay.
// Scope: Unit Test
// Expected: File values apply where the environment is silent; the environment wins otherwise.
// Test Case ID: CFG-03
func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "DB_PASSWORD: from-file\nAUTH_APP_SECRET: " + testSecret + "\nserver_port: 9090\nROLE_CACHE_SIZE: 8\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("ROLE_CACHE_SIZE", "32")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Database.Password)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 32, cfg.Cache.RoleCacheSize)
}

// TestPurpose: Validates configuration rejection.
// Scope: Unit Test
// Security: Weak signing secrets are refused at startup
// Expected: Missing database credentials, short secrets and malformed tenant ids fail to load.
// Test Case ID: CFG-04
func TestLoad_Invalid(t *testing.T) {
	t.Run("short secret", func(t *testing.T) {
		t.Setenv("DB_PASSWORD", "secret")
		t.Setenv("AUTH_APP_SECRET", "short")
		_, err := Load()
		assert.ErrorContains(t, err, "AUTH_APP_SECRET")
	})

	t.Run("no database credentials", func(t *testing.T) {
		t.Setenv("DB_PASSWORD", "")
		t.Setenv("AUTH_APP_SECRET", testSecret)
		_, err := Load()
		assert.ErrorContains(t, err, "DB_PASSWORD")
	})

	t.Run("malformed default tenant", func(t *testing.T) {
		t.Setenv("DB_PASSWORD", "secret")
		t.Setenv("AUTH_APP_SECRET", testSecret)
		t.Setenv("AUTH_DEFAULT_TENANT", "not-a-uuid")
		_, err := Load()
		assert.ErrorContains(t, err, "AUTH_DEFAULT_TENANT")
	})
}

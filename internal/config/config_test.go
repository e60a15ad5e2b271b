package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestPurpose: Validates defaults and environment overrides.
// Scope: Unit Test
// Expected: Unset variables take defaults; malformed values fall back to defaults.
// Test Case ID: CFG-01
func TestConfig_LoadDefaultsAndOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("AUTH_JWT_SECRET", "test-secret")
	t.Setenv("RATELIMIT_RPS", "2.5")
	t.Setenv("SERVER_READ_TIMEOUT", "not-a-duration")
	t.Setenv("SUPER_ADMIN_EMAIL", "root@coachgrid.test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 2.5, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, "root@coachgrid.test", cfg.Bootstrap.SuperAdminEmail)
	assert.Equal(t, uint32(65536), cfg.Security.Argon2Memory)
}

// TestPurpose: Validates configuration rules.
// Scope: Unit Test
// Security: Secure Defaults (CWE-1188)
// Expected: Postgres requires a DB password; a JWT secret is always required; demo seeding needs the memory store.
// Test Case ID: CFG-02
func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"postgres without password", Config{Store: StoreConfig{Driver: DriverPostgres}, Auth: AuthConfig{JWTSecret: "s"}}, "DB_PASSWORD"},
		{"missing secret", Config{Store: StoreConfig{Driver: DriverMemory}}, "AUTH_JWT_SECRET"},
		{"unknown driver", Config{Store: StoreConfig{Driver: "mongo"}, Auth: AuthConfig{JWTSecret: "s"}}, "STORE_DRIVER"},
		{"seed on postgres", Config{
			Store:     StoreConfig{Driver: DriverPostgres},
			Database:  DatabaseConfig{Password: "p"},
			Auth:      AuthConfig{JWTSecret: "s"},
			Bootstrap: BootstrapConfig{SeedDemo: true},
		}, "SEED_DEMO"},
		{"memory ok", Config{Store: StoreConfig{Driver: DriverMemory}, Auth: AuthConfig{JWTSecret: "s"}}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GO_ENV", "test")
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("PORT", "")
	t.Setenv("ALLOWED_ORIGINS", "")
	t.Setenv("JWT_ACCESS_TTL", "")
	t.Setenv("STORAGE_PROVIDER", "")
	t.Setenv("APP_TIMEZONE", "")
	t.Setenv("STREAK_RESET_ENABLED", "")
	t.Setenv("PUBLIC_URL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:3000"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 30*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, devJWTSecret, cfg.Auth.JWTSecret)
	assert.Equal(t, "local", cfg.Storage.Provider)
	assert.Equal(t, time.UTC, cfg.Server.Location)
	assert.Equal(t, "http://localhost:8000", cfg.Server.PublicURL)
	assert.True(t, cfg.Jobs.StreakResetEnabled)
	assert.False(t, cfg.IsProduction())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GO_ENV", "test")
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("PORT", "9090")
	t.Setenv("ALLOWED_ORIGINS", " https://a.example , https://b.example ,")
	t.Setenv("JWT_ACCESS_TTL", "5m")
	t.Setenv("BCRYPT_COST", "4")
	t.Setenv("STREAK_RESET_ENABLED", "false")
	t.Setenv("APP_TIMEZONE", "America/Bogota")
	t.Setenv("PUBLIC_URL", "https://api.slangmaster.example/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 5*time.Minute, cfg.Auth.AccessTTL)
	assert.Equal(t, 4, cfg.Auth.BCryptCost)
	assert.False(t, cfg.Jobs.StreakResetEnabled)
	assert.Equal(t, "America/Bogota", cfg.Server.Location.String())
	assert.Equal(t, "https://api.slangmaster.example", cfg.Server.PublicURL)
}

func TestLoadInvalidFallsBack(t *testing.T) {
	t.Setenv("GO_ENV", "test")
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("BCRYPT_COST", "not-a-number")
	t.Setenv("JWT_REFRESH_TTL", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 12, cfg.Auth.BCryptCost)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.RefreshTTL)
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"postgres without url", map[string]string{"DB_DRIVER": "postgres", "DATABASE_URL": ""}},
		{"unknown driver", map[string]string{"DB_DRIVER": "sqlite"}},
		{"production without secret", map[string]string{"DB_DRIVER": "memory", "GO_ENV": "production", "JWT_SECRET": ""}},
		{"r2 without bucket", map[string]string{"DB_DRIVER": "memory", "STORAGE_PROVIDER": "r2", "R2_BUCKET_NAME": ""}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("GO_ENV", "test")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv(t *testing.T) {
	t.Run("requires jwt secret", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "")
		_, err := LoadFromEnv()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "JWT_SECRET")
	})

	t.Run("defaults", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "secret")
		cfg, err := LoadFromEnv()
		require.NoError(t, err)

		assert.Equal(t, ":8080", cfg.HTTPAddr)
		assert.Equal(t, "fs", cfg.Storage.Driver)
		assert.Equal(t, time.Hour, cfg.Security.JWTAccessTTL)
		assert.Equal(t, 10*time.Minute, cfg.Security.OTPTTL)
		assert.Equal(t, time.Minute, cfg.Security.OTPCooldown)
		assert.Equal(t, 10*time.Minute, cfg.Security.LookupCacheTTL)
		assert.Equal(t, "http://localhost:7011", cfg.Gateway.Upstreams["excel"])
		assert.Equal(t, "http://localhost:7012", cfg.Gateway.Upstreams["additives"])
		assert.Equal(t, 300*time.Second, cfg.Gateway.ExcelTimeout)
		assert.Equal(t, 5*time.Second, cfg.Server.RequestTimeout)
		assert.Equal(t, 2*time.Minute, cfg.Server.UploadTimeout)
		assert.Equal(t, 15*time.Minute, cfg.Storage.PresignTTL)
		_, hasShips := cfg.Gateway.Upstreams["ships"]
		assert.False(t, hasShips)
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "secret")
		t.Setenv("SHIPS_SERVICE_URL", "http://ships:7004/")
		t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
		t.Setenv("MIGRATE_ON_START", "yes")
		t.Setenv("GATEWAY_RETRY_MAX", "5")
		t.Setenv("STORAGE_MAX_UPLOAD_MB", "5")
		t.Setenv("OTP_RESEND_COOLDOWN", "30s")
		t.Setenv("UPLOAD_TIMEOUT", "5m")
		t.Setenv("EXCEL_INTEGRATION_SERVICE_URL", "http://excel:7011")

		cfg, err := LoadFromEnv()
		require.NoError(t, err)

		assert.Equal(t, "http://ships:7004", cfg.Gateway.Upstreams["ships"])
		assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Security.CORSOrigins)
		assert.True(t, cfg.MigrateOnStart)
		assert.Equal(t, 5, cfg.Gateway.RetryMax)
		assert.Equal(t, int64(5<<20), cfg.Storage.MaxUploadSize)
		assert.Equal(t, 30*time.Second, cfg.Security.OTPCooldown)
		assert.Equal(t, 5*time.Minute, cfg.Server.UploadTimeout)
		assert.Equal(t, "http://excel:7011", cfg.Gateway.Upstreams["excel"])
	})

	t.Run("invalid storage driver", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "secret")
		t.Setenv("STORAGE_DRIVER", "ftp")
		_, err := LoadFromEnv()
		require.Error(t, err)
	})

	t.Run("s3 needs bucket", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "secret")
		t.Setenv("STORAGE_DRIVER", "s3")
		_, err := LoadFromEnv()
		require.Error(t, err)

		t.Setenv("STORAGE_S3_BUCKET", "memp")
		cfg, err := LoadFromEnv()
		require.NoError(t, err)
		assert.Equal(t, "memp", cfg.Storage.S3Bucket)
	})
}

func TestGetDurationFallsBackOnGarbage(t *testing.T) {
	t.Setenv("SOME_TIMEOUT", "soon")
	assert.Equal(t, 3*time.Second, getDuration("SOME_TIMEOUT", 3*time.Second))
}

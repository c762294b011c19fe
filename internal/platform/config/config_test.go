package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"KYC_ADDR", "MAX_FILE_SIZE", "ALLOWED_EXTENSIONS", "RATE_LIMIT_WINDOW", "SECRET_KEY", "DEFAULT_PAGE_SIZE", "TRUSTED_PROXIES", "READ_TIMEOUT", "UPLOAD_TIMEOUT"} {
		t.Setenv(key, "")
	}

	cfg := FromEnv()

	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, int64(20*1024*1024), cfg.Upload.MaxFileSize)
	assert.Equal(t, []string{"jpg", "jpeg", "png"}, cfg.Upload.AllowedExtensions)
	assert.Equal(t, []string{"image/jpeg", "image/png"}, cfg.Upload.AllowedMIMETypes)
	assert.Equal(t, 1920, cfg.Upload.MaxWidth)
	assert.Equal(t, 85, cfg.Upload.Quality)
	assert.Equal(t, 10, cfg.Pagination.DefaultPageSize)
	assert.Equal(t, 100, cfg.Pagination.MaxPageSize)
	assert.Equal(t, 60*time.Second, cfg.RateLimit.Window)
	assert.True(t, cfg.DebugErrors())
	assert.Empty(t, cfg.Server.TrustedProxies)
	assert.Equal(t, 2*time.Minute, cfg.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.Upload.Timeout)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("MAX_FILE_SIZE", "1048576")
	t.Setenv("ALLOWED_EXTENSIONS", " JPG , png ,jpg")
	t.Setenv("RATE_LIMIT_WINDOW", "2m")
	t.Setenv("UPLOAD_TIMEOUT", "5")
	t.Setenv("CORS_ORIGINS", "https://admin.example.com")
	t.Setenv("STORAGE_SIGNED_URLS", "true")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.0.2.10")
	t.Setenv("READ_TIMEOUT", "10m")

	cfg := FromEnv()

	assert.Equal(t, int64(1048576), cfg.Upload.MaxFileSize)
	assert.Equal(t, []string{"jpg", "png"}, cfg.Upload.AllowedExtensions)
	assert.Equal(t, 2*time.Minute, cfg.RateLimit.Window)
	assert.Equal(t, 5*time.Second, cfg.Upload.Timeout)
	assert.Equal(t, []string{"https://admin.example.com"}, cfg.Server.CORSOrigins)
	assert.True(t, cfg.Storage.SignedURLs)
	assert.Equal(t, []string{"10.0.0.0/8", "192.0.2.10"}, cfg.Server.TrustedProxies)
	assert.Equal(t, 10*time.Minute, cfg.Server.ReadTimeout)
}

func TestValidate(t *testing.T) {
	t.Run("reports every missing backend setting", func(t *testing.T) {
		cfg := Config{
			Upload:     Upload{MaxFileSize: 1, Quality: 85, MaxWidth: 1920},
			Pagination: Pagination{DefaultPageSize: 10, MaxPageSize: 100},
		}
		problems := cfg.Validate()
		assert.Contains(t, problems, "DATABASE_URL is required")
		assert.Contains(t, problems, "STORAGE_ENDPOINT is required")
	})

	t.Run("production rejects the default secret and plain http storage", func(t *testing.T) {
		cfg := Config{
			Server:     Server{Environment: "production", SecretKey: DefaultSecretKey},
			Database:   Database{URL: "postgres://db"},
			Storage:    Storage{Endpoint: "http://minio:9000", AccessKey: "a", SecretKey: "b"},
			Upload:     Upload{MaxFileSize: 1, Quality: 85, MaxWidth: 1920},
			Pagination: Pagination{DefaultPageSize: 10, MaxPageSize: 100},
		}
		problems := cfg.Validate()
		require.Len(t, problems, 2)
		assert.Contains(t, problems, "SECRET_KEY must be changed in production")
		assert.Contains(t, problems, "STORAGE_ENDPOINT must start with https://")
	})

	t.Run("malformed trusted proxy is reported", func(t *testing.T) {
		cfg := Config{
			Server:     Server{TrustedProxies: []string{"10.0.0.0/40"}},
			Database:   Database{URL: "postgres://db"},
			Storage:    Storage{Endpoint: "http://minio:9000", AccessKey: "a", SecretKey: "b"},
			Upload:     Upload{MaxFileSize: 1, Quality: 85, MaxWidth: 1920},
			Pagination: Pagination{DefaultPageSize: 10, MaxPageSize: 100},
		}
		problems := cfg.Validate()
		require.Len(t, problems, 1)
		assert.Contains(t, problems[0], "TRUSTED_PROXIES")
	})

	t.Run("complete configuration passes", func(t *testing.T) {
		cfg := Config{
			Server:     Server{Environment: "production", SecretKey: "s3cr3t"},
			Database:   Database{URL: "postgres://db"},
			Storage:    Storage{Endpoint: "https://storage.example.com", AccessKey: "a", SecretKey: "b"},
			Upload:     Upload{MaxFileSize: 1, Quality: 85, MaxWidth: 1920},
			Pagination: Pagination{DefaultPageSize: 10, MaxPageSize: 100},
		}
		assert.Empty(t, cfg.Validate())
		assert.False(t, cfg.DebugErrors())
	})
}

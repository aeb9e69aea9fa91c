package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	// Keep a developer's .env or shell from leaking into the assertions.
	t.Chdir(t.TempDir())
	for _, key := range []string{"DATABASE_DSN", "CLEANUP_SECRET", "REDIS_URL", "VAPID_PUBLIC_KEY", "VAPID_PRIVATE_KEY"} {
		t.Setenv(key, "")
	}

	t.Run("Reads values from the file", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, `
server:
  port: 9090
database:
  driver: sqlite
  dsn: "file::memory:"
dispatch:
  freshness_minutes: 5
  max_recipients: 3
retention:
  default_days: 7
  admin_secret: "from-file"
  interval_seconds: 60
device_directory:
  backend: redis
  redis_url: "redis://cache:6379/1"
`))
		require.NoError(t, err)

		assert.Equal(t, 9090, cfg.Server.Port)
		assert.Equal(t, "sqlite", cfg.Database.Driver)
		assert.Equal(t, 5*time.Minute, cfg.Dispatch.Freshness)
		assert.Equal(t, 3, cfg.Dispatch.MaxRecipients)
		assert.Equal(t, 7, cfg.Retention.DefaultDays)
		assert.Equal(t, "from-file", cfg.Retention.AdminSecret)
		assert.Equal(t, time.Minute, cfg.Retention.Interval)
		assert.Equal(t, "redis", cfg.DeviceDirectory.Backend)
		assert.Equal(t, "redis://cache:6379/1", cfg.DeviceDirectory.RedisURL)
	})

	t.Run("Fills defaults", func(t *testing.T) {
		cfg, err := Load(writeConfig(t, "server: {}\n"))
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Server.Port)
		assert.Equal(t, 10.0, cfg.Server.RateLimitPerSec)
		assert.Equal(t, 20, cfg.Server.RateLimitBurst)
		assert.Equal(t, "postgres", cfg.Database.Driver)
		assert.Equal(t, 3600, cfg.Push.TTL)
		assert.Equal(t, 1, cfg.WorkerPool.Size)
		assert.Equal(t, 100, cfg.WorkerPool.QueueSize)
		assert.Equal(t, 10*time.Minute, cfg.Dispatch.Freshness)
		assert.Equal(t, 10, cfg.Dispatch.MaxRecipients)
		assert.Equal(t, 200, cfg.Dispatch.CandidateLimit)
		assert.Equal(t, 30, cfg.Retention.DefaultDays)
		assert.Equal(t, 24*time.Hour, cfg.Retention.Interval)
		assert.Empty(t, cfg.Retention.AdminSecret)
		assert.Equal(t, "gorm", cfg.DeviceDirectory.Backend)
	})

	t.Run("Environment overrides the file", func(t *testing.T) {
		t.Setenv("DATABASE_DSN", "postgres://env")
		t.Setenv("CLEANUP_SECRET", "from-env")
		t.Setenv("VAPID_PUBLIC_KEY", "pub")
		t.Setenv("VAPID_PRIVATE_KEY", "priv")

		cfg, err := Load(writeConfig(t, `
database:
  dsn: "postgres://file"
retention:
  admin_secret: "from-file"
`))
		require.NoError(t, err)

		assert.Equal(t, "postgres://env", cfg.Database.DSN)
		assert.Equal(t, "from-env", cfg.Retention.AdminSecret)
		assert.Equal(t, "pub", cfg.Push.PublicKey)
		assert.Equal(t, "priv", cfg.Push.PrivateKey)
	})

	t.Run("Missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})
}

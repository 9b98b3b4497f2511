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

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
database:
  dsn: "file::memory:"
  driver: SQLite
auth:
  jwt_secret: s3cret
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 12*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 1, cfg.WorkerPool.Size)
	assert.Equal(t, 256, cfg.WorkerPool.QueueSize)
	assert.Equal(t, time.Hour, cfg.Reminder.Interval)
	assert.Equal(t, 30, cfg.Reminder.WarrantyWindow)
	assert.Equal(t, 24*time.Hour, cfg.Reminder.Dedupe)
	assert.Equal(t, time.UTC, cfg.Reminder.Location)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.Push.Enabled())
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
database:
  dsn: "from-file"
auth:
  jwt_secret: file-secret
`)
	t.Setenv("DATABASE_DSN", "from-env")
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("SMTP_PASSWORD", "smtp")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Database.DSN)
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, "smtp", cfg.Mail.Password)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "auth:\n  jwt_secret: x\n"))
	assert.ErrorContains(t, err, "database.dsn")

	_, err = Load(writeConfig(t, "database:\n  dsn: x\n  driver: mysql\nauth:\n  jwt_secret: x\n"))
	assert.ErrorContains(t, err, "not supported")

	_, err = Load(writeConfig(t, "database:\n  dsn: x\n"))
	assert.ErrorContains(t, err, "jwt_secret")

	_, err = Load(writeConfig(t, "database:\n  dsn: x\nauth:\n  jwt_secret: x\nreminder:\n  timezone: Nowhere/Land\n"))
	assert.ErrorContains(t, err, "reminder.timezone")
}

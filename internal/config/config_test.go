package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_Defaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, "log:\n  level: debug\n"))
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "0.0.0.0:8080", cfg.Addr())
	require.Equal(t, DriverMemory, cfg.Database.Driver)
	require.Equal(t, "uploads", cfg.Uploads.Dir)
	require.Equal(t, int64(10<<20), cfg.Uploads.MaxBytes)
	require.Equal(t, 7*24*time.Hour, cfg.Auth.TokenTTL)
	require.False(t, cfg.Auth.SecureCookie)
	require.Equal(t, "auction_events", cfg.Redis.Channel)
	require.Empty(t, cfg.Redis.Address)
	require.Equal(t, "@every 10m", cfg.Reconcile.Schedule)
	require.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadFromFile_FileValues(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, `
server:
  port: 9090
database:
  driver: SQLite
  path: /tmp/auctions.db
redis:
  address: localhost:6379
auth:
  token_ttl: 1h
`))
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, DriverSQLite, cfg.Database.Driver)
	require.Equal(t, "/tmp/auctions.db", cfg.Database.Path)
	require.Equal(t, "localhost:6379", cfg.Redis.Address)
	require.Equal(t, time.Hour, cfg.Auth.TokenTTL)
	require.Contains(t, cfg.String(), "sqlite")
}

func TestLoadFromFile_EnvOverridesFile(t *testing.T) {
	t.Setenv("SERVER_PORT", "7070")
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("UPLOADS_DIR", "/srv/uploads")
	t.Setenv("AUTH_SECURE_COOKIE", "true")

	cfg, err := LoadFromFile(writeConfig(t, "server:\n  port: 9090\n"))
	require.NoError(t, err)

	require.Equal(t, 7070, cfg.Server.Port)
	require.Equal(t, "from-env", cfg.Auth.JWTSecret)
	require.Equal(t, "/srv/uploads", cfg.Uploads.Dir)
	require.True(t, cfg.Auth.SecureCookie)
	require.NotContains(t, cfg.String(), "from-env")
}

func TestLoadFromFile_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "unknown_driver", body: "database:\n  driver: postgres\n"},
		{name: "bad_port", body: "server:\n  port: 70000\n"},
		{name: "zero_upload_limit", body: "uploads:\n  max_bytes: 0\n"},
		{name: "sqlite_without_path", body: "database:\n  driver: sqlite\n  path: \"\"\n"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tc.body))
			require.Error(t, err)
		})
	}

	_, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr())
	assert.Equal(t, 7*24*time.Hour, cfg.Credential.GetTTL())
	assert.Equal(t, 5*time.Minute, cfg.Session.GetTTL())
	assert.Equal(t, time.Minute, cfg.Session.GetSweepInterval())
}

func TestLoadMergesFilesAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "renown.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[server]
port = 8088

[storage]
backend = "redis"
redis_url = "redis://cache:6379/1"

[session]
ttl = "90s"
`), 0o600))

	t.Setenv("RENOWN_LOG_LEVEL", "debug")
	t.Setenv("RENOWN_AUDIENCE", "console")

	cfg, err := Load(filepath.Join(dir, "missing.toml"), path)
	require.NoError(t, err)

	assert.Equal(t, 8088, cfg.Server.Port)
	assert.Equal(t, "redis", cfg.Storage.Backend)
	assert.Equal(t, "redis://cache:6379/1", cfg.Storage.RedisURL)
	assert.Equal(t, 90*time.Second, cfg.Session.GetTTL())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "console", cfg.Credential.Audience)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("RENOWN_STORAGE", "postgres")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres")
}

func TestLoadRejectsBadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("server = ["), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

func TestDurationFallback(t *testing.T) {
	c := CredentialConfig{TTL: "soon"}
	assert.Equal(t, 7*24*time.Hour, c.GetTTL())
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, env := range envKeys {
		t.Setenv(env, "")
		os.Unsetenv(env)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Addr)
	assert.Equal(t, ":8080", cfg.ListenAddr())
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.LogJSON)
	assert.Equal(t, DefaultCozeURL, cfg.Coze.URL)
	assert.Equal(t, DefaultCozeProjectID, cfg.Coze.ProjectID)
	assert.Empty(t, cfg.Coze.Token)
	assert.Equal(t, 60*time.Second, cfg.Coze.IdleTimeout)
}

func TestLoadFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("COZE_API_TOKEN", "secret")
	t.Setenv("COZE_API_URL", "http://upstream.local/stream_run")
	t.Setenv("COZE_PROJECT_ID", "42")
	t.Setenv("UPSTREAM_IDLE_TIMEOUT", "5s")
	t.Setenv("ADDR", "127.0.0.1:9000")
	t.Setenv("LOG_JSON", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.Coze.Token)
	assert.Equal(t, "http://upstream.local/stream_run", cfg.Coze.URL)
	assert.Equal(t, int64(42), cfg.Coze.ProjectID)
	assert.Equal(t, 5*time.Second, cfg.Coze.IdleTimeout)
	assert.Equal(t, "127.0.0.1:9000", cfg.ListenAddr())
	assert.True(t, cfg.LogJSON)
}

func TestLoadFileThenEnvOverride(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "carmatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: "9090"
log_level: debug
coze:
  api_token: from-file
  project_id: 7
`), 0o600))
	t.Setenv("COZE_API_TOKEN", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "9090", cfg.Addr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "from-env", cfg.Coze.Token)
	assert.Equal(t, int64(7), cfg.Coze.ProjectID)
}

func TestLoadRejectsBadLevel(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOG_LEVEL", "chatty")

	_, err := Load("")
	assert.Error(t, err)
}

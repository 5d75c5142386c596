package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, int64(1000), cfg.Tracking.MinDurationMs)
	assert.Equal(t, []string{"chrome", "chrome-extension"}, cfg.Tracking.IgnoredSchemes)
	assert.Empty(t, cfg.Tracking.ExcludeDomains)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, "~/.config/dwell", cfg.Storage.Path)
	assert.Equal(t, "dwell.db", cfg.Storage.SQLiteFile)
	assert.Equal(t, 90, cfg.Storage.RetentionDays)
	assert.Equal(t, "127.0.0.1:6379", cfg.Storage.Redis.Addr)
	assert.Equal(t, "dwell", cfg.Storage.Redis.KeyPrefix)
	assert.Equal(t, "127.0.0.1", cfg.Daemon.Host)
	assert.Equal(t, 8722, cfg.Daemon.Port)
	assert.Equal(t, int64(1<<20), cfg.Daemon.MaxRequestSize)
	assert.Equal(t, 256, cfg.Daemon.QueueSize)
	assert.Empty(t, cfg.Logging.Level)
	assert.Empty(t, cfg.Logging.Format)
	assert.Equal(t, 500, cfg.Logging.DebugBuffer)
	assert.Equal(t, "local", cfg.Env)
	assert.NoError(t, cfg.Validate())
}

func TestLoadValidYAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	yamlContent := `
tracking:
  min_duration_ms: 2000
  ignored_schemes: ["chrome:", "Edge", "about"]
  exclude_domains: ["Mail.Example.com"]
daemon:
  port: 9999
logging:
  level: "debug"
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(yamlContent), 0644))

	cfg, err := Load(cfgPath)
	require.NoError(t, err)

	assert.Equal(t, int64(2000), cfg.Tracking.MinDurationMs)
	assert.Equal(t, []string{"chrome", "edge", "about"}, cfg.Tracking.IgnoredSchemes)
	assert.Equal(t, []string{"mail.example.com"}, cfg.Tracking.ExcludeDomains)
	assert.Equal(t, 9999, cfg.Daemon.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)

	// Non-overridden values remain defaults
	assert.Equal(t, "127.0.0.1", cfg.Daemon.Host)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
}

func TestLoadInvalidYAMLReturnsError(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	require.NoError(t, os.WriteFile(cfgPath, []byte(":::not valid yaml{{{"), 0644))

	_, err := Load(cfgPath)
	assert.Error(t, err)
}

func TestLoadNonExistentFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing", "config.yaml"))
	assert.Error(t, err)
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("storage:\n  backend: cassandra\n"), 0644))

	_, err := Load(cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cassandra")
}

func TestLoadPostgresRequiresDSN(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("storage:\n  backend: postgres\n"), 0644))

	_, err := Load(cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dsn")
}

func TestLoadOrCreateCreatesDefaultsWhenMissing(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "sub", "deep", "config.yaml")

	cfg, err := LoadOrCreateAt(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), cfg.Tracking.MinDurationMs)

	_, statErr := os.Stat(cfgPath)
	assert.NoError(t, statErr)

	cfg2, err := Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, cfg.Daemon.Port, cfg2.Daemon.Port)
	assert.Equal(t, cfg.Tracking.IgnoredSchemes, cfg2.Tracking.IgnoredSchemes)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("daemon:\n  port: 9000\n"), 0644))

	t.Setenv("DWELL_PORT", "9100")
	t.Setenv("DWELL_MIN_DURATION_MS", "2000")
	t.Setenv("DWELL_STORAGE_BACKEND", "memory")
	t.Setenv("DWELL_EXCLUDE_DOMAINS", "a.com, B.com,,a.com")

	cfg, err := Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Daemon.Port)
	assert.Equal(t, int64(2000), cfg.Tracking.MinDurationMs)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, []string{"a.com", "b.com"}, cfg.Tracking.ExcludeDomains)
}

func TestEnvInvalidIntegerReturnsError(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("env: local\n"), 0644))

	t.Setenv("DWELL_PORT", "eighty")

	_, err := Load(cfgPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DWELL_PORT")
}

func TestEnvFileIsLoaded(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("env: local\n"), 0644))

	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("DWELL_AUTH_TOKEN=from-dotenv\n"), 0644))

	old := EnvFile
	EnvFile = envPath
	t.Cleanup(func() {
		EnvFile = old
		os.Unsetenv("DWELL_AUTH_TOKEN")
	})

	cfg, err := Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Daemon.AuthToken)
}

func TestSQLitePathExpandsHome(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Path = "/var/lib/dwell"

	p, err := cfg.SQLitePath()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/var/lib/dwell", "dwell.db"), p)
	assert.Equal(t, "127.0.0.1:8722", cfg.DaemonAddr())
}

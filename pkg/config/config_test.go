package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RequiredFieldMissing(t *testing.T) {
	t.Setenv("DATABASE_FILE_PATH", "")
	t.Setenv("CONFIG_FILE", "/nonexistent/config.yaml")

	cfg, err := New()
	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required config")
	assert.Contains(t, err.Error(), "DATABASE_FILE_PATH")
	assert.Contains(t, err.Error(), "database_file_path")
}

func TestNew_WithEnvVar(t *testing.T) {
	t.Setenv("DATABASE_FILE_PATH", "/tmp/test.db")
	t.Setenv("CONFIG_FILE", "/nonexistent/config.yaml")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/test.db", cfg.DatabaseFilePath)
}

func TestNew_WithConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
database_file_path: /data/longbox.db
server_port: 8080
database_debug: true
library_roots:
  - /comics/main
  - /comics/archive/
conversion_root: /comics/main/incoming
convert_timeout: 90s
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	t.Setenv("CONFIG_FILE", configPath)

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, "/data/longbox.db", cfg.DatabaseFilePath)
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.True(t, cfg.DatabaseDebug)
	assert.Equal(t, []string{"/comics/main", "/comics/archive"}, cfg.LibraryRoots)
	assert.Equal(t, "/comics/main/incoming", cfg.ConversionRoot)
	assert.Equal(t, 90*time.Second, cfg.ConvertTimeout)
}

func TestNew_EnvVarOverridesConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
database_file_path: /data/from-file.db
server_port: 8080
`
	err := os.WriteFile(configPath, []byte(configContent), 0644)
	require.NoError(t, err)

	t.Setenv("CONFIG_FILE", configPath)
	t.Setenv("DATABASE_FILE_PATH", "/data/from-env.db")
	t.Setenv("SERVER_PORT", "9090")

	cfg, err := New()
	require.NoError(t, err)
	// Env vars should override config file
	assert.Equal(t, "/data/from-env.db", cfg.DatabaseFilePath)
	assert.Equal(t, 9090, cfg.ServerPort)
}

func TestNew_LibraryRootsFromEnv(t *testing.T) {
	t.Setenv("DATABASE_FILE_PATH", "/tmp/test.db")
	t.Setenv("CONFIG_FILE", "/nonexistent/config.yaml")
	t.Setenv("LIBRARY_ROOTS", "/comics/a,/comics/b")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, []string{"/comics/a", "/comics/b"}, cfg.LibraryRoots)
}

func TestNew_ConvertArgsFromEnv(t *testing.T) {
	t.Setenv("DATABASE_FILE_PATH", "/tmp/test.db")
	t.Setenv("CONFIG_FILE", "/nonexistent/config.yaml")
	t.Setenv("CONVERT_ARGS", "x,{archive},{dest}/")
	t.Setenv("LIBRARY_ROOTS", " /comics/a , ,/comics/b")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "{archive}", "{dest}/"}, cfg.ConvertArgs)
	assert.Equal(t, []string{"/comics/a", "/comics/b"}, cfg.LibraryRoots)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList("a, b,"))
	assert.Empty(t, splitList(""))
}

func TestNew_Defaults(t *testing.T) {
	t.Setenv("DATABASE_FILE_PATH", "/tmp/test.db")
	t.Setenv("CONFIG_FILE", "/nonexistent/config.yaml")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.DatabaseConnectRetryCount)
	assert.Equal(t, 2*time.Second, cfg.DatabaseConnectRetryDelay)
	assert.False(t, cfg.DatabaseDebug)
	assert.Equal(t, "0.0.0.0", cfg.ServerHost)
	assert.Equal(t, 3690, cfg.ServerPort)
	assert.Equal(t, 60, cfg.ScanIntervalMinutes)
	assert.True(t, cfg.ScanOnStartup)
	assert.Equal(t, ".rescan", cfg.ScanMarkerFile)
	assert.Equal(t, 400, cfg.ThumbnailHeight)
	assert.Equal(t, "command", cfg.ConvertExtractor)
	assert.Equal(t, "unrar", cfg.ConvertCommand)
	assert.Equal(t, []string{"x", "-o+", "-y", "{archive}", "{dest}/"}, cfg.ConvertArgs)
	assert.Equal(t, 5*time.Minute, cfg.ConvertTimeout)
	assert.Empty(t, cfg.LibraryRoots)
}

func TestNew_ScanIntervalFromEnv(t *testing.T) {
	t.Setenv("DATABASE_FILE_PATH", "/tmp/test.db")
	t.Setenv("SCAN_INTERVAL_MINUTES", "15")
	t.Setenv("CONFIG_FILE", "/nonexistent/config.yaml")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, 15, cfg.ScanIntervalMinutes)
}

func TestNewForTest(t *testing.T) {
	cfg := NewForTest()
	assert.Equal(t, ":memory:", cfg.DatabaseFilePath)
	assert.Equal(t, "127.0.0.1", cfg.ServerHost)
	assert.False(t, cfg.ScanOnStartup)
}

func TestToSnakeCase(t *testing.T) {
	assert.Equal(t, "database_file_path", toSnakeCase("DatabaseFilePath"))
	assert.Equal(t, "server_port", toSnakeCase("ServerPort"))
	assert.Equal(t, "scan_interval_minutes", toSnakeCase("ScanIntervalMinutes"))
}

package godbf

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), *cfg)
}

func TestLoadConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "godbf.yaml")
	content := `
encoding: cp866
workers: 8
trim_space: false
skip_deleted: true
century: 2000
log_level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "cp866", cfg.Encoding)
	assert.Equal(t, 8, cfg.Workers)
	assert.False(t, cfg.TrimSpace)
	assert.True(t, cfg.SkipDeleted)
	assert.Equal(t, 2000, cfg.Century)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfig_Env(t *testing.T) {
	path := filepath.Join(t.TempDir(), "godbf.yaml")
	require.NoError(t, os.WriteFile(path, []byte("workers: 8\n"), 0o644))

	t.Setenv("GODBF_WORKERS", "2")
	t.Setenv("GODBF_ENCODING", "cp1251")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, "cp1251", cfg.Encoding)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	t.Setenv("GODBF_LOG_LEVEL", "loud")
	_, err = LoadConfig("")
	require.Error(t, err)
}

func TestConfig_Normalize(t *testing.T) {
	cfg := Config{Workers: -3}
	cfg.normalize()
	assert.Equal(t, 1, cfg.Workers)
}

func TestParseLogLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"":        slog.LevelInfo,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	} {
		got, err := parseLogLevel(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	_, err := parseLogLevel("verbose")
	require.Error(t, err)
}

func TestConfig_Logger(t *testing.T) {
	custom := slog.New(slog.NewTextHandler(os.Stderr, nil))
	cfg := Config{Logger: custom}
	assert.Same(t, custom, cfg.logger())

	cfg = Config{LogLevel: "bogus"}
	assert.NotNil(t, cfg.logger())
}

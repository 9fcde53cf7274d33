package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_EmptyYieldsDefaults(t *testing.T) {
	cfg, err := Parse([]byte(""), "empty.cue")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 256<<10, cfg.FrameArenaBytes())
}

func TestParse_Overrides(t *testing.T) {
	src := `
frameArenaKB: 1024
checks:       false
logLevel:     "debug"
capturePath:  "/tmp/keel.db"
`
	cfg, err := Parse([]byte(src), "test.cue")
	require.NoError(t, err)
	assert.Equal(t, 1024, cfg.FrameArenaKB)
	assert.False(t, cfg.Checks)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/tmp/keel.db", cfg.CapturePath)
}

func TestParse_InvalidLevelRejected(t *testing.T) {
	_, err := Parse([]byte(`logLevel: "loud"`), "test.cue")
	require.Error(t, err)
	assert.True(t, IsLoadError(err))
}

func TestParse_NegativeArenaRejected(t *testing.T) {
	_, err := Parse([]byte(`frameArenaKB: -1`), "test.cue")
	require.Error(t, err)
}

func TestParse_SyntaxError(t *testing.T) {
	_, err := Parse([]byte(`frameArenaKB: {{`), "broken.cue")
	require.Error(t, err)
	le, ok := err.(*LoadError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeParse, le.Code)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "keel.cue")
	require.NoError(t, os.WriteFile(path, []byte(`logLevel: "warn"`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.cue"))
	require.Error(t, err)
	le, ok := err.(*LoadError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeNotFound, le.Code)
}

func TestSlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, Config{LogLevel: "debug"}.SlogLevel())
	assert.Equal(t, slog.LevelInfo, Config{LogLevel: "info"}.SlogLevel())
	assert.Equal(t, slog.LevelWarn, Config{LogLevel: "warn"}.SlogLevel())
	assert.Equal(t, slog.LevelError, Config{LogLevel: "error"}.SlogLevel())
	assert.Equal(t, slog.LevelInfo, Config{}.SlogLevel(), "unknown defaults to info")
}

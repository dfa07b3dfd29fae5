package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gazruxenginering/doclocker/internal/config"
)

// --- buildLogger tests ---

func TestBuildLogger_Levels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		cfgLevel string
		flags    CLIFlags
		enabled  slog.Level
		disabled slog.Level
	}{
		{"default info", "", CLIFlags{}, slog.LevelInfo, slog.LevelDebug},
		{"config debug", "debug", CLIFlags{}, slog.LevelDebug, slog.LevelDebug - 1},
		{"config warn", "warn", CLIFlags{}, slog.LevelWarn, slog.LevelInfo},
		{"verbose overrides config", "error", CLIFlags{Verbose: true}, slog.LevelDebug, slog.LevelDebug - 1},
		{"quiet overrides config", "debug", CLIFlags{Quiet: true}, slog.LevelError, slog.LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := config.DefaultConfig()
			cfg.LogLevel = tt.cfgLevel

			logger := buildLogger(cfg, tt.flags, &bytes.Buffer{})
			assert.True(t, logger.Handler().Enabled(context.Background(), tt.enabled))
			assert.False(t, logger.Handler().Enabled(context.Background(), tt.disabled))
		})
	}
}

func TestBuildLogger_NilConfig(t *testing.T) {
	t.Parallel()

	logger := buildLogger(nil, CLIFlags{}, &bytes.Buffer{})
	assert.True(t, logger.Handler().Enabled(context.Background(), slog.LevelInfo))
}

func TestBuildLogger_Format(t *testing.T) {
	t.Parallel()

	tests := []struct {
		format string
		want   string
	}{
		// A buffer is not a terminal, so auto picks JSON.
		{"auto", `"msg":"hello"`},
		{"json", `"msg":"hello"`},
		{"text", `msg=hello`},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			t.Parallel()

			cfg := config.DefaultConfig()
			cfg.LogFormat = tt.format

			var buf bytes.Buffer
			buildLogger(cfg, CLIFlags{}, &buf).Info("hello")
			assert.Contains(t, buf.String(), tt.want)
		})
	}
}

func TestIsTerminal_NonFileWriter(t *testing.T) {
	t.Parallel()

	assert.False(t, isTerminal(&bytes.Buffer{}))
}

// --- dotenv and config resolution ---

func TestLoadDotEnv_MissingFileIgnored(t *testing.T) {
	t.Parallel()

	require.NoError(t, loadDotEnv(filepath.Join(t.TempDir(), ".env")))
	require.NoError(t, loadDotEnv(""))
}

func TestLoadDotEnv_MalformedFileFails(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("BAD-KEY=value\n"), 0o600))

	err := loadDotEnv(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
}

func TestBuildCLIContext_FlagsOverrideDefaults(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	cc, err := buildCLIContext(CLIFlags{
		ConfigPath: filepath.Join(dir, "missing.toml"),
		DataDir:    dir,
		Quiet:      true,
	}, &bytes.Buffer{})
	require.NoError(t, err)

	assert.Equal(t, dir, cc.Cfg.DataDir)
	assert.Equal(t, filepath.Join(dir, "doclocker.db"), cc.Cfg.DatabasePath())
	assert.Equal(t, config.DefaultRoots(), cc.Cfg.Roots)
	assert.True(t, cc.Flags.Quiet)
}

func TestBuildCLIContext_InvalidConfigFails(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("page_size = 0\n"), 0o600))

	_, err := buildCLIContext(CLIFlags{ConfigPath: path, DataDir: dir}, &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading config")
}

func TestMustCLIContext_PanicsWhenMissing(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { mustCLIContext(context.Background()) })
}

func TestNewRootCmd_RegistersCommands(t *testing.T) {
	t.Parallel()

	cmd := newRootCmd()

	for _, name := range []string{
		"sync", "serve", "trigger", "runs", "roots", "ls", "stat",
		"search", "complete", "catalog", "get", "access", "batch",
	} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}
}

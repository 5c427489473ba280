package cliconfig

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCLIConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*CLIConfig)
		wantErr string
	}{
		{name: "valid defaults", mutate: func(*CLIConfig) {}},
		{name: "parallel zero", mutate: func(c *CLIConfig) { c.Parallel = 0 }, wantErr: "parallel 0 is out of range"},
		{name: "parallel too high", mutate: func(c *CLIConfig) { c.Parallel = 500 }, wantErr: "parallel 500 is out of range"},
		{name: "negative history limit", mutate: func(c *CLIConfig) { c.HistoryLimit = -1 }, wantErr: "historyLimit -1"},
		{name: "zero history limit disables trimming", mutate: func(c *CLIConfig) { c.HistoryLimit = 0 }},
		{name: "negative timeout", mutate: func(c *CLIConfig) { c.Timeout = -time.Second }, wantErr: "timeout -1s"},
		{name: "unknown log level", mutate: func(c *CLIConfig) { c.LogLevel = "loud" }, wantErr: `logLevel "loud"`},
		{name: "log level case", mutate: func(c *CLIConfig) { c.LogLevel = "DEBUG" }},
		{name: "unknown log format", mutate: func(c *CLIConfig) { c.LogFormat = "xml" }, wantErr: `logFormat "xml"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefault()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMergeConfig(t *testing.T) {
	t.Run("merges non-zero values", func(t *testing.T) {
		target := NewDefault()
		MergeConfig(target, &CLIConfig{Parallel: 4, EnvDir: "envs"}, SourceLocal)

		assert.Equal(t, 4, target.Parallel)
		assert.Equal(t, "envs", target.EnvDir)
		assert.Equal(t, SourceLocal, target.Sources["parallel"])
		assert.Equal(t, SourceDefault, target.Sources["timeout"])
	})

	t.Run("does not overwrite with zero values", func(t *testing.T) {
		target := NewDefault()
		MergeConfig(target, &CLIConfig{}, SourceLocal)
		assert.Equal(t, DefaultParallel, target.Parallel)
		assert.Equal(t, DefaultTimeout, target.Timeout)
	})

	t.Run("explicit false with SetFields", func(t *testing.T) {
		target := NewDefault()
		target.NoHistory = true
		MergeConfig(target, &CLIConfig{SetFields: map[string]bool{"noHistory": true}}, SourceLocal)
		assert.False(t, target.NoHistory)
	})

	t.Run("false without SetFields is ignored", func(t *testing.T) {
		target := NewDefault()
		target.NoHistory = true
		MergeConfig(target, &CLIConfig{}, SourceLocal)
		assert.True(t, target.NoHistory)
	})

	t.Run("nil source is no-op", func(t *testing.T) {
		target := NewDefault()
		MergeConfig(target, nil, SourceLocal)
		assert.Equal(t, NewDefault().Parallel, target.Parallel)
	})
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("valid", func(t *testing.T) {
		path := filepath.Join(dir, "ok.yaml")
		require.NoError(t, os.WriteFile(path, []byte("parallel: 3\ntimeout: 5s\nnoHistory: false\n"), 0o600))

		cfg, err := LoadConfigFile(path)
		require.NoError(t, err)
		assert.Equal(t, 3, cfg.Parallel)
		assert.Equal(t, 5*time.Second, cfg.Timeout)
		assert.True(t, cfg.SetFields["noHistory"])
		assert.False(t, cfg.SetFields["envDir"])
	})

	t.Run("type error has line", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("envDir: envs\nparallel: many\n"), 0o600))

		_, err := LoadConfigFile(path)
		var cerr *ConfigError
		require.ErrorAs(t, err, &cerr)
		assert.Equal(t, path, cerr.Path)
		assert.Equal(t, 2, cerr.Line)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfigFile(filepath.Join(dir, "nope.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestLoadEnvConfig(t *testing.T) {
	t.Setenv(EnvParallel, "8")
	t.Setenv(EnvTimeout, "2s")
	t.Setenv(EnvNoHistory, "yes")
	t.Setenv(EnvHistoryLimit, "not-a-number")
	t.Setenv(EnvLogLevel, "debug")

	cfg := NewDefault()
	LoadEnvConfig(cfg)

	assert.Equal(t, 8, cfg.Parallel)
	assert.Equal(t, 2*time.Second, cfg.Timeout)
	assert.True(t, cfg.NoHistory)
	assert.Equal(t, DefaultHistoryLimit, cfg.HistoryLimit, "malformed values are ignored")
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, SourceEnv, cfg.Sources["parallel"])
	assert.Equal(t, SourceDefault, cfg.Sources["historyLimit"])
}

func TestLoadAll_Precedence(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)
	t.Setenv("HOME", home)
	global := filepath.Join(home, GlobalConfigDir, "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(global), 0o755))
	require.NoError(t, os.WriteFile(global, []byte("parallel: 2\nlogLevel: info\nenvDir: global-envs\n"), 0o600))

	work := t.TempDir()
	t.Chdir(work)
	require.NoError(t, os.WriteFile(filepath.Join(work, ".reqchain.yaml"), []byte("parallel: 4\n"), 0o600))
	t.Setenv(EnvLogLevel, "error")

	cfg, err := LoadAll()
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.Parallel)
	assert.Equal(t, SourceLocal, cfg.Sources["parallel"])
	assert.Equal(t, "global-envs", cfg.EnvDir)
	assert.Equal(t, SourceGlobal, cfg.Sources["envDir"])
	assert.Equal(t, "error", cfg.LogLevel)
	assert.Equal(t, SourceEnv, cfg.Sources["logLevel"])
}

func TestLoadAll_InvalidLocalConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	work := t.TempDir()
	t.Chdir(work)
	require.NoError(t, os.WriteFile(filepath.Join(work, ".reqchain.yaml"), []byte("parallel: 0\nlogFormat: xml\n"), 0o600))

	_, err := LoadAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "logFormat")
}

func TestDefaultHistoryFile(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", "/state")
	assert.Equal(t, filepath.Join("/state", "reqchain", "history.jsonl"), DefaultHistoryFile())
}

package cliconfig

import (
	"os"
	"path/filepath"
	"time"
)

// DefaultEnvDir is where environment files are looked up, relative to the
// working directory.
const DefaultEnvDir = "environments"

// DefaultHistoryLimit is the default number of kept history entries.
const DefaultHistoryLimit = 1000

// DefaultTimeout is the default per-request timeout.
const DefaultTimeout = 30 * time.Second

// DefaultParallel is the default number of chains run at once.
const DefaultParallel = 1

// DefaultLogLevel is the default log level.
const DefaultLogLevel = "warn"

// DefaultLogFormat is the default log format.
const DefaultLogFormat = "text"

// DefaultHistoryFile returns the history location:
// $XDG_STATE_HOME/reqchain/history.jsonl (or ~/.local/state/reqchain/history.jsonl).
func DefaultHistoryFile() string {
	stateDir := os.Getenv("XDG_STATE_HOME")
	if stateDir == "" {
		home, _ := os.UserHomeDir()
		stateDir = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(stateDir, GlobalConfigDir, "history.jsonl")
}

// NewDefault creates a new CLIConfig with default values.
func NewDefault() *CLIConfig {
	cfg := &CLIConfig{
		EnvDir:       DefaultEnvDir,
		HistoryFile:  DefaultHistoryFile(),
		HistoryLimit: DefaultHistoryLimit,
		Timeout:      DefaultTimeout,
		Parallel:     DefaultParallel,
		LogLevel:     DefaultLogLevel,
		LogFormat:    DefaultLogFormat,
		Sources:      make(map[string]string),
	}

	for _, key := range []string{"envDir", "historyFile", "historyLimit", "timeout", "parallel", "logLevel", "logFormat"} {
		cfg.Sources[key] = SourceDefault
	}
	return cfg
}

package cliconfig

import (
	"os"
	"strconv"
	"time"
)

// Environment variable names
const (
	EnvEnvDir       = "REQCHAIN_ENV_DIR"
	EnvEnvironment  = "REQCHAIN_ENV"
	EnvHistoryFile  = "REQCHAIN_HISTORY_FILE"
	EnvHistoryLimit = "REQCHAIN_HISTORY_LIMIT"
	EnvNoHistory    = "REQCHAIN_NO_HISTORY"
	EnvTimeout      = "REQCHAIN_TIMEOUT"
	EnvParallel     = "REQCHAIN_PARALLEL"
	EnvMetricsFile  = "REQCHAIN_METRICS_FILE"
	EnvLogLevel     = "REQCHAIN_LOG_LEVEL"
	EnvLogFormat    = "REQCHAIN_LOG_FORMAT"
)

// LoadEnvConfig loads configuration from environment variables.
// It only sets values that are present in the environment; malformed
// numbers and durations are ignored.
func LoadEnvConfig(cfg *CLIConfig) {
	if cfg.Sources == nil {
		cfg.Sources = make(map[string]string)
	}

	str := func(name, key string, dst *string) {
		if v := os.Getenv(name); v != "" {
			*dst = v
			cfg.Sources[key] = SourceEnv
		}
	}
	str(EnvEnvDir, "envDir", &cfg.EnvDir)
	str(EnvEnvironment, "environment", &cfg.Environment)
	str(EnvHistoryFile, "historyFile", &cfg.HistoryFile)
	str(EnvMetricsFile, "metricsFile", &cfg.MetricsFile)
	str(EnvLogLevel, "logLevel", &cfg.LogLevel)
	str(EnvLogFormat, "logFormat", &cfg.LogFormat)

	if v := os.Getenv(EnvHistoryLimit); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.HistoryLimit = n
			cfg.Sources["historyLimit"] = SourceEnv
		}
	}
	if v := os.Getenv(EnvParallel); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Parallel = n
			cfg.Sources["parallel"] = SourceEnv
		}
	}
	if v := os.Getenv(EnvTimeout); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Timeout = d
			cfg.Sources["timeout"] = SourceEnv
		}
	}
	if v := os.Getenv(EnvNoHistory); v != "" {
		cfg.NoHistory = v == "true" || v == "1" || v == "yes"
		cfg.Sources["noHistory"] = SourceEnv
	}
}

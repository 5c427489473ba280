package cliconfig

// MergeConfig merges source config into target, updating sources tracking.
// Only non-zero values from source are applied, except for keys listed in
// source.SetFields.
func MergeConfig(target, source *CLIConfig, sourceType string) {
	if source == nil {
		return
	}
	if target.Sources == nil {
		target.Sources = make(map[string]string)
	}

	if source.EnvDir != "" {
		target.EnvDir = source.EnvDir
		target.Sources["envDir"] = sourceType
	}
	if source.Environment != "" {
		target.Environment = source.Environment
		target.Sources["environment"] = sourceType
	}
	if source.HistoryFile != "" {
		target.HistoryFile = source.HistoryFile
		target.Sources["historyFile"] = sourceType
	}
	if source.HistoryLimit != 0 {
		target.HistoryLimit = source.HistoryLimit
		target.Sources["historyLimit"] = sourceType
	}
	if isSet(source, "noHistory", source.NoHistory) {
		target.NoHistory = source.NoHistory
		target.Sources["noHistory"] = sourceType
	}
	if source.Timeout != 0 {
		target.Timeout = source.Timeout
		target.Sources["timeout"] = sourceType
	}
	if source.Parallel != 0 {
		target.Parallel = source.Parallel
		target.Sources["parallel"] = sourceType
	}
	if isSet(source, "metricsFile", source.MetricsFile != "") {
		target.MetricsFile = source.MetricsFile
		target.Sources["metricsFile"] = sourceType
	}
	if source.LogLevel != "" {
		target.LogLevel = source.LogLevel
		target.Sources["logLevel"] = sourceType
	}
	if source.LogFormat != "" {
		target.LogFormat = source.LogFormat
		target.Sources["logFormat"] = sourceType
	}
}

// isSet reports whether a field identified by its YAML key was explicitly
// set in the source config. Without SetFields (programmatic configs) only
// non-zero values count.
func isSet(cfg *CLIConfig, yamlKey string, nonZero bool) bool {
	if cfg.SetFields != nil {
		return cfg.SetFields[yamlKey]
	}
	return nonZero
}

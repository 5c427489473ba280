// Package cliconfig provides configuration types and loading for the reqchain CLI.
package cliconfig

import "time"

// CLIConfig represents the complete configuration for the reqchain CLI.
// Configuration values can come from multiple sources with the following precedence:
// 1. Command-line flags (highest priority)
// 2. Environment variables (REQCHAIN_*)
// 3. Local config file (.reqchain.yaml in current directory)
// 4. Global config file ($XDG_CONFIG_HOME/reqchain/config.yaml)
// 5. Default values (lowest priority)
type CLIConfig struct {
	// Environments
	EnvDir      string `yaml:"envDir" json:"envDir"`
	Environment string `yaml:"environment,omitempty" json:"environment,omitempty"`

	// History settings
	HistoryFile  string `yaml:"historyFile" json:"historyFile"`
	HistoryLimit int    `yaml:"historyLimit" json:"historyLimit"`
	NoHistory    bool   `yaml:"noHistory" json:"noHistory"`

	// Run settings
	Timeout     time.Duration `yaml:"timeout" json:"timeout"`
	Parallel    int           `yaml:"parallel" json:"parallel"`
	MetricsFile string        `yaml:"metricsFile,omitempty" json:"metricsFile,omitempty"`

	// Logging settings
	LogLevel  string `yaml:"logLevel" json:"logLevel"`
	LogFormat string `yaml:"logFormat" json:"logFormat"`

	// Sources tracks where each value came from (for debugging)
	Sources map[string]string `yaml:"-" json:"-"`

	// SetFields records the keys present in a loaded file, so an explicit
	// false or zero can override a lower layer.
	SetFields map[string]bool `yaml:"-" json:"-"`
}

// ConfigSource identifies where a config value originated.
const (
	SourceDefault = "default"
	SourceEnv     = "env"
	SourceGlobal  = "global"
	SourceLocal   = "local"
	SourceFlag    = "flag"
)

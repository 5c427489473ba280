package cliconfig

import (
	"errors"
	"fmt"
	"strings"
)

// MaxParallel caps --parallel.
const MaxParallel = 64

// Validate checks value ranges and enumerations.
func (c *CLIConfig) Validate() error {
	var errs []error
	if c.Parallel < 1 || c.Parallel > MaxParallel {
		errs = append(errs, fmt.Errorf("parallel %d is out of range (1-%d)", c.Parallel, MaxParallel))
	}
	if c.HistoryLimit < 0 {
		errs = append(errs, fmt.Errorf("historyLimit %d must not be negative", c.HistoryLimit))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("timeout %s must not be negative", c.Timeout))
	}
	switch strings.ToLower(c.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("logLevel %q is not one of debug, info, warn, error", c.LogLevel))
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logFormat %q is not one of text, json", c.LogFormat))
	}
	return errors.Join(errs...)
}

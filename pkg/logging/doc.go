// Package logging configures the log/slog loggers used by reqchain.
//
// Operational logs go to stderr so they never mix with run reports on
// stdout. Library packages accept a *slog.Logger and fall back to Nop.
//
//	log := logging.New(logging.Config{
//	    Level:  logging.ParseLevel("debug"),
//	    Format: logging.FormatJSON,
//	})
//	log.Debug("step completed", "step", "login", "status", "passed")
//
// A run can additionally record every debug event to a file with
// OpenFile, which tees records through a MultiHandler.
package logging

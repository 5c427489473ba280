package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/getmockd/reqchain/pkg/cliconfig"
	"github.com/getmockd/reqchain/pkg/logging"
)

var (
	// Persistent flags available to all subcommands
	jsonOutput  bool
	logLevel    string
	logFormat   string
	logFile     string
	envDir      string
	historyFile string

	// Version is injected during build
	Version = "dev"
	// Commit is injected during build
	Commit = "none"
	// BuildDate is injected during build
	BuildDate = "unknown"
)

// Resolved once per invocation by setup.
var (
	cfg       = cliconfig.NewDefault()
	log       = logging.Nop()
	logCloser io.Closer
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "reqchain",
	Short: "reqchain runs chains of dependent HTTP requests as API tests",
	Long: `reqchain executes chain files: ordered HTTP requests whose responses feed
later requests through extracted variables, with assertions on every step.

Configuration can be provided via flags, REQCHAIN_* environment variables,
a local .reqchain.yaml or the global config file.`,
	SilenceUsage:      true,
	SilenceErrors:     true, // Main prints errors
	PersistentPreRunE: setup,
}

// Main runs the CLI and returns the process exit status.
func Main() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if logCloser != nil {
		_ = logCloser.Close()
	}
	if err == nil {
		return 0
	}
	if !errors.Is(err, errReported) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return 1
}

// Execute runs the CLI and exits. This is called by main.main().
func Execute() {
	os.Exit(Main())
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.BoolVar(&jsonOutput, "json", false, "Output command results in JSON format")
	pf.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default: warn)")
	pf.StringVar(&logFormat, "log-format", "", "Log format: text or json (default: text)")
	pf.StringVar(&logFile, "log-file", "", "Also append debug logs as JSON to this file")
	pf.StringVar(&envDir, "env-dir", "", "Directory holding environment files (default: ./environments)")
	pf.StringVar(&historyFile, "history-file", "", "History file (default: $XDG_STATE_HOME/reqchain/history.jsonl)")
}

// setup loads the layered configuration, applies flags on top and builds
// the logger.
func setup(cmd *cobra.Command, _ []string) error {
	loaded, err := cliconfig.LoadAll()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	overrideString(cmd, "log-level", &loaded.LogLevel, "logLevel", loaded)
	overrideString(cmd, "log-format", &loaded.LogFormat, "logFormat", loaded)
	overrideString(cmd, "env-dir", &loaded.EnvDir, "envDir", loaded)
	overrideString(cmd, "history-file", &loaded.HistoryFile, "historyFile", loaded)
	if err := loaded.Validate(); err != nil {
		return err
	}
	cfg = loaded

	logCfg := logging.Config{
		Level:  logging.ParseLevel(cfg.LogLevel),
		Format: logging.ParseFormat(cfg.LogFormat),
		Output: cmd.ErrOrStderr(),
	}
	if logFile != "" {
		l, closer, err := logging.OpenFile(logCfg, logFile)
		if err != nil {
			return err
		}
		log, logCloser = l, closer
	} else {
		log = logging.New(logCfg)
	}
	log.Debug("configuration loaded", "sources", cfg.Sources)
	return nil
}

// overrideString copies a changed flag into the config and records it as
// the value's source.
func overrideString(cmd *cobra.Command, flag string, dst *string, key string, c *cliconfig.CLIConfig) {
	f := cmd.Flags().Lookup(flag)
	if f == nil || !f.Changed {
		return
	}
	*dst = f.Value.String()
	c.Sources[key] = cliconfig.SourceFlag
}

func overrideInt(cmd *cobra.Command, flag string, dst *int, key string, c *cliconfig.CLIConfig) {
	if !cmd.Flags().Changed(flag) {
		return
	}
	if v, err := cmd.Flags().GetInt(flag); err == nil {
		*dst = v
		c.Sources[key] = cliconfig.SourceFlag
	}
}

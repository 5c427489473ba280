package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/getmockd/reqchain/pkg/cli/internal/flags"
	"github.com/getmockd/reqchain/pkg/cli/internal/parse"
	"github.com/getmockd/reqchain/pkg/cliconfig"
	"github.com/getmockd/reqchain/pkg/config"
	"github.com/getmockd/reqchain/pkg/environment"
	"github.com/getmockd/reqchain/pkg/history"
	"github.com/getmockd/reqchain/pkg/httpclient"
	"github.com/getmockd/reqchain/pkg/metrics"
	"github.com/getmockd/reqchain/pkg/runner"
	"github.com/getmockd/reqchain/pkg/script"
	"github.com/getmockd/reqchain/pkg/workflow"
)

var (
	runEnv            string
	runVars           flags.KeyValues
	runParallel       int
	runIterations     int
	runTimeout        time.Duration
	runNoHistory      bool
	runMetricsFile    string
	runRuntimeMetrics bool
	runNoCookies      bool
	runNoRedirects    bool
	runVerbose        bool
)

var runCmd = &cobra.Command{
	Use:   "run <files|dirs|globs...>",
	Short: "Run chain files",
	Long: `Run chain files against live APIs.

Arguments may be files, directories (every .yaml, .yml and .json file below
them) or doublestar globs such as 'chains/**/*.yaml'. Chains run in the order
given; --parallel runs several at once while keeping the report order.

The exit status is 1 when any chain does not pass.`,
	Example: `  # Run one chain against the staging environment
  reqchain run login.yaml --env staging

  # Run a directory, four chains at a time, overriding a variable
  reqchain run chains/ -p 4 --var userId=42

  # Machine-readable report and Prometheus textfile output
  reqchain run 'chains/**/*.yaml' --json --metrics-file reqchain.prom`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	f := runCmd.Flags()
	f.StringVarP(&runEnv, "env", "e", "", "Environment to use (a name from --env-dir)")
	f.Var(&runVars, "var", "Set a variable, overriding chain variables (repeatable, key=value)")
	f.IntVarP(&runParallel, "parallel", "p", 0, "Chains to run at once (default: 1)")
	f.IntVarP(&runIterations, "iterations", "n", 0, "Run every chain this many times (overrides chain config)")
	f.DurationVar(&runTimeout, "timeout", 0, "Default per-request timeout (default: 30s)")
	f.BoolVar(&runNoHistory, "no-history", false, "Do not record this run in the history")
	f.StringVar(&runMetricsFile, "metrics-file", "", "Write Prometheus metrics in textfile format to this path")
	f.BoolVar(&runRuntimeMetrics, "runtime-metrics", false, "Include Go runtime and process metrics in --metrics-file")
	f.BoolVar(&runNoCookies, "no-cookies", false, "Do not keep cookies between steps")
	f.BoolVar(&runNoRedirects, "no-redirects", false, "Do not follow redirects")
	f.BoolVarP(&runVerbose, "verbose", "v", false, "Show every assertion and script log, not only failures")
}

func runRun(cmd *cobra.Command, args []string) error {
	overrideInt(cmd, "parallel", &cfg.Parallel, "parallel", cfg)
	overrideString(cmd, "metrics-file", &cfg.MetricsFile, "metricsFile", cfg)
	overrideString(cmd, "env", &cfg.Environment, "environment", cfg)
	if cmd.Flags().Changed("timeout") {
		cfg.Timeout = runTimeout
		cfg.Sources["timeout"] = cliconfig.SourceFlag
	}
	if cmd.Flags().Changed("no-history") {
		cfg.NoHistory = runNoHistory
		cfg.Sources["noHistory"] = cliconfig.SourceFlag
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if runIterations < 0 {
		return fmt.Errorf("--iterations must not be negative, got %d", runIterations)
	}

	chains, err := config.LoadChains(args)
	if err != nil {
		if errors.Is(err, config.ErrNoMatches) || errors.Is(err, config.ErrFileNotFound) {
			return err
		}
		// Nothing runs until every file loads.
		fmt.Fprintln(cmd.ErrOrStderr(), err)
		return ErrInvalidChains
	}

	envValues, secrets, err := resolveEnvironment(cfg.EnvDir, cfg.Environment)
	if err != nil {
		return err
	}

	opts := []runner.Option{
		runner.WithLogger(log),
		runner.WithScriptRunner(script.NewEngine(log)),
	}
	if !cfg.NoHistory {
		store := history.NewFileStore(cfg.HistoryFile, cfg.HistoryLimit)
		store.SetLogger(log)
		opts = append(opts, runner.WithObserver(history.NewRecorder(store)))
	}
	var rec *metrics.Recorder
	if cfg.MetricsFile != "" {
		rec = metrics.NewRecorder(metrics.Config{Runtime: runRuntimeMetrics})
		opts = append(opts, runner.WithObserver(rec))
	}

	r := runner.New(runner.Config{
		Parallel:   cfg.Parallel,
		Iterations: runIterations,
		Env:        envValues,
		Variables:  parse.Values(runVars),
		HTTP: httpclient.Config{
			Timeout:           cfg.Timeout,
			NoCookies:         runNoCookies,
			NoFollowRedirects: runNoRedirects,
			UserAgent:         "reqchain/" + Version,
		},
	}, opts...)

	log.Debug("running chains", "chains", len(chains), "parallel", cfg.Parallel, "environment", cfg.Environment)
	results := r.RunAll(cmd.Context(), chains)

	if rec != nil {
		if err := rec.WriteToTextfile(cfg.MetricsFile); err != nil {
			log.Warn("failed to write metrics", "path", cfg.MetricsFile, "error", err)
		}
	}

	report := newRunReport(results, secrets)
	if err := printResult(cmd, report, func(w io.Writer) { report.writeText(w, runVerbose) }); err != nil {
		return err
	}
	if !report.Passed {
		return ErrChainsFailed
	}
	return nil
}

// resolveEnvironment returns the environment layer and the names whose
// values must not be printed.
func resolveEnvironment(dir, name string) (map[string]workflow.Value, []string, error) {
	manager := environment.NewManager(dir)
	manager.SetLogger(log)
	if err := manager.Load(); err != nil {
		return nil, nil, err
	}
	if err := manager.Select(name); err != nil {
		return nil, nil, fmt.Errorf("%w (looked in %s)", err, dir)
	}
	values, err := manager.Resolve()
	if err != nil {
		return nil, nil, err
	}
	var secrets []string
	if env, ok := manager.Active(); ok {
		secrets = env.SecretNames()
	}
	return values, secrets, nil
}

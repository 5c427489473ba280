package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/getmockd/reqchain/pkg/cli/internal/output"
	"github.com/getmockd/reqchain/pkg/history"
	"github.com/getmockd/reqchain/pkg/workflow"
)

var (
	historyChain   string
	historyStep    string
	historyRun     string
	historyOutcome string
	historyLimit   int
	historySince   time.Duration
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Browse recorded step executions",
	Long: `Browse the steps recorded by previous runs.

Every executed step is appended to the history file unless --no-history
is set. The file keeps the newest entries up to the configured limit.`,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded steps, newest first",
	Example: `  reqchain history list --chain login --outcome failed
  reqchain history list --since 1h --limit 50`,
	Args: cobra.NoArgs,
	RunE: runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one recorded step",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e := openHistory().Get(args[0])
		if e == nil {
			return fmt.Errorf("history entry not found: %s", args[0])
		}
		return printResult(cmd, e, func(w io.Writer) {
			tw := output.Table(w)
			fmt.Fprintf(tw, "ID:\t%s\n", e.ID)
			fmt.Fprintf(tw, "Time:\t%s\n", e.Timestamp.Format(time.RFC3339))
			fmt.Fprintf(tw, "Run:\t%s\n", e.RunID)
			fmt.Fprintf(tw, "Chain:\t%s\n", e.Chain)
			fmt.Fprintf(tw, "Step:\t%s\n", e.Step)
			fmt.Fprintf(tw, "Request:\t%s %s\n", e.Method, e.URL)
			if e.Status != 0 {
				fmt.Fprintf(tw, "Status:\t%d\n", e.Status)
			}
			fmt.Fprintf(tw, "Duration:\t%dms\n", e.DurationMs)
			fmt.Fprintf(tw, "Outcome:\t%s\n", e.Outcome)
			if e.Error != "" {
				fmt.Fprintf(tw, "Error:\t%s\n", e.Error)
			}
			_ = tw.Flush()
		})
	},
}

var historyClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all recorded steps",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store := openHistory()
		n := store.Count()
		if err := store.Clear(); err != nil {
			return err
		}
		return printResult(cmd, map[string]int{"cleared": n}, func(w io.Writer) {
			fmt.Fprintf(w, "Cleared %d entries\n", n)
		})
	},
}

func openHistory() *history.FileStore {
	store := history.NewFileStore(cfg.HistoryFile, cfg.HistoryLimit)
	store.SetLogger(log)
	return store
}

func runHistoryList(cmd *cobra.Command, _ []string) error {
	filter := &history.Filter{
		Chain: historyChain,
		Step:  historyStep,
		RunID: historyRun,
		Limit: historyLimit,
	}
	if historyOutcome != "" {
		outcome := workflow.Status(historyOutcome)
		switch outcome {
		case workflow.StatusPassed, workflow.StatusFailed, workflow.StatusErrored:
		default:
			return fmt.Errorf("invalid outcome %q (want passed, failed or errored)", historyOutcome)
		}
		filter.Outcome = outcome
	}
	if historySince > 0 {
		filter.Since = time.Now().Add(-historySince)
	}

	entries := openHistory().List(filter)
	if entries == nil {
		entries = []*history.Entry{}
	}
	return printResult(cmd, entries, func(w io.Writer) {
		if len(entries) == 0 {
			fmt.Fprintln(w, "No history entries")
			return
		}
		tw := output.Table(w)
		fmt.Fprintln(tw, "ID\tTIME\tCHAIN\tSTEP\tREQUEST\tSTATUS\tOUTCOME\tDURATION")
		for _, e := range entries {
			status := "-"
			if e.Status != 0 {
				status = fmt.Sprint(e.Status)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%dms\n",
				e.ID,
				e.Timestamp.Local().Format("2006-01-02 15:04:05"),
				e.Chain,
				e.Step,
				output.Truncate(e.Method+" "+e.URL, 50),
				status,
				e.Outcome,
				e.DurationMs,
			)
		}
		_ = tw.Flush()
	})
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyClearCmd)

	f := historyListCmd.Flags()
	f.StringVar(&historyChain, "chain", "", "Only entries from this chain")
	f.StringVar(&historyStep, "step", "", "Only steps whose name starts with this prefix")
	f.StringVar(&historyRun, "run", "", "Only entries from this run ID")
	f.StringVar(&historyOutcome, "outcome", "", "Only passed, failed or errored steps")
	f.IntVarP(&historyLimit, "limit", "n", 20, "Maximum entries to show")
	f.DurationVar(&historySince, "since", 0, "Only entries newer than this (e.g. 30m, 24h)")
}

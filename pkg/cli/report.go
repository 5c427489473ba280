package cli

import (
	"fmt"
	"io"
	"maps"
	"strings"

	"github.com/getmockd/reqchain/pkg/cli/internal/output"
	"github.com/getmockd/reqchain/pkg/environment"
	"github.com/getmockd/reqchain/pkg/runner"
	"github.com/getmockd/reqchain/pkg/workflow"
)

// runReport is the --json document of reqchain run.
type runReport struct {
	Passed bool          `json:"passed"`
	Total  int           `json:"total"`
	Failed int           `json:"failed"`
	Chains []chainReport `json:"chains"`
}

type chainReport struct {
	Path       string                  `json:"path"`
	Chain      string                  `json:"chain"`
	Status     workflow.Status         `json:"status"`
	Error      string                  `json:"error,omitempty"`
	DurationMs int64                   `json:"durationMs"`
	Iterations []*workflow.ChainResult `json:"iterations"`
}

func newRunReport(results []*runner.Result, secrets []string) *runReport {
	rep := &runReport{Passed: true, Total: len(results), Chains: make([]chainReport, 0, len(results))}
	for _, res := range results {
		cr := chainReport{
			Path:       res.Path,
			Chain:      res.Chain,
			Status:     res.Status(),
			DurationMs: res.Duration.Milliseconds(),
			Iterations: maskIterations(res.Iterations, secrets),
		}
		if res.Err != nil {
			cr.Error = res.Err.Error()
		}
		if !res.Passed() {
			rep.Passed = false
			rep.Failed++
		}
		rep.Chains = append(rep.Chains, cr)
	}
	return rep
}

// maskIterations hides secret environment values in the final variables.
// Results are copied; the runner's results are left untouched.
func maskIterations(iterations []*workflow.ChainResult, secrets []string) []*workflow.ChainResult {
	if len(secrets) == 0 {
		return iterations
	}
	out := make([]*workflow.ChainResult, len(iterations))
	for i, it := range iterations {
		c := *it
		c.FinalVariables = maps.Clone(it.FinalVariables)
		for _, name := range secrets {
			if _, ok := c.FinalVariables[name]; ok {
				c.FinalVariables[name] = workflow.String(environment.Mask)
			}
		}
		out[i] = &c
	}
	return out
}

// writeText prints one line per step, details for steps that did not pass
// and a summary per chain and per run.
func (r *runReport) writeText(w io.Writer, verbose bool) {
	for _, c := range r.Chains {
		if c.Error != "" {
			fmt.Fprintf(w, "%s (%s)\n  ERROR %s\n\n", c.Chain, c.Path, c.Error)
			continue
		}
		for _, it := range c.Iterations {
			title := it.Chain
			if len(c.Iterations) > 1 {
				title = fmt.Sprintf("%s [iteration %d]", it.Chain, it.Iteration)
			}
			fmt.Fprintf(w, "%s (%s)\n", title, c.Path)
			for _, s := range it.Steps {
				writeStep(w, s, verbose)
			}
			fmt.Fprintf(w, "%s\n\n", it.Summary())
		}
	}
	fmt.Fprintf(w, "%d chain(s): %d passed, %d failed\n", r.Total, r.Total-r.Failed, r.Failed)
}

var statusLabels = map[workflow.Status]string{
	workflow.StatusPassed:  "PASS",
	workflow.StatusFailed:  "FAIL",
	workflow.StatusErrored: "ERR ",
	workflow.StatusSkipped: "SKIP",
}

func writeStep(w io.Writer, s *workflow.StepResult, verbose bool) {
	line := fmt.Sprintf("  %s %s", statusLabels[s.Status], s.StepID)
	switch {
	case s.Status == workflow.StatusSkipped:
		line += "  (" + s.SkipReason + ")"
	case s.Request != nil:
		line += "  " + s.Request.Method + " " + output.Truncate(s.Request.URL, 80)
		if s.Response != nil {
			line += fmt.Sprintf(" -> %d", s.Response.Status)
		}
		line += " (" + output.Duration(s.Duration) + ")"
	}
	fmt.Fprintln(w, line)

	if s.Status == workflow.StatusErrored {
		fmt.Fprintf(w, "       %s error in %s: %s\n", s.ErrorKind, s.Phase, s.Error)
	}
	if s.Assertions != nil {
		for _, a := range s.Assertions.Results {
			if verbose || !a.Passed() {
				fmt.Fprintf(w, "       %s\n", a.Summary())
			}
		}
	}
	for _, f := range s.ExtractionErrors {
		fmt.Fprintf(w, "       extract %s (%s): %s\n", f.Rule.Name, f.Rule.Path, f.Error)
	}
	if verbose || s.Failed() {
		for _, l := range s.Logs {
			fmt.Fprintf(w, "       log: %s\n", strings.TrimSpace(l))
		}
	}
}

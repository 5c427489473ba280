package workflow

import (
	"fmt"
	"time"
)

// Phase is a stage of a step's lifecycle.
type Phase string

// Step phases in execution order.
const (
	PhasePending      Phase = "pending"
	PhaseSubstituting Phase = "substituting"
	PhasePreScript    Phase = "preScript"
	PhaseDispatching  Phase = "dispatching"
	PhasePostScript   Phase = "postScript"
	PhaseExtracting   Phase = "extracting"
	PhaseValidating   Phase = "validating"
	PhaseCompleted    Phase = "completed"
)

// StepResult is the record of one step execution.
//
// For Errored steps Phase names the phase that failed and ErrorKind
// classifies the failure. Passed and Failed steps end in PhaseCompleted.
type StepResult struct {
	StepID     string    `json:"step"`
	Status     Status    `json:"status"`
	Phase      Phase     `json:"phase"`
	ErrorKind  ErrorKind `json:"errorKind,omitempty"`
	Error      string    `json:"error,omitempty"`
	SkipReason string    `json:"skipReason,omitempty"`

	// Err is the underlying error for errors.Is inspection.
	Err error `json:"-"`

	Request          *RequestSpec        `json:"request,omitempty"`
	Response         *ResponseSpec       `json:"response,omitempty"`
	Extracted        []ExtractedVar      `json:"extracted,omitempty"`
	ExtractionErrors []ExtractionFailure `json:"extractionErrors,omitempty"`
	Assertions       *ValidationReport   `json:"assertions,omitempty"`
	Logs             []string            `json:"logs,omitempty"`

	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
}

// Failed reports whether the step counts against the chain.
func (r *StepResult) Failed() bool {
	return r.Status == StatusFailed || r.Status == StatusErrored
}

func (r *StepResult) fail(phase Phase, err error) {
	r.Status = StatusErrored
	r.Phase = phase
	r.Err = err
	r.Error = err.Error()
	r.ErrorKind = classify(err)
}

// ChainResult is the record of one chain execution.
type ChainResult struct {
	RunID     string        `json:"runId"`
	Chain     string        `json:"chain"`
	Iteration int           `json:"iteration,omitempty"`
	Status    Status        `json:"status"`
	Steps     []*StepResult `json:"steps"`

	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Errored int `json:"errored"`
	Skipped int `json:"skipped"`

	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`

	// FinalVariables is the merged store at the end of the run.
	FinalVariables map[string]Value `json:"finalVariables,omitempty"`

	Cancelled bool   `json:"cancelled,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Step returns the result for the named step.
func (r *ChainResult) Step(id string) (*StepResult, bool) {
	for _, s := range r.Steps {
		if s.StepID == id {
			return s, true
		}
	}
	return nil, false
}

// Statuses returns the step statuses in order.
func (r *ChainResult) Statuses() []Status {
	out := make([]Status, len(r.Steps))
	for i, s := range r.Steps {
		out[i] = s.Status
	}
	return out
}

// Success reports whether the chain passed.
func (r *ChainResult) Success() bool {
	return r.Status == StatusPassed
}

// Summary renders the tallies on one line.
func (r *ChainResult) Summary() string {
	return fmt.Sprintf("%s: %s (%d passed, %d failed, %d errored, %d skipped) in %s",
		r.Chain, r.Status, r.Passed, r.Failed, r.Errored, r.Skipped, r.Duration.Round(time.Millisecond))
}

// tally recomputes the counters and the overall status. The chain passes
// iff every non-skipped step passed and the run was not cancelled.
func (r *ChainResult) tally() {
	r.Passed, r.Failed, r.Errored, r.Skipped = 0, 0, 0, 0
	for _, s := range r.Steps {
		switch s.Status {
		case StatusPassed:
			r.Passed++
		case StatusFailed:
			r.Failed++
		case StatusErrored:
			r.Errored++
		case StatusSkipped:
			r.Skipped++
		}
	}
	if r.Failed == 0 && r.Errored == 0 && !r.Cancelled {
		r.Status = StatusPassed
	} else {
		r.Status = StatusFailed
	}
}

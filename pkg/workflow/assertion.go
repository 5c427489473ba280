package workflow

import (
	"context"
	"errors"
	"fmt"
)

// Assertion checks the value at Path with a Matcher.
type Assertion struct {
	Path        string `json:"path" yaml:"path"`
	Matcher     `yaml:",inline"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Enabled defaults to true when unset.
	Enabled *bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
}

// IsEnabled reports whether the assertion should be evaluated.
func (a Assertion) IsEnabled() bool {
	return a.Enabled == nil || *a.Enabled
}

// Label returns the description, or a generated "<path> <matcher>" label.
func (a Assertion) Label() string {
	if a.Description != "" {
		return a.Description
	}
	return a.Path + " " + a.Matcher.Description()
}

// AssertionResult is the evaluated outcome of one assertion.
type AssertionResult struct {
	Assertion Assertion `json:"assertion"`
	Status    Status    `json:"status"`
	Actual    Value     `json:"actual"`
	Error     string    `json:"error,omitempty"`

	// Err is set for errored results.
	Err error `json:"-"`
}

// Passed reports whether the assertion held.
func (r AssertionResult) Passed() bool { return r.Status == StatusPassed }

// Summary renders a one-line report.
func (r AssertionResult) Summary() string {
	label := r.Assertion.Label()
	switch r.Status {
	case StatusPassed:
		return fmt.Sprintf("PASS %s", label)
	case StatusErrored:
		return fmt.Sprintf("ERROR %s: %s", label, r.Error)
	default:
		if r.Error != "" {
			return fmt.Sprintf("FAIL %s: %s", label, r.Error)
		}
		return fmt.Sprintf("FAIL %s: expected %s, got '%s'", label, r.Assertion.Matcher.Description(), r.Actual.String())
	}
}

// ValidationReport collects assertion results in declaration order.
type ValidationReport struct {
	Results []AssertionResult `json:"results"`
	Total   int               `json:"total"`
	Passed  int               `json:"passed"`
	Failed  int               `json:"failed"`
	Errored int               `json:"errored"`
}

// Add appends a result and updates the tallies.
func (r *ValidationReport) Add(res AssertionResult) {
	r.Results = append(r.Results, res)
	r.Total++
	switch res.Status {
	case StatusPassed:
		r.Passed++
	case StatusErrored:
		r.Errored++
	default:
		r.Failed++
	}
}

// Success reports whether every evaluated assertion passed.
func (r ValidationReport) Success() bool {
	return r.Failed == 0 && r.Errored == 0
}

// Summary renders the tallies.
func (r ValidationReport) Summary() string {
	if r.Success() {
		return fmt.Sprintf("all %d assertions passed", r.Total)
	}
	if r.Errored > 0 {
		return fmt.Sprintf("%d of %d assertions failed, %d errored", r.Failed, r.Total, r.Errored)
	}
	return fmt.Sprintf("%d of %d assertions failed", r.Failed, r.Total)
}

// Validate evaluates every enabled assertion against resp. Evaluation never
// short-circuits; disabled assertions are left out of the report.
func Validate(resp *ResponseSpec, assertions []Assertion) ValidationReport {
	var report ValidationReport
	for _, a := range assertions {
		if !a.IsEnabled() {
			continue
		}
		report.Add(Evaluate(resp, a))
	}
	return report
}

// Evaluate runs a single assertion. A body path that does not exist is null
// for matchers that test absence; other matchers report it as Errored.
func Evaluate(resp *ResponseSpec, a Assertion) AssertionResult {
	actual, err := ResolveTarget(resp, a.Path)
	if err != nil {
		if !errors.Is(err, ErrPathNotFound) || !a.Matcher.Kind.AcceptsAbsent() {
			return AssertionResult{Assertion: a, Status: StatusErrored, Error: err.Error(), Err: err}
		}
		actual = Null()
	}
	out := a.Matcher.Match(actual)
	res := AssertionResult{Assertion: a, Status: out.Status, Actual: actual}
	if out.Err != nil {
		res.Error = out.Err.Error()
		res.Err = out.Err
	}
	return res
}

// ResponseChecker adds checks that are not expressed as assertions, such as
// contract validation. Results are appended after the step's assertions.
type ResponseChecker interface {
	Check(ctx context.Context, req *RequestSpec, resp *ResponseSpec) []AssertionResult
}

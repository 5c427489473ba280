package workflow

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// FailurePolicy decides whether a chain proceeds after a step fails.
type FailurePolicy string

// Failure policies.
const (
	PolicyAbort    FailurePolicy = "abort"
	PolicyContinue FailurePolicy = "continue"
)

// RequestTemplate is a request whose fields may contain {{placeholders}}.
type RequestTemplate struct {
	Method  string            `json:"method" yaml:"method"`
	URL     string            `json:"url" yaml:"url"`
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Query   map[string]string `json:"query,omitempty" yaml:"query,omitempty"`
	Body    string            `json:"body,omitempty" yaml:"body,omitempty"`
}

// Step is one request of a chain together with what to pull out of its
// response and what to check.
type Step struct {
	Name        string          `json:"name" yaml:"name"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
	Request     RequestTemplate `json:"request" yaml:"request"`
	Extract     []ExtractRule   `json:"extract,omitempty" yaml:"extract,omitempty"`
	Assertions  []Assertion     `json:"assertions,omitempty" yaml:"assertions,omitempty"`
	Scripts     Scripts         `json:"scripts,omitempty" yaml:"scripts,omitempty"`
	OnFailure   FailurePolicy   `json:"onFailure,omitempty" yaml:"onFailure,omitempty"`
	Timeout     time.Duration   `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// Enabled defaults to true when unset.
	Enabled *bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`
}

// IsEnabled reports whether the step should run.
func (s *Step) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// ChainConfig tunes how a chain is executed.
type ChainConfig struct {
	// StopOnFailure is the policy for steps without an explicit OnFailure.
	// Nil means true.
	StopOnFailure *bool `json:"stopOnFailure,omitempty" yaml:"stopOnFailure,omitempty"`

	// Delay is the minimum spacing between two dispatches.
	Delay time.Duration `json:"delay,omitempty" yaml:"delay,omitempty"`

	// MaxDuration bounds a whole run. It is checked between steps.
	MaxDuration time.Duration `json:"maxDuration,omitempty" yaml:"maxDuration,omitempty"`

	// Iterations is how many times RunIterations repeats the chain.
	// Zero means one.
	Iterations int `json:"iterations,omitempty" yaml:"iterations,omitempty"`
}

// Chain is an ordered, immutable sequence of steps.
type Chain struct {
	Name        string           `json:"name" yaml:"name"`
	Description string           `json:"description,omitempty" yaml:"description,omitempty"`
	Variables   map[string]Value `json:"variables,omitempty" yaml:"-"`
	Steps       []Step           `json:"steps" yaml:"steps"`
	Config      ChainConfig      `json:"config,omitempty" yaml:"config,omitempty"`

	// Checker, when set, runs after each step's assertions.
	Checker ResponseChecker `json:"-" yaml:"-"`
}

// PolicyFor returns the effective failure policy of step.
func (c *Chain) PolicyFor(step *Step) FailurePolicy {
	if step.OnFailure != "" {
		return step.OnFailure
	}
	if c.Config.StopOnFailure != nil && !*c.Config.StopOnFailure {
		return PolicyContinue
	}
	return PolicyAbort
}

// IterationCount returns the configured iterations, at least one.
func (c *Chain) IterationCount() int {
	if c.Config.Iterations < 1 {
		return 1
	}
	return c.Config.Iterations
}

// Validate reports structural problems that make the chain unrunnable.
// The returned error is a *ChainConfigError.
func (c *Chain) Validate() error {
	var problems []string
	if len(c.Steps) == 0 {
		problems = append(problems, "chain has no steps")
	}

	seen := make(map[string]int, len(c.Steps))
	for i, step := range c.Steps {
		name := strings.TrimSpace(step.Name)
		switch {
		case name == "":
			problems = append(problems, fmt.Sprintf("steps[%d]: name is required", i))
		case seen[name] > 0:
			problems = append(problems, fmt.Sprintf("steps[%d]: duplicate step name %q (first used by steps[%d])", i, name, seen[name]-1))
		default:
			seen[name] = i + 1
		}
		if strings.TrimSpace(step.Request.URL) == "" {
			problems = append(problems, fmt.Sprintf("steps[%d]: request.url is required", i))
		}
		switch step.OnFailure {
		case "", PolicyAbort, PolicyContinue:
		default:
			problems = append(problems, fmt.Sprintf("steps[%d]: unknown onFailure %q", i, step.OnFailure))
		}
		for j, rule := range step.Extract {
			if strings.TrimSpace(rule.Name) == "" {
				problems = append(problems, fmt.Sprintf("steps[%d].extract[%d]: name is required", i, j))
			}
		}
	}

	if c.Config.Iterations < 0 {
		problems = append(problems, "config.iterations must not be negative")
	}
	if c.Config.Delay < 0 || c.Config.MaxDuration < 0 {
		problems = append(problems, "config durations must not be negative")
	}

	if len(problems) > 0 {
		return &ChainConfigError{Chain: c.Name, Problems: problems}
	}
	return nil
}

// UndefinedRef is a placeholder that nothing in the chain itself binds.
type UndefinedRef struct {
	Step  string
	Field string
	Name  string
}

// UndefinedVariables walks the steps in order and lists placeholders that
// neither the chain variables, an earlier extraction rule nor dynamic can
// resolve. Such names have to come from the environment or a script, so the
// result is advisory. Each name is reported once per step.
func (c *Chain) UndefinedVariables(dynamic DynamicResolver) []UndefinedRef {
	known := NewStore(nil, c.Variables)
	known.Set("iteration", Null())
	sub := NewSubstitutor(known, dynamic)

	var refs []UndefinedRef
	for _, step := range c.Steps {
		seen := make(map[string]bool)
		for _, f := range templateFields(step.Request) {
			for _, name := range sub.Missing(f.value) {
				if seen[name] {
					continue
				}
				seen[name] = true
				refs = append(refs, UndefinedRef{Step: step.Name, Field: f.name, Name: name})
			}
		}
		for _, rule := range step.Extract {
			known.Set(rule.Name, Null())
		}
	}
	return refs
}

type templateField struct {
	name  string
	value string
}

// templateFields lists the templated request fields in resolution order.
func templateFields(r RequestTemplate) []templateField {
	fields := []templateField{{"method", r.Method}, {"url", r.URL}}
	for _, group := range []struct {
		name string
		m    map[string]string
	}{{"headers", r.Headers}, {"query", r.Query}} {
		keys := make([]string, 0, len(group.m))
		for k := range group.m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fields = append(fields, templateField{group.name + "." + k, group.m[k]})
		}
	}
	return append(fields, templateField{"body", r.Body})
}

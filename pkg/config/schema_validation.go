package config

import (
	"fmt"
	"strings"

	"github.com/getmockd/reqchain/pkg/workflow"
)

// SchemaValidationError is a single document problem.
type SchemaValidationError struct {
	Path    string // document path, e.g. "steps[0].request.url"
	Message string
	Line    int
	Column  int
}

func (e SchemaValidationError) Error() string {
	var b strings.Builder
	if e.Line > 0 {
		fmt.Fprintf(&b, "line %d: ", e.Line)
	}
	if e.Path != "" {
		b.WriteString(e.Path + ": ")
	}
	b.WriteString(e.Message)
	return b.String()
}

// SchemaValidationResult contains all problems found in a document.
type SchemaValidationResult struct {
	Errors []SchemaValidationError
}

// IsValid returns true if there are no validation errors.
func (r *SchemaValidationResult) IsValid() bool {
	return len(r.Errors) == 0
}

// Error returns a combined error message.
func (r *SchemaValidationResult) Error() string {
	if r.IsValid() {
		return ""
	}
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "\n")
}

// AddError adds a validation error.
func (r *SchemaValidationResult) AddError(path, message string) {
	r.Errors = append(r.Errors, SchemaValidationError{Path: path, Message: message})
}

// ValidateDocument checks what the schema cannot express: matcher names and
// operands, target paths, credentials and step name uniqueness.
func ValidateDocument(doc *Document) *SchemaValidationResult {
	result := &SchemaValidationResult{}

	if len(doc.Steps) == 0 {
		result.AddError("steps", "at least one step is required")
	}
	if doc.Config.Iterations < 0 {
		result.AddError("config.iterations", "must not be negative")
	}
	if doc.Config.Delay < 0 {
		result.AddError("config.delay", "must not be negative")
	}
	if doc.Config.MaxDuration < 0 {
		result.AddError("config.maxDuration", "must not be negative")
	}
	if doc.Auth != nil {
		if err := doc.Auth.Validate(); err != nil {
			result.AddError("auth", err.Error())
		}
	}
	for name, v := range doc.Variables {
		if _, err := workflow.FromAny(v); err != nil {
			result.AddError("variables."+name, err.Error())
		}
	}

	names := make(map[string]int)
	for i := range doc.Steps {
		validateStep(&doc.Steps[i], fmt.Sprintf("steps[%d]", i), i, names, result)
	}
	return result
}

func validateStep(step *StepDoc, path string, index int, names map[string]int, result *SchemaValidationResult) {
	name := strings.TrimSpace(step.Name)
	if name == "" {
		result.AddError(path+".name", "required")
	} else if first, dup := names[name]; dup {
		result.AddError(path+".name", fmt.Sprintf("duplicate step name %q (first used by steps[%d])", name, first))
	} else {
		names[name] = index
	}

	if strings.TrimSpace(step.Request.URL) == "" {
		result.AddError(path+".request.url", "required")
	}
	if _, err := encodeBody(step.Request.Body); err != nil {
		result.AddError(path+".request.body", err.Error())
	}

	switch workflow.FailurePolicy(step.OnFailure) {
	case "", workflow.PolicyAbort, workflow.PolicyContinue:
	default:
		result.AddError(path+".onFailure", fmt.Sprintf("unknown policy %q, expected abort or continue", step.OnFailure))
	}
	if step.Timeout < 0 {
		result.AddError(path+".timeout", "must not be negative")
	}

	for j, rule := range step.Extract {
		rulePath := fmt.Sprintf("%s.extract[%d]", path, j)
		if strings.TrimSpace(rule.Name) == "" {
			result.AddError(rulePath+".name", "required")
		}
		if err := workflow.ValidateTarget(rule.Path); err != nil {
			result.AddError(rulePath+".path", err.Error())
		}
	}

	for j := range step.Assertions {
		assertionPath := fmt.Sprintf("%s.assertions[%d]", path, j)
		a, err := step.Assertions[j].toAssertion()
		if err != nil {
			result.AddError(assertionPath, err.Error())
			continue
		}
		if err := workflow.ValidateTarget(a.Path); err != nil {
			result.AddError(assertionPath+".path", err.Error())
		}
		if err := a.Matcher.Validate(); err != nil {
			result.AddError(assertionPath+".matcher", err.Error())
		}
	}
}

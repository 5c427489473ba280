package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Typed errors below unwrap to one of these so callers can
// classify failures with errors.Is.
var (
	ErrUnresolvedVariable = errors.New("unresolved variable")
	ErrInvalidPath        = errors.New("invalid path expression")
	ErrPathNotFound       = errors.New("path not found")
	ErrTypeMismatch       = errors.New("type mismatch")
	ErrTypeCoercion       = errors.New("type coercion")
	ErrInvalidPattern     = errors.New("invalid pattern")
	ErrUnknownMatcher     = errors.New("unknown matcher")
	ErrTransport          = errors.New("transport error")
	ErrScript             = errors.New("script error")
	ErrChainConfiguration = errors.New("invalid chain configuration")
	ErrMaxDuration        = errors.New("max duration exceeded")
)

// ErrorKind classifies the error recorded on a step result.
type ErrorKind string

// Error kinds.
const (
	ErrorKindNone       ErrorKind = ""
	ErrorKindTemplate   ErrorKind = "template"
	ErrorKindExtraction ErrorKind = "extraction"
	ErrorKindAssertion  ErrorKind = "assertion"
	ErrorKindTransport  ErrorKind = "transport"
	ErrorKindScript     ErrorKind = "script"
	ErrorKindCancelled  ErrorKind = "cancelled"
)

// TemplateError reports a placeholder that could not be resolved.
type TemplateError struct {
	Name  string
	Field string
}

func (e *TemplateError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: unresolved variable %q", e.Field, e.Name)
	}
	return fmt.Sprintf("unresolved variable %q", e.Name)
}

// Unwrap returns ErrUnresolvedVariable.
func (e *TemplateError) Unwrap() error { return ErrUnresolvedVariable }

// ExtractionError reports a path that could not be applied to a document.
// Err is ErrPathNotFound, ErrTypeMismatch or ErrInvalidPath.
type ExtractionError struct {
	Path    string
	Segment string
	Err     error
	Detail  string
}

func (e *ExtractionError) Error() string {
	var b strings.Builder
	b.WriteString(e.Err.Error())
	if e.Path != "" {
		fmt.Fprintf(&b, " in %q", e.Path)
	}
	if e.Segment != "" {
		fmt.Fprintf(&b, " at %s", e.Segment)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// AssertionError reports an assertion that could not be evaluated.
type AssertionError struct {
	Label string
	Err   error
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion %q: %v", e.Label, e.Err)
}

func (e *AssertionError) Unwrap() error { return e.Err }

// ChainConfigError lists every structural problem found in a chain.
type ChainConfigError struct {
	Chain    string
	Problems []string
}

func (e *ChainConfigError) Error() string {
	name := e.Chain
	if name == "" {
		name = "<unnamed>"
	}
	return fmt.Sprintf("chain %s: %s", name, strings.Join(e.Problems, "; "))
}

func (e *ChainConfigError) Unwrap() error { return ErrChainConfiguration }

// classify maps an error to the kind recorded on a step result.
func classify(err error) ErrorKind {
	var ae *AssertionError
	switch {
	case err == nil:
		return ErrorKindNone
	case errors.As(err, &ae):
		return ErrorKindAssertion
	case errors.Is(err, ErrTransport):
		return ErrorKindTransport
	case errors.Is(err, ErrScript):
		return ErrorKindScript
	case errors.Is(err, ErrUnresolvedVariable):
		return ErrorKindTemplate
	case errors.Is(err, ErrPathNotFound), errors.Is(err, ErrTypeMismatch), errors.Is(err, ErrInvalidPath):
		return ErrorKindExtraction
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorKindCancelled
	default:
		return ErrorKindTransport
	}
}

package workflow

import (
	"context"
	"fmt"
)

// ScriptPhase identifies when a script runs relative to dispatch.
type ScriptPhase string

// Script phases.
const (
	ScriptPre  ScriptPhase = "pre"
	ScriptPost ScriptPhase = "post"
)

// Scripts holds the optional hook sources of a step.
type Scripts struct {
	Pre  string `json:"pre,omitempty" yaml:"pre,omitempty"`
	Post string `json:"post,omitempty" yaml:"post,omitempty"`
}

// ScriptRunner executes script source against a ScriptContext. Returned
// errors are recorded on the step as script errors.
type ScriptRunner interface {
	Run(ctx context.Context, source string, sc *ScriptContext) error
}

// ScriptContext is the mutable view a script gets of the running step.
//
// Variable writes land in the store's step layer and are visible to every
// later phase and step. In the pre phase Request may be modified before it
// is dispatched; in the post phase the response is readable and Request is
// a snapshot.
type ScriptContext struct {
	Phase   ScriptPhase
	Request *RequestSpec

	store    *Store
	response *ResponseSpec
	logs     []string
}

// NewScriptContext creates a context over store. resp must be nil for the
// pre phase.
func NewScriptContext(phase ScriptPhase, store *Store, req *RequestSpec, resp *ResponseSpec) *ScriptContext {
	return &ScriptContext{Phase: phase, Request: req, store: store, response: resp}
}

// Get returns the current value of a variable.
func (c *ScriptContext) Get(name string) (Value, bool) {
	return c.store.Get(name)
}

// Set writes a variable.
func (c *ScriptContext) Set(name string, v Value) {
	c.store.Set(name, v)
}

// Unset removes a variable written during the run.
func (c *ScriptContext) Unset(name string) {
	c.store.Unset(name)
}

// Vars returns the merged variables.
func (c *ScriptContext) Vars() map[string]Value {
	return c.store.Snapshot()
}

// Response returns the dispatched response. It is only available in the
// post phase.
func (c *ScriptContext) Response() (*ResponseSpec, bool) {
	return c.response, c.response != nil
}

// Log appends a message to the step's log.
func (c *ScriptContext) Log(msg string) {
	c.logs = append(c.logs, msg)
}

// Logf is Log with formatting.
func (c *ScriptContext) Logf(format string, args ...any) {
	c.Log(fmt.Sprintf(format, args...))
}

// Logs returns the messages written so far.
func (c *ScriptContext) Logs() []string {
	return c.logs
}

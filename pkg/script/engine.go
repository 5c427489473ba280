package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/getmockd/reqchain/pkg/logging"
	"github.com/getmockd/reqchain/pkg/workflow"
)

// ErrFailed is returned when a script calls fail().
var ErrFailed = errors.New("script failed")

// Engine implements workflow.ScriptRunner. Compiled programs are cached
// per expression and environment shape; an Engine is safe for concurrent
// use by several executors.
type Engine struct {
	log *slog.Logger

	programMu    sync.RWMutex
	programCache map[string]*vm.Program
}

// NewEngine creates an engine. log may be nil.
func NewEngine(log *slog.Logger) *Engine {
	if log == nil {
		log = logging.Nop()
	}
	return &Engine{
		log:          log,
		programCache: make(map[string]*vm.Program),
	}
}

var _ workflow.ScriptRunner = (*Engine)(nil)

// Run evaluates source line by line against sc. Cancellation is checked
// between lines.
func (e *Engine) Run(ctx context.Context, source string, sc *workflow.ScriptContext) error {
	for n, line := range strings.Split(source, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "//") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := e.eval(line, newEnv(sc)); err != nil {
			return fmt.Errorf("%s script line %d: %w", sc.Phase, n+1, err)
		}
	}
	return nil
}

func (e *Engine) eval(expression string, env map[string]any) (any, error) {
	program, err := e.compile(expression, env)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", expression, err)
	}
	result, err := expr.Run(program, env)
	if err != nil {
		return nil, fmt.Errorf("eval %q: %w", expression, err)
	}
	return result, nil
}

func (e *Engine) compile(expression string, env map[string]any) (*vm.Program, error) {
	key := expression + "\x00" + envSignature(env)

	e.programMu.RLock()
	if program, ok := e.programCache[key]; ok {
		e.programMu.RUnlock()
		return program, nil
	}
	e.programMu.RUnlock()

	program, err := expr.Compile(expression, expr.Env(env))
	if err != nil {
		return nil, err
	}

	e.programMu.Lock()
	defer e.programMu.Unlock()
	if existing, ok := e.programCache[key]; ok {
		return existing, nil
	}
	e.programCache[key] = program
	e.log.Debug("compiled script expression", "expression", expression, "cached", len(e.programCache))
	return program, nil
}

// envSignature distinguishes pre and post environments, which expose
// different names.
func envSignature(env map[string]any) string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s:%T", k, env[k])
	}
	return strings.Join(parts, ",")
}

func newEnv(sc *workflow.ScriptContext) map[string]any {
	vars := make(map[string]any)
	for k, v := range sc.Vars() {
		vars[k] = v.Interface()
	}

	env := map[string]any{
		"vars":    vars,
		"request": requestView(sc.Request),
		"getVar": func(name string) any {
			v, ok := sc.Get(name)
			if !ok {
				return nil
			}
			return v.Interface()
		},
		"setVar": func(name string, value any) (any, error) {
			v, err := workflow.FromAny(value)
			if err != nil {
				return nil, err
			}
			sc.Set(name, v)
			return value, nil
		},
		"unsetVar": func(name string) bool {
			_, ok := sc.Get(name)
			sc.Unset(name)
			return ok
		},
		"log": func(args ...any) bool {
			parts := make([]string, len(args))
			for i, a := range args {
				parts[i] = fmt.Sprint(a)
			}
			sc.Log(strings.Join(parts, " "))
			return true
		},
		"fail": func(msg string) (bool, error) {
			return false, fmt.Errorf("%w: %s", ErrFailed, msg)
		},
	}

	if resp, ok := sc.Response(); ok {
		env["response"] = responseView(resp)
		return env
	}

	env["setHeader"] = func(name, value string) string {
		if sc.Request.Headers == nil {
			sc.Request.Headers = make(map[string]string)
		}
		sc.Request.Headers[name] = value
		return value
	}
	env["setQuery"] = func(name, value string) string {
		if sc.Request.Query == nil {
			sc.Request.Query = make(map[string]string)
		}
		sc.Request.Query[name] = value
		return value
	}
	env["setBody"] = func(body string) string {
		sc.Request.Body = body
		return body
	}
	return env
}

func requestView(req *workflow.RequestSpec) map[string]any {
	if req == nil {
		return map[string]any{}
	}
	return map[string]any{
		"method":  req.Method,
		"url":     req.URL,
		"headers": stringMap(req.Headers),
		"query":   stringMap(req.Query),
		"body":    req.Body,
	}
}

func responseView(resp *workflow.ResponseSpec) map[string]any {
	headers := make(map[string]any, len(resp.Headers))
	for k, vals := range resp.Headers {
		if len(vals) > 0 {
			headers[k] = vals[0]
		}
	}
	var doc any
	if v, err := resp.JSON(); err == nil {
		doc = v.Interface()
	}
	return map[string]any{
		"status":   resp.Status,
		"headers":  headers,
		"body":     resp.Body,
		"json":     doc,
		"duration": float64(resp.Elapsed.Microseconds()) / 1000,
	}
}

func stringMap(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

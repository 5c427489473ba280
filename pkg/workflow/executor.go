package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/getmockd/reqchain/internal/id"
	"github.com/getmockd/reqchain/pkg/logging"
)

// Executor runs chains step by step against a Dispatcher.
//
// An Executor holds no per-run state and may run several chains at once;
// every run gets its own Store and ChainResult.
type Executor struct {
	dispatcher Dispatcher
	scripts    ScriptRunner
	dynamic    DynamicResolver
	observer   Observer
	log        *slog.Logger
	now        func() time.Time
}

// Option configures an Executor.
type Option func(*Executor)

// WithScriptRunner sets the runtime for pre and post scripts. Steps with
// scripts error when no runner is configured.
func WithScriptRunner(r ScriptRunner) Option {
	return func(e *Executor) { e.scripts = r }
}

// WithDynamicResolver sets the resolver for $-prefixed placeholders.
func WithDynamicResolver(d DynamicResolver) Option {
	return func(e *Executor) { e.dynamic = d }
}

// WithObserver adds an observer. It may be given more than once.
func WithObserver(o Observer) Option {
	return func(e *Executor) {
		if existing, ok := e.observer.(Observers); ok {
			e.observer = append(existing, o)
			return
		}
		e.observer = Observers{o}
	}
}

// WithLogger sets the operational logger.
func WithLogger(log *slog.Logger) Option {
	return func(e *Executor) {
		if log != nil {
			e.log = log
		}
	}
}

// WithNowFunc overrides the clock used for result timestamps.
func WithNowFunc(fn func() time.Time) Option {
	return func(e *Executor) { e.now = fn }
}

// NewExecutor creates an executor that sends requests through d.
func NewExecutor(d Dispatcher, opts ...Option) *Executor {
	e := &Executor{
		dispatcher: d,
		observer:   NopObserver{},
		log:        logging.Nop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes chain once with env as the lowest-precedence variable layer.
//
// The only returned error is a *ChainConfigError for a chain that cannot
// run; every other failure is recorded in the result.
func (e *Executor) Run(ctx context.Context, chain *Chain, env map[string]Value) (*ChainResult, error) {
	return e.run(ctx, chain, env, 0)
}

// RunIterations runs chain the configured number of times. Each iteration
// starts from a fresh store. Iteration numbers start at 1 and are exposed
// to templates as {{iteration}}.
func (e *Executor) RunIterations(ctx context.Context, chain *Chain, env map[string]Value) ([]*ChainResult, error) {
	if err := chain.Validate(); err != nil {
		return nil, err
	}
	n := chain.IterationCount()
	results := make([]*ChainResult, 0, n)
	for i := 1; i <= n; i++ {
		if ctx.Err() != nil {
			break
		}
		res, err := e.run(ctx, chain, env, i)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

func (e *Executor) run(ctx context.Context, chain *Chain, env map[string]Value, iteration int) (*ChainResult, error) {
	if err := chain.Validate(); err != nil {
		return nil, err
	}

	start := e.now()
	result := &ChainResult{
		RunID:     id.ULID(),
		Chain:     chain.Name,
		Iteration: iteration,
		Steps:     make([]*StepResult, 0, len(chain.Steps)),
		StartedAt: start,
	}

	initial := chain.Variables
	if iteration > 0 {
		initial = make(map[string]Value, len(chain.Variables)+1)
		for k, v := range chain.Variables {
			initial[k] = v
		}
		if _, ok := initial["iteration"]; !ok {
			initial["iteration"] = Int(int64(iteration))
		}
	}
	store := NewStore(env, initial)

	// The deadline is only checked between steps; requests keep the
	// caller's context.
	var deadline time.Time
	if chain.Config.MaxDuration > 0 {
		deadline = start.Add(chain.Config.MaxDuration)
	}

	var limiter *rate.Limiter
	if chain.Config.Delay > 0 {
		limiter = rate.NewLimiter(rate.Every(chain.Config.Delay), 1)
	}

	log := e.log.With("run_id", result.RunID, "chain", chain.Name)
	log.Debug("chain started", "steps", len(chain.Steps), "iteration", iteration)
	e.observer.OnChainStart(result.RunID, chain)

	var stopReason string
	for i := range chain.Steps {
		step := &chain.Steps[i]

		if stopReason == "" {
			if err := ctx.Err(); err != nil {
				result.Cancelled = true
				result.Error = err.Error()
				stopReason = "run cancelled: " + err.Error()
			} else if !deadline.IsZero() && !e.now().Before(deadline) {
				result.Cancelled = true
				result.Error = fmt.Sprintf("%s: %s", ErrMaxDuration, chain.Config.MaxDuration)
				stopReason = "run cancelled: " + result.Error
				log.Warn("chain exceeded max duration", "max_duration", chain.Config.MaxDuration)
			}
		}
		if stopReason != "" {
			result.Steps = append(result.Steps, e.skip(step, stopReason))
			continue
		}
		if !step.IsEnabled() {
			result.Steps = append(result.Steps, e.skip(step, "step disabled"))
			continue
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				result.Cancelled = true
				result.Error = err.Error()
				stopReason = "run cancelled: " + err.Error()
				result.Steps = append(result.Steps, e.skip(step, stopReason))
				continue
			}
		}

		e.observer.OnStepStart(result.RunID, step)
		sr := e.runStep(ctx, chain, step, store)
		result.Steps = append(result.Steps, sr)
		e.observer.OnStepComplete(result.RunID, sr)

		log.Debug("step completed",
			"step", step.Name,
			"status", sr.Status,
			"phase", sr.Phase,
			"duration_ms", sr.Duration.Milliseconds(),
		)
		if sr.Status == StatusErrored {
			log.Warn("step errored", "step", step.Name, "phase", sr.Phase, "kind", sr.ErrorKind, "error", sr.Error)
		}

		if sr.Failed() && chain.PolicyFor(step) == PolicyAbort {
			stopReason = fmt.Sprintf("aborted after step %q %s", step.Name, sr.Status)
			log.Debug("chain aborted", "step", step.Name, "error", sr.Error)
		}
	}

	result.FinalVariables = store.Snapshot()
	result.tally()
	result.Duration = e.now().Sub(start)

	log.Debug("chain completed", "status", result.Status, "duration_ms", result.Duration.Milliseconds())
	e.observer.OnChainComplete(result)
	return result, nil
}

func (e *Executor) skip(step *Step, reason string) *StepResult {
	return &StepResult{
		StepID:     step.Name,
		Status:     StatusSkipped,
		Phase:      PhasePending,
		SkipReason: reason,
		StartedAt:  e.now(),
	}
}

// runStep drives one step through its phases. The first failing phase ends
// the step as Errored; otherwise assertions decide Passed or Failed.
func (e *Executor) runStep(ctx context.Context, chain *Chain, step *Step, store *Store) *StepResult {
	start := e.now()
	res := &StepResult{StepID: step.Name, Phase: PhasePending, StartedAt: start}
	defer func() { res.Duration = e.now().Sub(start) }()

	res.Phase = PhaseSubstituting
	req, err := e.resolveRequest(step, store)
	if err != nil {
		res.fail(PhaseSubstituting, err)
		return res
	}
	res.Request = req

	if step.Scripts.Pre != "" {
		res.Phase = PhasePreScript
		sc := NewScriptContext(ScriptPre, store, req, nil)
		err := e.runScript(ctx, step.Scripts.Pre, sc)
		res.Logs = append(res.Logs, sc.Logs()...)
		if err != nil {
			res.fail(PhasePreScript, err)
			return res
		}
	}

	res.Phase = PhaseDispatching
	resp, err := e.dispatcher.Dispatch(ctx, req.Clone())
	if err == nil && resp == nil {
		err = errors.New("dispatcher returned no response")
	}
	if err != nil {
		res.fail(PhaseDispatching, fmt.Errorf("%w: %w", ErrTransport, err))
		return res
	}
	res.Response = resp

	if step.Scripts.Post != "" {
		res.Phase = PhasePostScript
		sc := NewScriptContext(ScriptPost, store, req.Clone(), resp)
		err := e.runScript(ctx, step.Scripts.Post, sc)
		res.Logs = append(res.Logs, sc.Logs()...)
		if err != nil {
			res.fail(PhasePostScript, err)
			return res
		}
	}

	res.Phase = PhaseExtracting
	if err := e.extract(step, resp, store, res); err != nil {
		res.fail(PhaseExtracting, err)
		return res
	}

	res.Phase = PhaseValidating
	report := Validate(resp, step.Assertions)
	if chain.Checker != nil {
		for _, r := range chain.Checker.Check(ctx, req, resp) {
			report.Add(r)
		}
	}
	res.Assertions = &report

	if report.Errored > 0 {
		for _, r := range report.Results {
			if r.Status == StatusErrored {
				res.fail(PhaseValidating, &AssertionError{Label: r.Assertion.Label(), Err: assertionCause(r)})
				return res
			}
		}
	}

	res.Phase = PhaseCompleted
	if report.Failed > 0 {
		res.Status = StatusFailed
		res.Error = report.Summary()
		return res
	}
	res.Status = StatusPassed
	return res
}

func assertionCause(r AssertionResult) error {
	if r.Err != nil {
		return r.Err
	}
	return errors.New(r.Error)
}

// resolveRequest substitutes every templated field of the step's request.
func (e *Executor) resolveRequest(step *Step, store *Store) (*RequestSpec, error) {
	sub := NewSubstitutor(store, e.dynamic)
	tmpl := step.Request

	method := tmpl.Method
	if method == "" {
		method = "GET"
	}
	method, err := sub.SubstituteField("method", method)
	if err != nil {
		return nil, err
	}
	url, err := sub.SubstituteField("url", tmpl.URL)
	if err != nil {
		return nil, err
	}
	headers, err := sub.SubstituteMap("headers", tmpl.Headers)
	if err != nil {
		return nil, err
	}
	query, err := sub.SubstituteMap("query", tmpl.Query)
	if err != nil {
		return nil, err
	}
	body, err := sub.SubstituteField("body", tmpl.Body)
	if err != nil {
		return nil, err
	}

	return &RequestSpec{
		Method:  method,
		URL:     url,
		Headers: headers,
		Query:   query,
		Body:    body,
		Timeout: step.Timeout,
	}, nil
}

func (e *Executor) runScript(ctx context.Context, source string, sc *ScriptContext) error {
	if e.scripts == nil {
		return fmt.Errorf("%w: no script runner configured", ErrScript)
	}
	if err := e.scripts.Run(ctx, source, sc); err != nil {
		if errors.Is(err, ErrScript) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrScript, err)
	}
	return nil
}

// extract applies every rule and commits successful values to the store
// before any assertion runs. Failures of optional rules are dropped; the
// first failure of a required rule is returned after all rules ran.
func (e *Executor) extract(step *Step, resp *ResponseSpec, store *Store, res *StepResult) error {
	var first error
	for _, rule := range step.Extract {
		v, err := ResolveTarget(resp, rule.Path)
		if err != nil {
			if rule.Optional {
				e.log.Debug("optional extraction skipped", "step", step.Name, "name", rule.Name, "error", err)
				continue
			}
			res.ExtractionErrors = append(res.ExtractionErrors, ExtractionFailure{Rule: rule, Error: err.Error()})
			if first == nil {
				first = fmt.Errorf("extract %q: %w", rule.Name, err)
			}
			continue
		}
		store.Set(rule.Name, v)
		res.Extracted = append(res.Extracted, ExtractedVar{Name: rule.Name, Value: v})
	}
	return first
}

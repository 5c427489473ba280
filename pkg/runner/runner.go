package runner

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/getmockd/reqchain/pkg/auth"
	"github.com/getmockd/reqchain/pkg/config"
	"github.com/getmockd/reqchain/pkg/contract"
	"github.com/getmockd/reqchain/pkg/httpclient"
	"github.com/getmockd/reqchain/pkg/logging"
	"github.com/getmockd/reqchain/pkg/workflow"
)

// Config controls a batch of runs.
type Config struct {
	// Parallel is the number of chains run at once. Default: 1
	Parallel int

	// Iterations overrides every chain's configured iterations when > 0.
	Iterations int

	// Env is the environment variable layer, the lowest precedence.
	Env map[string]workflow.Value

	// Variables override the chain's initial variables (--var).
	Variables map[string]workflow.Value

	// HTTP is the dispatcher configuration used for every chain.
	HTTP httpclient.Config
}

// Result is the outcome of one chain file.
type Result struct {
	Path  string
	Chain string

	// Iterations holds one result per completed iteration.
	Iterations []*workflow.ChainResult

	// Err is set when the chain could not start: unresolvable credentials,
	// an unreadable contract or an invalid configuration.
	Err error

	Duration time.Duration
}

// Passed reports whether the chain started and every iteration passed.
func (r *Result) Passed() bool {
	if r.Err != nil || len(r.Iterations) == 0 {
		return false
	}
	for _, it := range r.Iterations {
		if !it.Success() {
			return false
		}
	}
	return true
}

// Status is errored when the chain could not start, failed when any
// iteration failed and passed otherwise.
func (r *Result) Status() workflow.Status {
	switch {
	case r.Err != nil:
		return workflow.StatusErrored
	case r.Passed():
		return workflow.StatusPassed
	default:
		return workflow.StatusFailed
	}
}

// Runner runs loaded chains.
type Runner struct {
	cfg       Config
	observers []workflow.Observer
	scripts   workflow.ScriptRunner
	dynamic   workflow.DynamicResolver
	acquirer  *auth.Acquirer
	transport httpclient.HTTPClient
	log       *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithObserver adds an observer to every run.
func WithObserver(o workflow.Observer) Option {
	return func(r *Runner) { r.observers = append(r.observers, o) }
}

// WithScriptRunner sets the runtime for step scripts.
func WithScriptRunner(s workflow.ScriptRunner) Option {
	return func(r *Runner) { r.scripts = s }
}

// WithDynamicResolver replaces the built-in dynamic variable generators.
func WithDynamicResolver(d workflow.DynamicResolver) Option {
	return func(r *Runner) { r.dynamic = d }
}

// WithAcquirer sets the credential acquirer shared by all runs.
func WithAcquirer(a *auth.Acquirer) Option {
	return func(r *Runner) { r.acquirer = a }
}

// WithTransport sends every request through c instead of a fresh
// *http.Client per chain. Cookies are then c's concern.
func WithTransport(c httpclient.HTTPClient) Option {
	return func(r *Runner) { r.transport = c }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(r *Runner) {
		if log != nil {
			r.log = log
		}
	}
}

// New creates a runner.
func New(cfg Config, opts ...Option) *Runner {
	if cfg.Parallel < 1 {
		cfg.Parallel = 1
	}
	r := &Runner{cfg: cfg, log: logging.Nop()}
	for _, opt := range opts {
		opt(r)
	}
	if r.dynamic == nil {
		r.dynamic = workflow.NewGenerators(0)
	}
	if r.acquirer == nil {
		r.acquirer = auth.NewAcquirer(nil, r.log)
	}
	return r
}

// RunAll runs chains with at most Config.Parallel in flight. Results are in
// input order. A cancelled context stops chains that have not started and
// cancels the ones in flight; their results are still returned.
func (r *Runner) RunAll(ctx context.Context, chains []*config.LoadedChain) []*Result {
	results := make([]*Result, len(chains))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Parallel)

	for i, lc := range chains {
		results[i] = &Result{Path: lc.Path, Chain: lc.Chain.Name}
		if ctx.Err() != nil {
			results[i].Err = ctx.Err()
			continue
		}
		g.Go(func() error {
			r.run(ctx, lc, results[i])
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// Run runs a single chain.
func (r *Runner) Run(ctx context.Context, lc *config.LoadedChain) *Result {
	res := &Result{Path: lc.Path, Chain: lc.Chain.Name}
	r.run(ctx, lc, res)
	return res
}

func (r *Runner) run(ctx context.Context, lc *config.LoadedChain, res *Result) {
	start := time.Now()
	defer func() { res.Duration = time.Since(start) }()

	log := r.log.With("chain", lc.Chain.Name, "path", lc.Path)

	chain := r.prepare(lc.Chain)
	if lc.Contract != "" {
		checker, err := contract.LoadFile(lc.Contract, contract.WithLogger(log))
		if err != nil {
			res.Err = err
			log.Warn("contract unavailable", "contract", lc.Contract, "error", err)
			return
		}
		chain.Checker = checker
	}

	opts := []httpclient.Option{httpclient.WithLogger(log)}
	if r.transport != nil {
		opts = append(opts, httpclient.WithHTTPClient(r.transport))
	}
	if lc.Auth != nil && !lc.Auth.IsZero() {
		cred, err := r.resolveCredential(*lc.Auth, chain)
		if err != nil {
			res.Err = fmt.Errorf("resolving auth: %w", err)
			log.Warn("auth unavailable", "error", err)
			return
		}
		opts = append(opts, httpclient.WithAuth(r.acquirer.Source(cred)))
	}
	client, err := httpclient.New(r.cfg.HTTP, opts...)
	if err != nil {
		res.Err = err
		return
	}

	exec := workflow.NewExecutor(client, r.executorOptions(client, log)...)
	iterations, err := exec.RunIterations(ctx, chain, r.cfg.Env)
	res.Iterations = iterations
	if err != nil {
		res.Err = err
		log.Warn("chain did not run", "error", err)
		return
	}
	log.Debug("chain finished", "status", res.Status(), "iterations", len(iterations))
}

// prepare returns a shallow copy of chain with the run overrides applied.
func (r *Runner) prepare(chain *workflow.Chain) *workflow.Chain {
	c := *chain
	if len(r.cfg.Variables) > 0 {
		c.Variables = make(map[string]workflow.Value, len(chain.Variables)+len(r.cfg.Variables))
		maps.Copy(c.Variables, chain.Variables)
		maps.Copy(c.Variables, r.cfg.Variables)
	}
	if r.cfg.Iterations > 0 {
		c.Config.Iterations = r.cfg.Iterations
	}
	return &c
}

// resolveCredential fills placeholders in cred from the same layers a
// step sees before its first request.
func (r *Runner) resolveCredential(cred auth.Credential, chain *workflow.Chain) (auth.Credential, error) {
	sub := workflow.NewSubstitutor(workflow.NewStore(r.cfg.Env, chain.Variables), r.dynamic)
	return cred.Resolve(sub.Substitute)
}

func (r *Runner) executorOptions(client *httpclient.Client, log *slog.Logger) []workflow.Option {
	opts := []workflow.Option{
		workflow.WithDynamicResolver(r.dynamic),
		workflow.WithLogger(log),
		workflow.WithObserver(&cookieReset{client: client, log: log}),
	}
	if r.scripts != nil {
		opts = append(opts, workflow.WithScriptRunner(r.scripts))
	}
	for _, o := range r.observers {
		opts = append(opts, workflow.WithObserver(o))
	}
	return opts
}

// cookieReset gives every iteration a fresh cookie session.
type cookieReset struct {
	workflow.NopObserver
	client *httpclient.Client
	log    *slog.Logger
}

func (c *cookieReset) OnChainStart(string, *workflow.Chain) {
	if err := c.client.ResetCookies(); err != nil {
		c.log.Warn("failed to reset cookies", "error", err)
	}
}

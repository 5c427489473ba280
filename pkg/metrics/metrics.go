package metrics

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	dto "github.com/prometheus/client_model/go"

	"github.com/getmockd/reqchain/pkg/workflow"
)

// Namespace prefixes every metric name.
const Namespace = "reqchain"

// Config tunes a Recorder.
type Config struct {
	// Buckets are the duration histogram buckets in seconds.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Runtime also registers the Go runtime and process collectors.
	Runtime bool
}

// Recorder implements workflow.Observer. It is safe for concurrent use by
// executors running on several goroutines.
type Recorder struct {
	registry *prometheus.Registry

	runsTotal    *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	stepsTotal   *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	assertions   *prometheus.CounterVec
	responses    *prometheus.CounterVec
	runsInFlight prometheus.Gauge

	mu     sync.Mutex
	chains map[string]string
}

// NewRecorder creates a recorder with a private registry.
func NewRecorder(cfg Config) *Recorder {
	if len(cfg.Buckets) == 0 {
		cfg.Buckets = prometheus.DefBuckets
	}

	r := &Recorder{
		registry: prometheus.NewRegistry(),
		chains:   make(map[string]string),
	}

	r.runsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "chain_runs_total",
		Help:      "Number of finished chain runs.",
	}, []string{"chain", "status"})

	r.runDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "chain_duration_seconds",
		Help:      "Duration of chain runs in seconds.",
		Buckets:   cfg.Buckets,
	}, []string{"chain"})

	r.stepsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "steps_total",
		Help:      "Number of steps by final status.",
	}, []string{"chain", "step", "status"})

	r.stepDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Name:      "step_duration_seconds",
		Help:      "Duration of executed steps in seconds.",
		Buckets:   cfg.Buckets,
	}, []string{"chain", "step"})

	r.assertions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "assertions_total",
		Help:      "Number of evaluated assertions and contract checks by result.",
	}, []string{"chain", "result"})

	r.responses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Name:      "responses_total",
		Help:      "Number of received responses by status code.",
	}, []string{"chain", "code"})

	r.runsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: Namespace,
		Name:      "runs_in_flight",
		Help:      "Number of chain runs currently executing.",
	})

	r.registry.MustRegister(
		r.runsTotal,
		r.runDuration,
		r.stepsTotal,
		r.stepDuration,
		r.assertions,
		r.responses,
		r.runsInFlight,
	)
	if cfg.Runtime {
		r.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return r
}

// Registry returns the recorder's registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Gather collects the current metric families.
func (r *Recorder) Gather() ([]*dto.MetricFamily, error) {
	return r.registry.Gather()
}

// WriteToTextfile writes the registry in the node_exporter textfile format.
// The file is written atomically.
func (r *Recorder) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}

// OnChainStart implements workflow.Observer.
func (r *Recorder) OnChainStart(runID string, chain *workflow.Chain) {
	r.mu.Lock()
	r.chains[runID] = chain.Name
	r.mu.Unlock()
	r.runsInFlight.Inc()
}

// OnStepStart implements workflow.Observer.
func (r *Recorder) OnStepStart(string, *workflow.Step) {}

// OnStepComplete implements workflow.Observer.
func (r *Recorder) OnStepComplete(runID string, res *workflow.StepResult) {
	chain := r.chainOf(runID)
	r.stepsTotal.WithLabelValues(chain, res.StepID, string(res.Status)).Inc()
	r.stepDuration.WithLabelValues(chain, res.StepID).Observe(res.Duration.Seconds())
	if res.Response != nil {
		r.responses.WithLabelValues(chain, strconv.Itoa(res.Response.Status)).Inc()
	}
	if rep := res.Assertions; rep != nil {
		r.assertions.WithLabelValues(chain, string(workflow.StatusPassed)).Add(float64(rep.Passed))
		r.assertions.WithLabelValues(chain, string(workflow.StatusFailed)).Add(float64(rep.Failed))
		r.assertions.WithLabelValues(chain, string(workflow.StatusErrored)).Add(float64(rep.Errored))
	}
}

// OnChainComplete implements workflow.Observer. Skipped steps are counted
// here since the executor reports only executed steps individually.
func (r *Recorder) OnChainComplete(result *workflow.ChainResult) {
	r.mu.Lock()
	delete(r.chains, result.RunID)
	r.mu.Unlock()

	for _, s := range result.Steps {
		if s.Status == workflow.StatusSkipped {
			r.stepsTotal.WithLabelValues(result.Chain, s.StepID, string(s.Status)).Inc()
		}
	}
	r.runsTotal.WithLabelValues(result.Chain, string(result.Status)).Inc()
	r.runDuration.WithLabelValues(result.Chain).Observe(result.Duration.Seconds())
	r.runsInFlight.Dec()
}

func (r *Recorder) chainOf(runID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.chains[runID]
}

package history

import (
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/getmockd/reqchain/pkg/workflow"
)

// Recorder is a workflow.Observer that logs one entry per executed step.
// Skipped steps are not recorded.
type Recorder struct {
	workflow.NopObserver

	logger Logger

	mu     sync.Mutex
	chains map[string]string
}

// NewRecorder creates a recorder writing to logger.
func NewRecorder(logger Logger) *Recorder {
	return &Recorder{logger: logger, chains: make(map[string]string)}
}

// OnChainStart remembers the chain name for the run.
func (r *Recorder) OnChainStart(runID string, chain *workflow.Chain) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chains[runID] = chain.Name
}

// OnStepComplete records the step.
func (r *Recorder) OnStepComplete(runID string, res *workflow.StepResult) {
	r.mu.Lock()
	chain := r.chains[runID]
	r.mu.Unlock()

	entry := &Entry{
		Timestamp:  res.StartedAt,
		RunID:      runID,
		Chain:      chain,
		Step:       res.StepID,
		DurationMs: res.Duration.Milliseconds(),
		Outcome:    res.Status,
		Error:      res.Error,
	}
	if res.Request != nil {
		entry.Method = res.Request.Method
		entry.URL = fullURL(res.Request)
	}
	if res.Response != nil {
		entry.Status = res.Response.Status
	}
	r.logger.Log(entry)
}

// OnChainComplete forgets the run.
func (r *Recorder) OnChainComplete(result *workflow.ChainResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.chains, result.RunID)
}

func fullURL(req *workflow.RequestSpec) string {
	if len(req.Query) == 0 {
		return req.URL
	}
	keys := make([]string, 0, len(req.Query))
	for k := range req.Query {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, url.QueryEscape(k)+"="+url.QueryEscape(req.Query[k]))
	}
	sep := "?"
	if strings.Contains(req.URL, "?") {
		sep = "&"
	}
	return req.URL + sep + strings.Join(pairs, "&")
}

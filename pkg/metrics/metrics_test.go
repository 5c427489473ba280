package metrics

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/reqchain/pkg/workflow"
)

func statusIs(code string) workflow.Assertion {
	return workflow.Assertion{Path: "status", Matcher: workflow.Matcher{Kind: workflow.MatchEquals, Expected: code}}
}

func runChain(t *testing.T, rec *Recorder) *workflow.ChainResult {
	t.Helper()
	d := workflow.DispatcherFunc(func(_ context.Context, req *workflow.RequestSpec) (*workflow.ResponseSpec, error) {
		if strings.HasSuffix(req.URL, "/health") {
			return &workflow.ResponseSpec{Status: 200, Body: `{}`}, nil
		}
		return &workflow.ResponseSpec{Status: 503, Body: `{}`}, nil
	})
	chain := &workflow.Chain{
		Name: "smoke",
		Steps: []workflow.Step{
			{Name: "health", Request: workflow.RequestTemplate{Method: "GET", URL: "https://api.test/health"}, Assertions: []workflow.Assertion{statusIs("200")}},
			{Name: "orders", Request: workflow.RequestTemplate{Method: "GET", URL: "https://api.test/orders"}, Assertions: []workflow.Assertion{statusIs("200")}},
			{Name: "cleanup", Request: workflow.RequestTemplate{Method: "DELETE", URL: "https://api.test/orders"}},
		},
	}
	res, err := workflow.NewExecutor(d, workflow.WithObserver(rec)).Run(context.Background(), chain, nil)
	require.NoError(t, err)
	return res
}

func TestRecorder_CountsRun(t *testing.T) {
	rec := NewRecorder(Config{})
	res := runChain(t, rec)
	require.Equal(t, workflow.StatusFailed, res.Status)

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"failed runs", testutil.ToFloat64(rec.runsTotal.WithLabelValues("smoke", "failed")), 1},
		{"passed runs", testutil.ToFloat64(rec.runsTotal.WithLabelValues("smoke", "passed")), 0},
		{"passed step", testutil.ToFloat64(rec.stepsTotal.WithLabelValues("smoke", "health", "passed")), 1},
		{"failed step", testutil.ToFloat64(rec.stepsTotal.WithLabelValues("smoke", "orders", "failed")), 1},
		{"skipped step", testutil.ToFloat64(rec.stepsTotal.WithLabelValues("smoke", "cleanup", "skipped")), 1},
		{"passed assertions", testutil.ToFloat64(rec.assertions.WithLabelValues("smoke", "passed")), 1},
		{"failed assertions", testutil.ToFloat64(rec.assertions.WithLabelValues("smoke", "failed")), 1},
		{"200 responses", testutil.ToFloat64(rec.responses.WithLabelValues("smoke", "200")), 1},
		{"503 responses", testutil.ToFloat64(rec.responses.WithLabelValues("smoke", "503")), 1},
		{"in flight", testutil.ToFloat64(rec.runsInFlight), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.got, 0)
		})
	}

	assert.Equal(t, 1, testutil.CollectAndCount(rec.runDuration))
	assert.Equal(t, 2, testutil.CollectAndCount(rec.stepDuration), "skipped steps have no duration sample")
	assert.Empty(t, rec.chains, "run bookkeeping is released")
}

func TestRecorder_Gather(t *testing.T) {
	rec := NewRecorder(Config{})
	runChain(t, rec)

	families, err := rec.Gather()
	require.NoError(t, err)
	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"reqchain_chain_runs_total",
		"reqchain_chain_duration_seconds",
		"reqchain_steps_total",
		"reqchain_step_duration_seconds",
		"reqchain_assertions_total",
		"reqchain_responses_total",
		"reqchain_runs_in_flight",
	} {
		assert.True(t, names[want], "missing %s", want)
	}
	assert.False(t, names["go_goroutines"], "runtime collectors are opt-in")
}

func TestRecorder_RuntimeCollectors(t *testing.T) {
	rec := NewRecorder(Config{Runtime: true})
	families, err := rec.Gather()
	require.NoError(t, err)

	found := false
	for _, f := range families {
		if f.GetName() == "go_goroutines" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestRecorder_WriteToTextfile(t *testing.T) {
	rec := NewRecorder(Config{})
	runChain(t, rec)

	path := filepath.Join(t.TempDir(), "reqchain.prom")
	require.NoError(t, rec.WriteToTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `reqchain_chain_runs_total{chain="smoke",status="failed"} 1`)
	assert.Contains(t, out, "# TYPE reqchain_step_duration_seconds histogram")
}

func TestRecorder_SeparateRegistries(t *testing.T) {
	a, b := NewRecorder(Config{}), NewRecorder(Config{})
	runChain(t, a)
	assert.InDelta(t, 0, testutil.ToFloat64(b.runsTotal.WithLabelValues("smoke", "failed")), 0)
}

// Package metrics exposes chain execution as Prometheus metrics.
//
// A Recorder is a workflow.Observer backed by its own registry, so several
// recorders never collide and nothing leaks into the global default
// registry. The CLI writes the registry in the textfile-collector format
// after a run (reqchain run --metrics-file).
//
// # Metrics
//
//   - reqchain_chain_runs_total: finished runs (labels: chain, status)
//   - reqchain_chain_duration_seconds: run duration (labels: chain)
//   - reqchain_steps_total: executed and skipped steps (labels: chain, step, status)
//   - reqchain_step_duration_seconds: step duration (labels: chain, step)
//   - reqchain_assertions_total: evaluated checks (labels: chain, result)
//   - reqchain_responses_total: responses by status code (labels: chain, code)
//   - reqchain_runs_in_flight: runs currently executing
//
// # Usage
//
//	rec := metrics.NewRecorder(metrics.Config{})
//	exec := workflow.NewExecutor(client, workflow.WithObserver(rec))
//	// ... run chains ...
//	err := rec.WriteToTextfile("reqchain.prom")
package metrics

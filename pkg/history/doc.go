// Package history records what chain runs sent and received, for later
// inspection with "reqchain history". It is distinct from operational
// logging, which goes through log/slog.
//
// # Core Types
//
// Entry is one executed step: the resolved request, the response status,
// the outcome and the error, tagged with the run and chain it belongs to.
//
// # Store Interface
//
// Store supports recording entries, querying by ID or with a Filter, and
// clearing. Two implementations are provided:
//
//   - MemoryStore: a bounded ring, newest entries evict the oldest
//   - FileStore: JSON lines on disk, trimmed to a maximum entry count
//
// # Usage
//
// Recorder adapts a Store into a workflow.Observer:
//
//	store := history.NewFileStore(path, 1000)
//	exec := workflow.NewExecutor(client, workflow.WithObserver(history.NewRecorder(store)))
package history

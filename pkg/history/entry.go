package history

import (
	"time"

	"github.com/getmockd/reqchain/pkg/workflow"
)

// Entry is the record of one executed step.
type Entry struct {
	// ID is a unique identifier for the entry.
	ID string `json:"id"`

	// Timestamp is when the step started.
	Timestamp time.Time `json:"timestamp"`

	// RunID identifies the chain run the step belonged to.
	RunID string `json:"runId"`

	// Chain and Step name what ran.
	Chain string `json:"chain"`
	Step  string `json:"step"`

	// Method and URL are the resolved request, query string included.
	Method string `json:"method,omitempty"`
	URL    string `json:"url,omitempty"`

	// Status is the response status code, zero if no response arrived.
	Status int `json:"status,omitempty"`

	// DurationMs is the step's wall time in milliseconds.
	DurationMs int64 `json:"durationMs"`

	// Outcome is the step status: passed, failed or errored.
	Outcome workflow.Status `json:"outcome"`

	// Error holds the failure summary for failed and errored steps.
	Error string `json:"error,omitempty"`
}

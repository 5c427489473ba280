package history

import (
	"strings"
	"time"

	"github.com/getmockd/reqchain/pkg/workflow"
)

// Logger is the minimal interface for recording entries.
type Logger interface {
	Log(entry *Entry)
}

// Store defines history storage. Store embeds Logger, so any Store can be
// handed to a Recorder.
type Store interface {
	Logger

	// Get retrieves an entry by ID.
	Get(id string) *Entry

	// List returns entries newest first, optionally filtered.
	List(filter *Filter) []*Entry

	// Clear removes all entries.
	Clear() error

	// Count returns the number of entries.
	Count() int
}

// Filter defines criteria for listing entries.
type Filter struct {
	// Chain filters by chain name.
	Chain string

	// Step filters by step name prefix.
	Step string

	// RunID filters by run.
	RunID string

	// Outcome filters by step status.
	Outcome workflow.Status

	// Since drops entries older than this time.
	Since time.Time

	// Limit is the maximum number of entries to return.
	Limit int

	// Offset is the number of entries to skip.
	Offset int
}

func (f *Filter) matches(e *Entry) bool {
	if f == nil {
		return true
	}
	if f.Chain != "" && e.Chain != f.Chain {
		return false
	}
	if f.Step != "" && !strings.HasPrefix(e.Step, f.Step) {
		return false
	}
	if f.RunID != "" && e.RunID != f.RunID {
		return false
	}
	if f.Outcome != "" && e.Outcome != f.Outcome {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	return true
}

// page applies offset and limit to entries already ordered newest first.
func (f *Filter) page(entries []*Entry) []*Entry {
	if f == nil {
		return entries
	}
	if f.Offset > 0 {
		if f.Offset >= len(entries) {
			return []*Entry{}
		}
		entries = entries[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(entries) {
		entries = entries[:f.Limit]
	}
	return entries
}

// selectNewestFirst walks oldest-first entries backwards through the filter.
func selectNewestFirst(entries []*Entry, filter *Filter) []*Entry {
	result := make([]*Entry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		if filter.matches(entries[i]) {
			result = append(result, entries[i])
		}
	}
	return filter.page(result)
}

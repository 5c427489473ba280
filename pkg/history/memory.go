package history

import (
	"sync"
	"time"

	"github.com/getmockd/reqchain/internal/id"
)

// DefaultLimit is the capacity used when a non-positive limit is given.
const DefaultLimit = 1000

// MemoryStore keeps the most recent entries in a bounded buffer.
type MemoryStore struct {
	mu         sync.RWMutex
	entries    []*Entry
	maxEntries int
}

// NewMemoryStore creates a store holding at most maxEntries entries.
func NewMemoryStore(maxEntries int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = DefaultLimit
	}
	return &MemoryStore{
		entries:    make([]*Entry, 0, maxEntries),
		maxEntries: maxEntries,
	}
}

// Log records an entry, evicting the oldest one at capacity.
func (s *MemoryStore) Log(entry *Entry) {
	if entry == nil {
		return
	}
	fillDefaults(entry)

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) >= s.maxEntries {
		s.entries = s.entries[1:]
	}
	s.entries = append(s.entries, entry)
}

// Get retrieves an entry by ID.
func (s *MemoryStore) Get(id string) *Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// List returns entries newest first.
func (s *MemoryStore) List(filter *Filter) []*Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return selectNewestFirst(s.entries, filter)
}

// Clear removes all entries.
func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make([]*Entry, 0, s.maxEntries)
	return nil
}

// Count returns the number of entries.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func fillDefaults(e *Entry) {
	if e.ID == "" {
		e.ID = id.ULID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
}

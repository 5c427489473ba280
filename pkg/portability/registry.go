package portability

import (
	"sort"
	"sync"
)

// Registry maps formats to importers.
type Registry struct {
	mu        sync.RWMutex
	importers map[Format]Importer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{importers: make(map[Format]Importer)}
}

var defaultRegistry = NewRegistry()

// RegisterImporter adds an importer to the default registry.
func RegisterImporter(importer Importer) {
	defaultRegistry.Register(importer)
}

// GetImporter returns the importer for a format from the default registry.
func GetImporter(format Format) Importer {
	return defaultRegistry.Get(format)
}

// Register adds importer, replacing any importer for the same format.
func (r *Registry) Register(importer Importer) {
	if importer == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.importers[importer.Format()] = importer
}

// Get returns the importer for format, or nil.
func (r *Registry) Get(format Format) Importer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.importers[format]
}

// Formats returns the registered formats, sorted.
func (r *Registry) Formats() []Format {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Format, 0, len(r.importers))
	for f := range r.importers {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

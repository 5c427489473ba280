package workflow

// Store layers, lowest precedence first.
const (
	layerEnvironment = iota
	layerChain
	layerStep
	layerCount
)

// Store is the layered variable environment of one chain execution.
//
// Lookups consult the step layer, then the chain's initial variables, then
// the environment defaults. Only the step layer is written during a run.
// A Store belongs to a single execution and is not safe for concurrent use.
type Store struct {
	layers [layerCount]map[string]Value
}

// NewStore builds a store from environment defaults and chain variables.
// Both maps are copied.
func NewStore(env, initial map[string]Value) *Store {
	s := &Store{}
	for i := range s.layers {
		s.layers[i] = make(map[string]Value)
	}
	for k, v := range env {
		s.layers[layerEnvironment][k] = v
	}
	for k, v := range initial {
		s.layers[layerChain][k] = v
	}
	return s
}

// Get returns the highest-precedence value bound to name.
func (s *Store) Get(name string) (Value, bool) {
	for l := layerStep; l >= layerEnvironment; l-- {
		if v, ok := s.layers[l][name]; ok {
			return v, true
		}
	}
	return Value{}, false
}

// Set binds name in the step layer, shadowing lower layers.
func (s *Store) Set(name string, v Value) {
	s.layers[layerStep][name] = v
}

// Unset removes name from the step layer. Lower layers become visible again.
func (s *Store) Unset(name string) {
	delete(s.layers[layerStep], name)
}

// Snapshot returns the merged view of all layers.
func (s *Store) Snapshot() map[string]Value {
	out := make(map[string]Value)
	for l := layerEnvironment; l < layerCount; l++ {
		for k, v := range s.layers[l] {
			out[k] = v
		}
	}
	return out
}

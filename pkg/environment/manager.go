package environment

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/getmockd/reqchain/pkg/logging"
	"github.com/getmockd/reqchain/pkg/workflow"
)

// Manager holds the environments of one directory and the active one.
type Manager struct {
	dir     string
	environ func() []string
	log     *slog.Logger

	mu     sync.RWMutex
	envs   map[string]*Environment
	active string
}

// NewManager creates a manager for dir. Nothing is read until Load.
func NewManager(dir string) *Manager {
	return &Manager{
		dir:     dir,
		environ: os.Environ,
		log:     logging.Nop(),
		envs:    make(map[string]*Environment),
	}
}

// SetLogger sets the operational logger.
func (m *Manager) SetLogger(log *slog.Logger) {
	if log != nil {
		m.log = log
	}
}

// SetEnviron replaces the process environment source used by Resolve.
func (m *Manager) SetEnviron(fn func() []string) {
	m.environ = fn
}

// Load reads every .yaml, .yml and .json file directly inside the
// directory. A missing directory loads nothing. Files that fail to parse
// are reported together after the rest are loaded.
func (m *Manager) Load() error {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			m.log.Debug("environment directory not found", "dir", m.dir)
			return nil
		}
		return fmt.Errorf("failed to read environment directory: %w", err)
	}

	loaded := make(map[string]*Environment)
	var errs []error
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".yaml", ".yml", ".json":
		default:
			continue
		}
		path := filepath.Join(m.dir, entry.Name())
		env, err := LoadFile(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if prev, ok := loaded[env.Name]; ok {
			errs = append(errs, fmt.Errorf("%s: environment %q already defined in %s", path, env.Name, prev.Path))
			continue
		}
		loaded[env.Name] = env
	}

	m.mu.Lock()
	m.envs = loaded
	m.mu.Unlock()

	m.log.Debug("environments loaded", "dir", m.dir, "count", len(loaded))
	return errors.Join(errs...)
}

// Add registers env, replacing any environment with the same name.
func (m *Manager) Add(env *Environment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.envs[env.Name] = env
}

// Get returns the named environment.
func (m *Manager) Get(name string) (*Environment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	env, ok := m.envs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return env, nil
}

// List returns all environments sorted by name.
func (m *Manager) List() []*Environment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Environment, 0, len(m.envs))
	for _, env := range m.envs {
		out = append(out, env)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Select makes name the active environment. An empty name clears it.
func (m *Manager) Select(name string) error {
	if name != "" {
		if _, err := m.Get(name); err != nil {
			return err
		}
	}
	m.mu.Lock()
	m.active = name
	m.mu.Unlock()
	return nil
}

// Active returns the active environment, if one is selected.
func (m *Manager) Active() (*Environment, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.active == "" {
		return nil, false
	}
	env, ok := m.envs[m.active]
	return env, ok
}

// Resolve returns the environment layer for a run: the enabled variables
// of the active environment with the process overlay applied.
func (m *Manager) Resolve() (map[string]workflow.Value, error) {
	values := map[string]workflow.Value{}
	if env, ok := m.Active(); ok {
		v, err := env.Values()
		if err != nil {
			return nil, fmt.Errorf("environment %q: %w", env.Name, err)
		}
		values = v
	}
	var environ []string
	if m.environ != nil {
		environ = m.environ()
	}
	return Overlay(values, environ), nil
}

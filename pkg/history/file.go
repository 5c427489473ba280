package history

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/getmockd/reqchain/pkg/logging"
)

// FileStore persists entries as JSON lines. The file is trimmed to the
// newest maxEntries entries whenever it grows past that.
//
// FileStore serializes access within one process only; concurrent reqchain
// processes writing the same file may interleave trims.
type FileStore struct {
	path       string
	maxEntries int
	log        *slog.Logger

	mu    sync.Mutex
	count int // -1 until the file has been read
}

// NewFileStore creates a store at path. The file and its directory are
// created on first write.
func NewFileStore(path string, maxEntries int) *FileStore {
	if maxEntries <= 0 {
		maxEntries = DefaultLimit
	}
	return &FileStore{path: path, maxEntries: maxEntries, log: logging.Nop(), count: -1}
}

// SetLogger sets the operational logger used to report write failures.
func (s *FileStore) SetLogger(log *slog.Logger) {
	if log != nil {
		s.log = log
	}
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// Log appends an entry. Write failures are logged, never returned, so a
// broken history file cannot fail a run.
func (s *FileStore) Log(entry *Entry) {
	if entry == nil {
		return
	}
	fillDefaults(entry)
	if err := s.append(entry); err != nil {
		s.log.Warn("failed to write history entry", "path", s.path, "error", err)
	}
}

func (s *FileStore) append(entry *Entry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.count < 0 {
		entries, err := s.read()
		if err != nil {
			return err
		}
		s.count = len(entries)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create history directory: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	s.count++

	if s.count > s.maxEntries {
		return s.trim()
	}
	return nil
}

// trim rewrites the file with the newest maxEntries entries. Callers hold mu.
func (s *FileStore) trim() error {
	entries, err := s.read()
	if err != nil {
		return err
	}
	if len(entries) > s.maxEntries {
		entries = entries[len(entries)-s.maxEntries:]
	}
	if err := s.write(entries); err != nil {
		return err
	}
	s.count = len(entries)
	return nil
}

// read returns all entries oldest first. Malformed lines are skipped.
func (s *FileStore) read() ([]*Entry, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var entries []*Entry
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(line, &e); err != nil {
			s.log.Debug("skipping malformed history line", "path", s.path, "line", lineNo, "error", err)
			continue
		}
		entries = append(entries, &e)
	}
	return entries, sc.Err()
}

func (s *FileStore) write(entries []*Entry) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, e := range entries {
		if err := enc.Encode(e); err != nil {
			return err
		}
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".history-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpPath, s.path)
}

// Get retrieves an entry by ID.
func (s *FileStore) Get(id string) *Entry {
	for _, e := range s.all() {
		if e.ID == id {
			return e
		}
	}
	return nil
}

// List returns entries newest first.
func (s *FileStore) List(filter *Filter) []*Entry {
	return selectNewestFirst(s.all(), filter)
}

func (s *FileStore) all() []*Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries, err := s.read()
	if err != nil {
		s.log.Warn("failed to read history", "path", s.path, "error", err)
		return nil
	}
	s.count = len(entries)
	return entries
}

// Clear removes the history file.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	s.count = 0
	return nil
}

// Count returns the number of entries.
func (s *FileStore) Count() int {
	return len(s.all())
}

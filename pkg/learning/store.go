package learning

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// PersistenceError wraps a failure to read or write learning state. The
// controller blocks the adjustment rather than guessing.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("learning state %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Store is the persistence port for learning state. Save receives the
// full state plus the events appended since the last save, so append-only
// backends do not have to diff the history.
type Store interface {
	Load() (state State, found bool, err error)
	Save(state State, appended []AdjustmentEvent) error
}

// FileStore persists the state as one versioned JSON document, rewritten
// atomically via a temp file and rename.
type FileStore struct {
	path string
}

// NewFileStore creates a file store, creating parent directories.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("learning state path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, &PersistenceError{Op: "init", Err: err}
	}
	return &FileStore{path: path}, nil
}

// Load reads the state document. A missing file is not an error.
func (s *FileStore) Load() (State, bool, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return State{}, false, nil
		}
		return State{}, false, &PersistenceError{Op: "load", Err: err}
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, false, &PersistenceError{Op: "load", Err: err}
	}
	st.normalize()
	return st, true, nil
}

// Save rewrites the whole document.
func (s *FileStore) Save(state State, _ []AdjustmentEvent) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return &PersistenceError{Op: "save", Err: err}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return &PersistenceError{Op: "save", Err: err}
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return &PersistenceError{Op: "save", Err: err}
	}
	return nil
}

// Package routingstate is the durable mapping from session scope to
// container name: a versioned JSON file on disk, protected by an
// in-process mutex and written via atomic rename.
package routingstate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/portmantle/shipyard/internal/log"
)

// schemaVersion is the on-disk format version this build writes and
// expects to read back.
const schemaVersion = 1

// ErrCorrupt is an internal marker used only for logging. It is never
// returned to callers: a corrupt or missing state file reads as an empty
// state, per this package's fail-open contract.
var ErrCorrupt = errors.New("routing state file is corrupt or has an unrecognised version")

// Entry is a durable binding of a session scope to a container name.
type Entry struct {
	ContainerName string `json:"container"`
	UpdatedAt     int64  `json:"updatedAt"`
}

// onDiskState is the JSON shape written to and read from state.json.
type onDiskState struct {
	Version  int              `json:"version"`
	Sessions map[string]Entry `json:"sessions"`
}

// Store is a single-instance-per-process routing state store. All
// mutations serialise through mu.
type Store struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// New returns a Store persisting to path. The parent directory is created
// lazily on the first write.
func New(path string) *Store {
	return &Store{path: path, now: time.Now}
}

// Get returns the container bound to scopeId, or "" if none is bound.
func (s *Store) Get(scopeID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.readLocked()
	if err != nil {
		return "", err
	}
	entry, ok := state.Sessions[scopeID]
	if !ok {
		return "", nil
	}
	return entry.ContainerName, nil
}

// Set binds scopeId to containerName, updating updatedAt to now.
func (s *Store) Set(scopeID, containerName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.readLocked()
	if err != nil {
		return err
	}
	if state.Sessions == nil {
		state.Sessions = make(map[string]Entry)
	}
	state.Sessions[scopeID] = Entry{
		ContainerName: containerName,
		UpdatedAt:     s.now().UnixMilli(),
	}
	return s.writeLocked(state)
}

// Clear removes the binding for scopeId and returns the container it was
// bound to, or "" if it had none.
func (s *Store) Clear(scopeID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.readLocked()
	if err != nil {
		return "", err
	}
	entry, ok := state.Sessions[scopeID]
	if !ok {
		return "", nil
	}
	delete(state.Sessions, scopeID)
	if err := s.writeLocked(state); err != nil {
		return "", err
	}
	return entry.ContainerName, nil
}

// readLocked returns an empty state, never an error, when the file is
// missing, unreadable, corrupt, or at an unrecognised version — the
// caller must hold mu.
func (s *Store) readLocked() (onDiskState, error) {
	empty := onDiskState{Version: schemaVersion, Sessions: map[string]Entry{}}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return empty, nil
		}
		log.Warn("reading routing state, treating as empty", "path", s.path, "error", err)
		return empty, nil
	}

	var state onDiskState
	if err := json.Unmarshal(data, &state); err != nil {
		log.Warn("routing state file is corrupt, treating as empty", "path", s.path, "error", ErrCorrupt)
		return empty, nil
	}
	if state.Version != schemaVersion {
		log.Warn("routing state file has unrecognised version, treating as empty", "path", s.path, "version", state.Version)
		return empty, nil
	}
	if state.Sessions == nil {
		state.Sessions = make(map[string]Entry)
	}
	return state, nil
}

// writeLocked serialises state to a temp file and atomically renames it
// into place — the caller must hold mu.
func (s *Store) writeLocked(state onDiskState) error {
	state.Version = schemaVersion

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("creating routing state directory: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling routing state: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("writing routing state: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming routing state: %w", err)
	}
	return nil
}

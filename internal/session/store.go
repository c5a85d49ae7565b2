package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Snapshot is the persisted shape: every session plus the active pointer.
type Snapshot struct {
	Sessions        []*Session `json:"sessions"`
	ActiveSessionID string     `json:"activeSessionId"`
}

// Store persists the session snapshot.
type Store interface {
	Save(snap *Snapshot) error
	Load() (*Snapshot, error) // empty snapshot if nothing persisted yet
}

// diskStore writes sessions.json under the given directory.
type diskStore struct {
	path string
}

// NewDiskStore returns a Store rooted at dir, creating it if needed.
func NewDiskStore(dir string) (Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating session directory: %w", err)
	}
	return &diskStore{path: filepath.Join(dir, "sessions.json")}, nil
}

// Save marshals the snapshot and writes it atomically via temp file + rename.
func (d *diskStore) Save(snap *Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to persist sessions: %w", err)
	}

	// Temp file in the same directory so os.Rename is atomic.
	tmp, err := os.CreateTemp(filepath.Dir(d.path), "sessions-*.json.tmp")
	if err != nil {
		return fmt.Errorf("failed to persist sessions: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to persist sessions: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to persist sessions: %w", err)
	}
	if err = os.Rename(tmpName, d.path); err != nil {
		return fmt.Errorf("failed to persist sessions: %w", err)
	}
	return nil
}

// Load reads the snapshot; a missing file is an empty snapshot.
func (d *diskStore) Load() (*Snapshot, error) {
	data, err := os.ReadFile(d.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Snapshot{}, nil
		}
		return nil, fmt.Errorf("failed to read sessions: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse sessions: %w", err)
	}
	return &snap, nil
}

// MemStore is an in-memory Store for tests.
type MemStore struct {
	snap *Snapshot
}

func (m *MemStore) Save(snap *Snapshot) error {
	m.snap = snap
	return nil
}

func (m *MemStore) Load() (*Snapshot, error) {
	if m.snap == nil {
		return &Snapshot{}, nil
	}
	return m.snap, nil
}

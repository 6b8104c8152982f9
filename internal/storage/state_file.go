package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

type stateEntry struct {
	Value     string `json:"value"`
	UpdatedAt string `json:"updated_at"`
}

// StateFile persists named values in a JSON file, replaced atomically on each save.
type StateFile struct {
	path string
	mu   sync.Mutex
}

func NewStateFile(path string) *StateFile {
	return &StateFile{path: path}
}

// LoadState returns the value stored under name.
func (s *StateFile) LoadState(_ context.Context, name string) (string, bool, error) {
	if name == "" {
		return "", false, fmt.Errorf("state name required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	states, err := s.read()
	if err != nil {
		return "", false, err
	}
	entry, ok := states[name]
	return entry.Value, ok, nil
}

// SaveState stores value under name.
func (s *StateFile) SaveState(_ context.Context, name, value string) error {
	if name == "" {
		return fmt.Errorf("state name required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	states, err := s.read()
	if err != nil {
		return err
	}
	states[name] = stateEntry{Value: value, UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano)}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create state dir: %w", err)
		}
	}
	data, err := json.MarshalIndent(states, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write state tmp: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename state: %w", err)
	}
	return nil
}

func (s *StateFile) read() (map[string]stateEntry, error) {
	states := make(map[string]stateEntry)
	stat, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return states, nil
		}
		return nil, fmt.Errorf("stat state: %w", err)
	}
	if stat.IsDir() {
		return nil, fmt.Errorf("state path is a directory")
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}
	if len(data) == 0 {
		return states, nil
	}
	if err := json.Unmarshal(data, &states); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	return states, nil
}

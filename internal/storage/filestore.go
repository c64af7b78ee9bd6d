package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/GenAmed/pointage/internal/model"
)

// queueFile is the on-disk shape: one serialized list under one path.
type queueFile struct {
	Entries []model.TimeEntry `json:"entries"`
}

// FileStore is a Queue backed by a single JSON file. Every Upsert rewrites
// the whole file atomically (temp file + rename), so a write that returned
// has survived a process restart.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// DefaultPath returns the default queue location (~/.pointage/queue.json).
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".pointage", "queue.json"), nil
}

// NewFileStore creates a FileStore writing to path. The file is created on
// first Upsert.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) List() ([]model.TimeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	qf, err := s.load()
	if err != nil {
		return nil, err
	}
	return qf.Entries, nil
}

func (s *FileStore) Upsert(entry model.TimeEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("rejecting invalid entry: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	qf, err := s.load()
	if err != nil {
		return err
	}
	replaced := false
	for i := range qf.Entries {
		if qf.Entries[i].ID == entry.ID {
			qf.Entries[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		qf.Entries = append(qf.Entries, entry)
	}
	return s.save(qf)
}

// load reads the queue file, returning an empty queue if it does not exist.
// A corrupt file is backed up and reported rather than silently discarded.
func (s *FileStore) load() (queueFile, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return queueFile{Entries: []model.TimeEntry{}}, nil
	}
	if err != nil {
		return queueFile{}, fmt.Errorf("storage error reading %s: %w", s.path, err)
	}
	var qf queueFile
	if err := json.Unmarshal(data, &qf); err != nil {
		backupPath := s.path + ".corrupt"
		_ = os.Rename(s.path, backupPath)
		return queueFile{}, fmt.Errorf("corrupt JSON in %s (backed up to %s): %w", s.path, backupPath, err)
	}
	return qf, nil
}

// save atomically writes the queue file.
func (s *FileStore) save(qf queueFile) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("storage error creating directories: %w", err)
	}
	data, err := json.MarshalIndent(qf, "", "  ")
	if err != nil {
		return fmt.Errorf("storage error marshalling JSON: %w", err)
	}
	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o600); err != nil {
		return fmt.Errorf("storage error writing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("storage error renaming temp file: %w", err)
	}
	return nil
}

package storage

import (
	"fmt"
	"sync"

	"github.com/GenAmed/pointage/internal/model"
)

// MemStore is an in-memory Queue for tests. It deliberately mimics
// FileStore's replace-or-append semantics.
type MemStore struct {
	mu      sync.Mutex
	entries []model.TimeEntry
	// FailUpserts makes every Upsert return an error, for exercising
	// storage-failure paths in tests.
	FailUpserts bool
}

// NewMemStore returns an empty in-memory queue.
func NewMemStore() *MemStore {
	return &MemStore{}
}

func (s *MemStore) List() ([]model.TimeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.TimeEntry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

func (s *MemStore) Upsert(entry model.TimeEntry) error {
	if err := entry.Validate(); err != nil {
		return fmt.Errorf("rejecting invalid entry: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailUpserts {
		return fmt.Errorf("storage error: upserts disabled")
	}
	for i := range s.entries {
		if s.entries[i].ID == entry.ID {
			s.entries[i] = entry
			return nil
		}
	}
	s.entries = append(s.entries, entry)
	return nil
}

// Package storage holds the local durable queue of time entries: the single
// source of truth while the device is offline. The queue exposes only
// List and Upsert; records are never deleted, closed days stay around as
// local history.
package storage

import (
	"github.com/GenAmed/pointage/internal/model"
)

// Queue is the durable entry store shared by the tracker and the syncer.
// Upsert inserts when the entry ID is unseen and fully replaces otherwise,
// so both writers always read-modify-write whole records. Implementations
// must validate entries at the boundary and be safe for concurrent use.
type Queue interface {
	// List returns every stored entry, oldest first.
	List() ([]model.TimeEntry, error)
	// Upsert durably writes the entry before returning.
	Upsert(entry model.TimeEntry) error
}

// FindOpenEntry scans the queue for the open entry (start set, no end)
// belonging to userID on the given day key. Used for crash recovery and for
// the one-open-entry-per-day guard. Returns nil if none.
func FindOpenEntry(q Queue, userID, day string) (*model.TimeEntry, error) {
	entries, err := q.List()
	if err != nil {
		return nil, err
	}
	for i := len(entries) - 1; i >= 0; i-- {
		e := entries[i]
		if e.UserID == userID && e.Date == day && e.Open() {
			return &e, nil
		}
	}
	return nil, nil
}

// Pending returns the queue's entries still awaiting a remote write.
func Pending(q Queue) ([]model.TimeEntry, error) {
	entries, err := q.List()
	if err != nil {
		return nil, err
	}
	var pending []model.TimeEntry
	for _, e := range entries {
		if e.SyncStatus == model.SyncPending {
			pending = append(pending, e)
		}
	}
	return pending, nil
}

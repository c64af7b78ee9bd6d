package model

import "fmt"

// SyncStatus tracks whether a TimeEntry has been confirmed written to the
// remote store. Only the syncer sets synced; any tracker mutation of the
// record re-marks it pending so the change reaches the remote again.
type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSynced  SyncStatus = "synced"
)

// Coordinates is a best-effort position snapshot taken at a punch.
// A zero-valued Coordinates is the degraded fix substituted when geolocation
// is unavailable offline. Address is filled in asynchronously after the entry
// is persisted and may stay nil forever.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
	Address   *string `json:"address,omitempty"`
}

// Degraded reports whether c is the zero substitute fix.
func (c Coordinates) Degraded() bool {
	return c.Latitude == 0 && c.Longitude == 0 && c.Accuracy == 0
}

// Break is one pause inside a TimeEntry. Times are wall-clock "HH:MM"
// strings in the capture time zone. At most one break per entry may be open
// (EndTime nil) at a time.
type Break struct {
	StartTime       string  `json:"start_time"`
	EndTime         *string `json:"end_time,omitempty"`
	DurationMinutes *int    `json:"duration_minutes,omitempty"`
}

// Open reports whether the break has not been ended yet.
func (b Break) Open() bool {
	return b.EndTime == nil
}

// TimeEntry is one worker's record for one worksite-day. It is created on
// clock-in, mutated in place while open, and retained locally forever; the
// ID is assigned once and never reused.
type TimeEntry struct {
	ID               string       `json:"id"`
	UserID           string       `json:"user_id"`
	WorksiteID       string       `json:"worksite_id"`
	Date             string       `json:"date"` // "2006-01-02", local day of capture
	StartTime        string       `json:"start_time"`
	EndTime          *string      `json:"end_time,omitempty"`
	StartCoordinates Coordinates  `json:"start_coordinates"`
	EndCoordinates   *Coordinates `json:"end_coordinates,omitempty"`
	Breaks           []Break      `json:"breaks"`
	Comment          *string      `json:"comment,omitempty"`
	SyncStatus       SyncStatus   `json:"sync_status"`
}

// Open reports whether the entry has a start but no end.
func (e *TimeEntry) Open() bool {
	return e.StartTime != "" && e.EndTime == nil
}

// OpenBreak returns the entry's open break, or nil if none.
func (e *TimeEntry) OpenBreak() *Break {
	for i := range e.Breaks {
		if e.Breaks[i].Open() {
			return &e.Breaks[i]
		}
	}
	return nil
}

// Validate checks the structural invariants enforced at the storage
// boundary. A record that fails validation is never persisted.
func (e *TimeEntry) Validate() error {
	if e.ID == "" {
		return fmt.Errorf("entry has no id")
	}
	if e.UserID == "" {
		return fmt.Errorf("entry %s has no user id", e.ID)
	}
	if e.WorksiteID == "" {
		return fmt.Errorf("entry %s has no worksite id", e.ID)
	}
	if e.Date == "" {
		return fmt.Errorf("entry %s has no date", e.ID)
	}
	if e.StartTime == "" {
		return fmt.Errorf("entry %s has no start time", e.ID)
	}
	switch e.SyncStatus {
	case SyncPending, SyncSynced:
	default:
		return fmt.Errorf("entry %s has invalid sync status %q", e.ID, e.SyncStatus)
	}
	open := 0
	for _, b := range e.Breaks {
		if b.StartTime == "" {
			return fmt.Errorf("entry %s has a break without start time", e.ID)
		}
		if b.Open() {
			open++
		}
	}
	if open > 1 {
		return fmt.Errorf("entry %s has %d open breaks, at most one allowed", e.ID, open)
	}
	if !e.Open() && open > 0 {
		return fmt.Errorf("entry %s is closed but still has an open break", e.ID)
	}
	return nil
}

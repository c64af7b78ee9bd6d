package tracker

import "go.uber.org/zap"

// EventType names a tracker transition surfaced to the feedback sink.
type EventType string

const (
	EventClockIn    EventType = "clock_in"
	EventBreakStart EventType = "break_start"
	EventBreakEnd   EventType = "break_end"
	EventClockOut   EventType = "clock_out"
)

// Event is one state transition, as shown to the user.
type Event struct {
	Type       EventType `json:"type"`
	EntryID    string    `json:"entry_id"`
	WorksiteID string    `json:"worksite_id"`
	State      State     `json:"state"`
	At         string    `json:"at"` // wall-clock "HH:MM"
	Degraded   bool      `json:"degraded,omitempty"`
}

// Notifier receives tracker events. Implementations present them to the
// user; the tracker never blocks on them.
type Notifier interface {
	Notify(event Event)
}

// NopNotifier discards events.
type NopNotifier struct{}

func (NopNotifier) Notify(Event) {}

// LogNotifier writes events to the log.
type LogNotifier struct {
	Log *zap.Logger
}

func (n LogNotifier) Notify(e Event) {
	n.Log.Info("tracker event",
		zap.String("type", string(e.Type)),
		zap.String("entry", e.EntryID),
		zap.String("state", string(e.State)),
		zap.String("at", e.At),
	)
}

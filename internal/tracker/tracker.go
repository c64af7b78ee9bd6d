// Package tracker sequences a worker's day: clock-in, breaks, clock-out.
// It is the only writer of new entries; every transition is validated,
// durably persisted before it becomes visible, and recoverable after a
// crash from the queue alone.
package tracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GenAmed/pointage/internal/connectivity"
	"github.com/GenAmed/pointage/internal/location"
	"github.com/GenAmed/pointage/internal/model"
	"github.com/GenAmed/pointage/internal/storage"
	"github.com/GenAmed/pointage/internal/syncer"
	"github.com/GenAmed/pointage/internal/timecalc"
)

// State is the tracker's per-day position in the punch cycle.
type State string

const (
	Idle     State = "idle"
	Tracking State = "tracking"
	OnBreak  State = "on_break"
)

// Config wires a Tracker's collaborators. Queue, Location, Monitor and
// UserID are required; the rest default to inert implementations.
type Config struct {
	UserID   string
	Queue    storage.Queue
	Location location.Provider
	Monitor  connectivity.Monitor
	Clock    timecalc.Clock
	Geocoder location.Geocoder // optional, best-effort address fill
	Syncer   *syncer.Syncer    // optional, opportunistic sync kicks
	Notifier Notifier
	Logger   *zap.Logger
}

// Tracker is the per-user time-tracking state machine.
type Tracker struct {
	mu sync.Mutex

	userID   string
	queue    storage.Queue
	loc      location.Provider
	monitor  connectivity.Monitor
	clock    timecalc.Clock
	geocoder location.Geocoder
	syncer   *syncer.Syncer
	notifier Notifier
	log      *zap.Logger

	state   State
	current *model.TimeEntry
	day     string
}

// New builds a Tracker and recovers its state from the queue: an open entry
// for the user and current day restores Tracking (or OnBreak if its last
// break is open), so a restart never loses an in-progress day.
func New(cfg Config) (*Tracker, error) {
	if cfg.UserID == "" {
		return nil, fmt.Errorf("tracker requires a user id")
	}
	if cfg.Queue == nil || cfg.Location == nil || cfg.Monitor == nil {
		return nil, fmt.Errorf("tracker requires queue, location provider and connectivity monitor")
	}
	if cfg.Clock == nil {
		cfg.Clock = timecalc.System()
	}
	if cfg.Notifier == nil {
		cfg.Notifier = NopNotifier{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	t := &Tracker{
		userID:   cfg.UserID,
		queue:    cfg.Queue,
		loc:      cfg.Location,
		monitor:  cfg.Monitor,
		clock:    cfg.Clock,
		geocoder: cfg.Geocoder,
		syncer:   cfg.Syncer,
		notifier: cfg.Notifier,
		log:      cfg.Logger,
		state:    Idle,
		day:      timecalc.DayKey(cfg.Clock.Now()),
	}

	open, err := storage.FindOpenEntry(t.queue, t.userID, t.day)
	if err != nil {
		return nil, err
	}
	if open != nil {
		t.current = open
		if open.OpenBreak() != nil {
			t.state = OnBreak
		} else {
			t.state = Tracking
		}
		t.log.Info("recovered in-progress day",
			zap.String("entry", open.ID),
			zap.String("state", string(t.state)),
			zap.String("since", open.StartTime))
	}
	return t, nil
}

// State returns the current state and a copy of the open entry, if any.
func (t *Tracker) State() (State, *model.TimeEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == nil {
		return t.state, nil
	}
	e := *t.current
	return t.state, &e
}

// StartTracking clocks the worker in against a worksite. Valid only from
// Idle; the queue is consulted so an open entry created by a previous
// process instance also blocks a second clock-in.
func (t *Tracker) StartTracking(ctx context.Context, worksiteID, comment string) (*model.TimeEntry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	t.rollover(now)

	if worksiteID == "" {
		return nil, validationf("no worksite selected")
	}
	if t.state != Idle {
		return nil, validationf("already clocked in")
	}
	open, err := storage.FindOpenEntry(t.queue, t.userID, t.day)
	if err != nil {
		return nil, err
	}
	if open != nil {
		return nil, validationf("an open entry for today already exists")
	}

	coords, err := t.takeFix(ctx)
	if err != nil {
		return nil, err
	}

	entry := model.TimeEntry{
		ID:               timecalc.GenerateID(now),
		UserID:           t.userID,
		WorksiteID:       worksiteID,
		Date:             t.day,
		StartTime:        timecalc.ClockTime(now),
		StartCoordinates: coords,
		Breaks:           []model.Break{},
		SyncStatus:       model.SyncPending,
	}
	if comment != "" {
		entry.Comment = &comment
	}

	if err := t.queue.Upsert(entry); err != nil {
		return nil, err
	}
	t.current = &entry
	t.state = Tracking

	t.notifier.Notify(Event{
		Type: EventClockIn, EntryID: entry.ID, WorksiteID: worksiteID,
		State: t.state, At: entry.StartTime, Degraded: coords.Degraded(),
	})
	t.resolveAddress(entry.ID, coords, false)
	t.kickSync()

	e := entry
	return &e, nil
}

// StartBreak opens a break on the current entry. Valid only from Tracking.
func (t *Tracker) StartBreak() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	t.rollover(now)

	switch t.state {
	case OnBreak:
		return validationf("already on break")
	case Tracking:
	default:
		return validationf("not clocked in")
	}

	updated := t.snapshot()
	updated.Breaks = append(updated.Breaks, model.Break{StartTime: timecalc.ClockTime(now)})
	if err := t.queue.Upsert(updated); err != nil {
		return err
	}
	t.current = &updated
	t.state = OnBreak

	t.notifier.Notify(Event{
		Type: EventBreakStart, EntryID: updated.ID, WorksiteID: updated.WorksiteID,
		State: t.state, At: timecalc.ClockTime(now),
	})
	return nil
}

// EndBreak closes the open break, computing its duration from the
// wall-clock difference. Valid only from OnBreak.
func (t *Tracker) EndBreak() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	t.rollover(now)

	if t.state != OnBreak {
		return validationf("no break in progress")
	}

	updated := t.snapshot()
	if err := closeOpenBreak(&updated, now); err != nil {
		return err
	}
	if err := t.queue.Upsert(updated); err != nil {
		return err
	}
	t.current = &updated
	t.state = Tracking

	t.notifier.Notify(Event{
		Type: EventBreakEnd, EntryID: updated.ID, WorksiteID: updated.WorksiteID,
		State: t.state, At: timecalc.ClockTime(now),
	})
	return nil
}

// EndTracking clocks the worker out, implicitly closing any open break
// first. A clock-out comment is appended to the clock-in one, not replacing
// it. On success the day is terminal and the syncer is kicked.
func (t *Tracker) EndTracking(ctx context.Context, comment string) (*model.TimeEntry, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	t.rollover(now)

	if t.state != Tracking && t.state != OnBreak {
		return nil, validationf("not clocked in")
	}

	updated := t.snapshot()
	if updated.OpenBreak() != nil {
		if err := closeOpenBreak(&updated, now); err != nil {
			return nil, err
		}
	}

	coords, err := t.takeFix(ctx)
	if err != nil {
		return nil, err
	}

	end := timecalc.ClockTime(now)
	updated.EndTime = &end
	updated.EndCoordinates = &coords
	if comment != "" {
		if updated.Comment != nil {
			merged := *updated.Comment + "\n" + comment
			updated.Comment = &merged
		} else {
			updated.Comment = &comment
		}
	}

	if err := t.queue.Upsert(updated); err != nil {
		return nil, err
	}
	t.current = nil
	t.state = Idle

	t.notifier.Notify(Event{
		Type: EventClockOut, EntryID: updated.ID, WorksiteID: updated.WorksiteID,
		State: t.state, At: end, Degraded: coords.Degraded(),
	})
	t.resolveAddress(updated.ID, coords, true)
	t.kickSync()

	e := updated
	return &e, nil
}

// snapshot returns a copy of the current entry with its breaks unshared.
// The copy is re-marked pending: a mutation invalidates any previous remote
// write, and only the syncer may declare an entry synced. Without this, an
// entry synced while still open would keep its synced status through
// clock-out and the end time would never be pushed.
func (t *Tracker) snapshot() model.TimeEntry {
	e := *t.current
	e.Breaks = append([]model.Break(nil), t.current.Breaks...)
	e.SyncStatus = model.SyncPending
	return e
}

// closeOpenBreak ends the entry's open break at now.
func closeOpenBreak(e *model.TimeEntry, now time.Time) error {
	b := e.OpenBreak()
	if b == nil {
		return validationf("no break in progress")
	}
	end := timecalc.ClockTime(now)
	minutes, err := timecalc.MinutesBetween(b.StartTime, end)
	if err != nil {
		return validationf(err.Error())
	}
	b.EndTime = &end
	b.DurationMinutes = &minutes
	return nil
}

// rollover resets the machine when the calendar day has changed since the
// last operation. An entry left open across midnight stays open in the
// queue; it is reported, not repaired.
func (t *Tracker) rollover(now time.Time) {
	day := timecalc.DayKey(now)
	if day == t.day {
		return
	}
	if t.current != nil {
		t.log.Warn("day changed with an entry still open; entry left open in queue",
			zap.String("entry", t.current.ID), zap.String("day", t.day))
	}
	t.day = day
	t.current = nil
	t.state = Idle
}

// takeFix asks the location provider for a fix. Offline, any provider
// failure degrades to the zero fix so the punch still lands; online, the
// failure aborts the operation rather than recording bad data silently.
func (t *Tracker) takeFix(ctx context.Context) (model.Coordinates, error) {
	coords, err := t.loc.Fix(ctx)
	if err == nil {
		return coords, nil
	}
	if !t.monitor.IsOnline() {
		t.log.Info("offline without a fix, recording degraded coordinates",
			zap.String("reason", string(location.ReasonOf(err))))
		return location.Degraded(), nil
	}
	return model.Coordinates{}, fmt.Errorf("cannot record punch: %w", err)
}

// resolveAddress fills in the coordinates' address asynchronously.
// Strictly best-effort: failures are logged and never undo the entry.
func (t *Tracker) resolveAddress(entryID string, coords model.Coordinates, end bool) {
	if t.geocoder == nil || coords.Degraded() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		addr, err := t.geocoder.Reverse(ctx, coords)
		if err != nil {
			t.log.Debug("reverse geocode failed", zap.String("entry", entryID), zap.Error(err))
			return
		}

		t.mu.Lock()
		defer t.mu.Unlock()
		entries, err := t.queue.List()
		if err != nil {
			return
		}
		for _, e := range entries {
			if e.ID != entryID {
				continue
			}
			if end {
				if e.EndCoordinates == nil {
					return
				}
				c := *e.EndCoordinates
				c.Address = &addr
				e.EndCoordinates = &c
			} else {
				e.StartCoordinates.Address = &addr
			}
			e.SyncStatus = model.SyncPending
			if err := t.queue.Upsert(e); err != nil {
				t.log.Debug("could not persist address", zap.String("entry", entryID), zap.Error(err))
				return
			}
			if t.current != nil && t.current.ID == entryID {
				cur := e
				t.current = &cur
			}
			return
		}
	}()
}

// kickSync opportunistically starts a sync run when online.
func (t *Tracker) kickSync() {
	if t.syncer == nil || !t.monitor.IsOnline() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		res, err := t.syncer.SyncPending(ctx)
		if err != nil {
			t.log.Warn("opportunistic sync failed", zap.Error(err))
			return
		}
		if res.Failed > 0 {
			t.log.Warn("opportunistic sync incomplete",
				zap.Int("synced", res.Synced), zap.Int("failed", res.Failed))
		}
	}()
}

package timecalc

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// Clock provides the current time. Injecting it lets tests drive day
// rollover and punch times deterministically.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// System returns the wall clock.
func System() Clock { return systemClock{} }

// GenerateID creates a unique entry ID from a timestamp prefix and a random
// suffix. IDs are unique within one device's queue and stable across
// restarts; they double as the external reference sent to the remote store.
func GenerateID(t time.Time) string {
	const chars = "abcdefghijklmnopqrstuvwxyz0123456789"
	suffix := make([]byte, 5)
	for i := range suffix {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(chars))))
		suffix[i] = chars[n.Int64()]
	}
	return fmt.Sprintf("%s-%s", t.Format("20060102-150405"), string(suffix))
}

// DayKey returns the calendar-day key for t in its own location.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// ClockTime formats t as a wall-clock "HH:MM" string.
func ClockTime(t time.Time) string {
	return t.Format("15:04")
}

// MinutesBetween computes the difference in minutes between two wall-clock
// "HH:MM" strings on the same day. Durations come from hour:minute values,
// not elapsed monotonic time; spans across midnight are not supported and
// yield an error.
func MinutesBetween(start, end string) (int, error) {
	s, err := parseClock(start)
	if err != nil {
		return 0, err
	}
	e, err := parseClock(end)
	if err != nil {
		return 0, err
	}
	if e < s {
		return 0, fmt.Errorf("end %q is before start %q (midnight span not supported)", end, start)
	}
	return e - s, nil
}

// parseClock parses "HH:MM" into minutes since midnight.
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid wall-clock time %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatMinutes formats a minute count as a human-readable string like
// "8h 15m" or "45m".
func FormatMinutes(minutes int) string {
	h := minutes / 60
	m := minutes % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}

// SameDay reports whether two times fall on the same calendar day.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Package timeutil provides date and time-of-day helpers for classroom
// records. Attendance and engagement rows carry their session date as
// YYYY-MM-DD and their session time as HH:MM:SS wall-clock strings, matching
// what the recognition process sends. No external dependencies - uses only
// standard library.
package timeutil

import (
	"fmt"
	"sync"
	"time"
)

const (
	// DateLayout is the storage layout for session dates.
	DateLayout = "2006-01-02"

	// ClockLayout is the storage layout for session times of day.
	ClockLayout = "15:04:05"
)

var (
	mu  sync.RWMutex
	loc = time.Local
)

// SetLocation sets the timezone used for session dates and times. Called once
// at startup from configuration; defaults to the server's local zone.
func SetLocation(l *time.Location) {
	if l == nil {
		return
	}
	mu.Lock()
	loc = l
	mu.Unlock()
}

// Location returns the configured timezone.
func Location() *time.Location {
	mu.RLock()
	defer mu.RUnlock()
	return loc
}

// Now returns the current time in the configured timezone.
func Now() time.Time {
	return time.Now().In(Location())
}

// DateString renders t's calendar date in the configured timezone.
func DateString(t time.Time) string {
	return t.In(Location()).Format(DateLayout)
}

// ClockString renders t's wall-clock time in the configured timezone.
func ClockString(t time.Time) string {
	return t.In(Location()).Format(ClockLayout)
}

// Today returns the current date as a session date string.
func Today() string {
	return DateString(time.Now())
}

// ParseDate parses a session date string.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("timeutil: invalid date %q: %w", s, err)
	}
	return t, nil
}

// ValidDate reports whether s is a well-formed session date.
func ValidDate(s string) bool {
	_, err := ParseDate(s)
	return err == nil
}

// ValidClock reports whether s is a well-formed session time of day.
func ValidClock(s string) bool {
	_, err := time.Parse(ClockLayout, s)
	return err == nil
}

// StartOfWeek returns the Monday of t's week together with the Sunday that
// closes it, as date strings. Used by the weekly report defaults.
func StartOfWeek(t time.Time) (from, to string) {
	local := t.In(Location())
	weekday := int(local.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday
	}
	monday := local.AddDate(0, 0, -(weekday - 1))
	sunday := monday.AddDate(0, 0, 6)
	return DateString(monday), DateString(sunday)
}

// DaysBetween returns the whole days from one date string to another,
// inclusive of both ends. Returns 0 when either date is malformed or the
// range is inverted.
func DaysBetween(from, to string) int {
	f, err := ParseDate(from)
	if err != nil {
		return 0
	}
	t, err := ParseDate(to)
	if err != nil {
		return 0
	}
	if t.Before(f) {
		return 0
	}
	return int(t.Sub(f).Hours()/24) + 1
}

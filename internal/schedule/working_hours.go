package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrInvalidClock = errors.New("time must be formatted as HH:MM")

// DayHours is the opening window of a single weekday.
type DayHours struct {
	Active bool   `json:"active"`
	Start  string `json:"start"` // HH:MM, UTC wall clock
	End    string `json:"end"`   // HH:MM, UTC wall clock
}

// WorkingHours maps a lower-case weekday name ("monday") to its hours.
// A missing weekday means no availability that day.
type WorkingHours map[string]DayHours

// WeekdayKey returns the key WorkingHours uses for d.
func WeekdayKey(d time.Weekday) string {
	return strings.ToLower(d.String())
}

// Validate checks that every active day parses and opens before it closes.
func (wh WorkingHours) Validate() error {
	for day, h := range wh {
		if !isWeekday(day) {
			return fmt.Errorf("unknown weekday %q", day)
		}
		if !h.Active {
			continue
		}
		open, close, err := h.Window()
		if err != nil {
			return fmt.Errorf("%s: %w", day, err)
		}
		if open >= close {
			return fmt.Errorf("%s: start %s must be before end %s", day, h.Start, h.End)
		}
	}
	return nil
}

// For resolves the hours that apply to date. The weekday is taken in UTC so
// that a local midnight boundary never shifts the lookup by one day.
func (wh WorkingHours) For(date time.Time) (DayHours, bool) {
	h, ok := wh[WeekdayKey(date.UTC().Weekday())]
	if !ok || !h.Active {
		return DayHours{}, false
	}
	return h, true
}

// IsBookable reports whether date falls on an active weekday.
func (wh WorkingHours) IsBookable(date time.Time) bool {
	_, ok := wh.For(date)
	return ok
}

// Window returns the opening and closing times as minutes since midnight.
func (h DayHours) Window() (open, close int, err error) {
	open, err = ParseClock(h.Start)
	if err != nil {
		return 0, 0, err
	}
	close, err = ParseClock(h.End)
	if err != nil {
		return 0, 0, err
	}
	return open, close, nil
}

// ParseClock parses "HH:MM" into minutes since midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock renders minutes since midnight as "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

func isWeekday(key string) bool {
	for d := time.Sunday; d <= time.Saturday; d++ {
		if WeekdayKey(d) == key {
			return true
		}
	}
	return false
}

package schedule

import "time"

// DayBounds returns [start, end) of the UTC calendar day containing t.
func DayBounds(t time.Time) (time.Time, time.Time) {
	u := t.UTC()
	start := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 1)
}

// SameDay reports whether a and b share a UTC calendar date.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// LeadTimeSatisfied reports whether slot falls on a UTC calendar date strictly
// after the date of now. Same-day and past slots never satisfy it.
func LeadTimeSatisfied(slot, now time.Time) bool {
	_, todayEnd := DayBounds(now)
	return !slot.UTC().Before(todayEnd)
}

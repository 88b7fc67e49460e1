package schedule

import "time"

// GenerateSlots enumerates candidate start times, in minutes since midnight,
// between open and close. A trailing window shorter than duration is dropped.
func GenerateSlots(open, close, duration int) []int {
	if duration <= 0 || open >= close {
		return nil
	}

	out := make([]int, 0, (close-open)/duration)
	for start := open; start+duration <= close; start += duration {
		out = append(out, start)
	}
	return out
}

// MinuteOfDay returns the UTC time-of-day of t in minutes.
func MinuteOfDay(t time.Time) int {
	u := t.UTC()
	return u.Hour()*60 + u.Minute()
}

// At returns the instant on date's UTC calendar day at minute-of-day m.
func At(date time.Time, m int) time.Time {
	start, _ := DayBounds(date)
	return start.Add(time.Duration(m) * time.Minute)
}

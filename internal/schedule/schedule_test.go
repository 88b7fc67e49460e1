package schedule

import (
	"errors"
	"reflect"
	"testing"
	"time"
)

func weekdaysOnly() WorkingHours {
	wh := WorkingHours{}
	for _, d := range []string{"monday", "tuesday", "wednesday", "thursday", "friday"} {
		wh[d] = DayHours{Active: true, Start: "08:00", End: "17:00"}
	}
	wh["saturday"] = DayHours{Active: false, Start: "09:00", End: "12:00"}
	return wh
}

func TestWorkingHours_For(t *testing.T) {
	wh := weekdaysOnly()

	tests := []struct {
		name string
		date time.Time
		want bool
	}{
		{"wednesday", time.Date(2026, 10, 21, 0, 0, 0, 0, time.UTC), true},
		{"inactive saturday", time.Date(2026, 10, 24, 0, 0, 0, 0, time.UTC), false},
		{"missing sunday", time.Date(2026, 10, 25, 0, 0, 0, 0, time.UTC), false},
		// 23:30 on Tuesday in UTC-5 is already Wednesday in UTC.
		{"utc weekday wins", time.Date(2026, 10, 20, 23, 30, 0, 0, time.FixedZone("EST", -5*3600)), true},
		// 00:30 Sunday in UTC+2 is still Saturday in UTC.
		{"utc weekday before local midnight", time.Date(2026, 10, 25, 0, 30, 0, 0, time.FixedZone("CEST", 2*3600)), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := wh.IsBookable(tt.date); got != tt.want {
				t.Fatalf("IsBookable(%s) = %v, want %v", tt.date, got, tt.want)
			}
		})
	}
}

func TestWorkingHours_Validate(t *testing.T) {
	if err := weekdaysOnly().Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := WorkingHours{"monday": {Active: true, Start: "17:00", End: "08:00"}}
	if err := bad.Validate(); err == nil {
		t.Fatal("expected error for start after end")
	}

	// Inactive days are not checked.
	inactive := WorkingHours{"monday": {Active: false, Start: "17:00", End: "08:00"}}
	if err := inactive.Validate(); err != nil {
		t.Fatalf("unexpected error for inactive day: %v", err)
	}

	unknown := WorkingHours{"funday": {Active: true, Start: "08:00", End: "09:00"}}
	if err := unknown.Validate(); err == nil {
		t.Fatal("expected error for unknown weekday")
	}

	garbled := WorkingHours{"monday": {Active: true, Start: "8h", End: "09:00"}}
	if err := garbled.Validate(); !errors.Is(err, ErrInvalidClock) {
		t.Fatalf("expected ErrInvalidClock, got %v", err)
	}
}

func TestGenerateSlots(t *testing.T) {
	tests := []struct {
		name              string
		open, close, step int
		want              []int
	}{
		{"hourly 8 to 17", 8 * 60, 17 * 60, 60, []int{480, 540, 600, 660, 720, 780, 840, 900, 960}},
		{"uneven window drops partial slot", 8 * 60, 10*60 + 30, 45, []int{480, 525, 570}},
		{"exact fit", 9 * 60, 10 * 60, 60, []int{540}},
		{"window shorter than duration", 9 * 60, 9*60 + 30, 60, nil},
		{"zero duration", 9 * 60, 10 * 60, 0, nil},
		{"inverted window", 10 * 60, 9 * 60, 30, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GenerateSlots(tt.open, tt.close, tt.step)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("GenerateSlots = %v, want %v", got, tt.want)
			}
			for _, s := range got {
				if s+tt.step > tt.close {
					t.Fatalf("slot %s overruns closing time", FormatClock(s))
				}
			}
		})
	}
}

func TestLeadTimeSatisfied(t *testing.T) {
	now := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		slot time.Time
		want bool
	}{
		{"later today", now.Add(5 * time.Hour), false},
		{"earlier today", now.Add(-time.Hour), false},
		{"yesterday", now.AddDate(0, 0, -1), false},
		{"tomorrow midnight", time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC), true},
		{"tomorrow morning", time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LeadTimeSatisfied(tt.slot, now); got != tt.want {
				t.Fatalf("LeadTimeSatisfied(%s) = %v, want %v", tt.slot, got, tt.want)
			}
		})
	}
}

func TestClockRoundTrip(t *testing.T) {
	m, err := ParseClock("08:45")
	if err != nil {
		t.Fatalf("ParseClock: %v", err)
	}
	if m != 525 {
		t.Fatalf("expected 525, got %d", m)
	}
	if got := FormatClock(m); got != "08:45" {
		t.Fatalf("FormatClock = %q", got)
	}
	if got := At(time.Date(2026, 10, 21, 13, 0, 0, 0, time.UTC), m); !got.Equal(time.Date(2026, 10, 21, 8, 45, 0, 0, time.UTC)) {
		t.Fatalf("At = %s", got)
	}
}

package availability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/equine-appointment-scheduling/internal/appointment"
	"github.com/hackgods/equine-appointment-scheduling/internal/schedule"
)

// Slot is one candidate start time. Booked slots stay in the list so the
// caller can show them disabled.
type Slot struct {
	Time     string    `json:"time"`
	Start    time.Time `json:"start"`
	IsBooked bool      `json:"is_booked"`
}

// Store is what the engine reads from the appointment store.
type Store interface {
	AppointmentReader
	GetProfessionalByID(ctx context.Context, id uuid.UUID) (*appointment.Professional, error)
}

type Engine struct {
	store           Store
	index           *BookedSlotIndex
	defaultDuration int
	log             zerolog.Logger
	now             func() time.Time
}

func NewEngine(store Store, defaultDuration int, log zerolog.Logger) *Engine {
	return &Engine{
		store:           store,
		index:           NewBookedSlotIndex(store),
		defaultDuration: defaultDuration,
		log:             log.With().Str("module", "availability").Logger(),
		now:             time.Now,
	}
}

// GetAvailableSlots lists the candidate start times of proID on date with
// their booked flag, along with the slot length in minutes actually used.
// durationMinutes <= 0 uses the professional's default.
//
// Days on or before today (UTC) yield no slots, as do inactive weekdays.
func (e *Engine) GetAvailableSlots(ctx context.Context, proID uuid.UUID, date time.Time, durationMinutes int) ([]Slot, int, error) {
	pro, err := e.store.GetProfessionalByID(ctx, proID)
	if err != nil {
		if errors.Is(err, appointment.ErrProfessionalNotFound) {
			return nil, 0, err
		}
		return nil, 0, fmt.Errorf("load professional: %w", err)
	}

	duration := e.effectiveDuration(pro, durationMinutes)

	day, _ := schedule.DayBounds(date)
	if !schedule.LeadTimeSatisfied(day, e.now()) {
		return []Slot{}, duration, nil
	}

	hours, ok := pro.WorkingHours.For(day)
	if !ok {
		return []Slot{}, duration, nil
	}
	open, close, err := hours.Window()
	if err != nil {
		return nil, 0, fmt.Errorf("working hours for %s: %w", schedule.WeekdayKey(day.Weekday()), err)
	}

	candidates := schedule.GenerateSlots(open, close, duration)
	if len(candidates) == 0 {
		return []Slot{}, duration, nil
	}

	occupied, err := e.index.Occupied(ctx, proID, day)
	if err != nil {
		return nil, 0, fmt.Errorf("load booked slots: %w", err)
	}

	slots := make([]Slot, 0, len(candidates))
	for _, m := range candidates {
		_, booked := occupied[m]
		slots = append(slots, Slot{
			Time:     schedule.FormatClock(m),
			Start:    schedule.At(day, m),
			IsBooked: booked,
		})
	}

	e.log.Debug().
		Str("pro_id", proID.String()).
		Str("date", day.Format(time.DateOnly)).
		Int("duration", duration).
		Int("slots", len(slots)).
		Int("booked", len(occupied)).
		Msg("availability computed")

	return slots, duration, nil
}

func (e *Engine) effectiveDuration(pro *appointment.Professional, requested int) int {
	if requested > 0 {
		return requested
	}
	if pro.ConsultationMinutes > 0 {
		return pro.ConsultationMinutes
	}
	return e.defaultDuration
}

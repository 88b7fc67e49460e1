package availability

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/equine-appointment-scheduling/internal/appointment"
	"github.com/hackgods/equine-appointment-scheduling/internal/schedule"
)

// AppointmentReader is the slice of the appointment store the index needs.
type AppointmentReader interface {
	ListBlockingBetween(ctx context.Context, proID uuid.UUID, from, to time.Time) ([]appointment.Appointment, error)
}

// BookedSlotIndex resolves which start times of a day are already claimed.
type BookedSlotIndex struct {
	repo AppointmentReader
}

func NewBookedSlotIndex(repo AppointmentReader) *BookedSlotIndex {
	return &BookedSlotIndex{repo: repo}
}

// Occupied returns the set of minute-of-day start times held on date by
// appointments in a blocking status, counting main and alternative slots.
func (ix *BookedSlotIndex) Occupied(ctx context.Context, proID uuid.UUID, date time.Time) (map[int]struct{}, error) {
	from, to := schedule.DayBounds(date)

	appts, err := ix.repo.ListBlockingBetween(ctx, proID, from, to)
	if err != nil {
		return nil, err
	}

	occupied := make(map[int]struct{})
	for _, a := range appts {
		if !a.Status.Blocking() {
			continue
		}
		for _, s := range a.Slots() {
			if schedule.SameDay(s, from) {
				occupied[schedule.MinuteOfDay(s)] = struct{}{}
			}
		}
	}
	return occupied, nil
}

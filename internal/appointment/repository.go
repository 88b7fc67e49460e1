package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetProfessionalByID(ctx context.Context, id uuid.UUID) (*Professional, error)
	GetOwnerByID(ctx context.Context, id uuid.UUID) (*Owner, error)
	// CountAnimalsOwnedBy counts how many of ids belong to ownerID.
	CountAnimalsOwnedBy(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) (int, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	ListAppointmentsForParty(ctx context.Context, role Role, userID uuid.UUID, limit, offset int) ([]Appointment, error)

	// ListBlockingBetween returns appointments of proID in a blocking status
	// whose main slot or any alternative falls in [from, to).
	ListBlockingBetween(ctx context.Context, proID uuid.UUID, from, to time.Time) ([]Appointment, error)

	// CreateAppointment inserts a new appointment. It returns ErrSlotTaken when
	// another blocking appointment already holds (ProID, MainSlot).
	CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error)
	// UpdateAppointment writes a only if the stored row still has
	// expectedStatus and expectedUpdatedAt, otherwise ErrStaleWrite.
	UpdateAppointment(ctx context.Context, a Appointment, expectedStatus AppointmentStatus, expectedUpdatedAt time.Time) (*Appointment, error)

	// Reconciler
	FindElapsedConfirmed(ctx context.Context, now time.Time, proID *uuid.UUID) ([]Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}

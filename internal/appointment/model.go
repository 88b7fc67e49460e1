package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/equine-appointment-scheduling/internal/schedule"
)

type AppointmentStatus string

const (
	StatusPending     AppointmentStatus = "pending"
	StatusConfirmed   AppointmentStatus = "confirmed"
	StatusRescheduled AppointmentStatus = "rescheduled"
	StatusRejected    AppointmentStatus = "rejected"
	StatusCompleted   AppointmentStatus = "completed"
	StatusCanceled    AppointmentStatus = "canceled"
)

// BlockingStatuses hold a live claim on the professional's calendar.
var BlockingStatuses = []AppointmentStatus{StatusPending, StatusConfirmed, StatusRescheduled}

func (s AppointmentStatus) Blocking() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusRescheduled:
		return true
	}
	return false
}

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusRescheduled, StatusRejected, StatusCompleted, StatusCanceled:
		return true
	}
	return false
}

type Role string

const (
	RolePro    Role = "PRO"
	RoleOwner  Role = "OWNER"
	RoleSystem Role = "SYSTEM"
)

// Actor is the party performing an action, as supplied by the identity layer.
type Actor struct {
	UserID uuid.UUID
	Role   Role
}

// SystemActor is used by the reconciler.
var SystemActor = Actor{Role: RoleSystem}

type Action string

const (
	ActionAccept             Action = "accept"
	ActionReject             Action = "reject"
	ActionProposeReschedule  Action = "propose_reschedule"
	ActionWithdraw           Action = "withdraw"
	ActionAcceptReschedule   Action = "accept_reschedule"
	ActionRejectReschedule   Action = "reject_reschedule"
	ActionWithdrawReschedule Action = "withdraw_reschedule"
	ActionRequestReschedule  Action = "request_reschedule"
	ActionCancel             Action = "cancel"
	ActionElapse             Action = "elapse"
	ActionAttachReport       Action = "attach_report"
)

type Professional struct {
	ID                  uuid.UUID
	Name                string
	WorkingHours        schedule.WorkingHours
	Lat                 *float64
	Lng                 *float64
	RadiusKm            *float64
	ConsultationMinutes int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// HasGeofence reports whether the professional declared a service area.
func (p *Professional) HasGeofence() bool {
	return p.Lat != nil && p.Lng != nil && p.RadiusKm != nil && *p.RadiusKm > 0
}

type Owner struct {
	ID        uuid.UUID
	Name      string
	Address   *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Appointment struct {
	ID               uuid.UUID
	ProID            uuid.UUID
	OwnerID          uuid.UUID
	AnimalIDs        []uuid.UUID
	MainSlot         time.Time
	AlternativeSlots []time.Time
	// ConfirmedSlot is the last slot both parties agreed on. A PRO withdrawing
	// a reschedule proposal falls back to it.
	ConfirmedSlot   *time.Time
	DurationMinutes int
	Status          AppointmentStatus
	Comment         string
	Address         string
	AddressLat      *float64
	AddressLng      *float64
	GeoValidated    bool
	DistanceKm      *float64
	Report          *string
	ReportUpdatedAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// EndsAt is the instant the consultation is over.
func (a *Appointment) EndsAt() time.Time {
	return a.MainSlot.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// IsRescheduleProposal reports whether a pending record carries an owner's
// reschedule request rather than a brand-new booking.
func (a *Appointment) IsRescheduleProposal() bool {
	return a.Status == StatusPending && a.UpdatedAt.After(a.CreatedAt)
}

// DisplayAddress falls back to the owner's profile address. Only for display.
func (a *Appointment) DisplayAddress(owner *Owner) string {
	if a.Address != "" {
		return a.Address
	}
	if owner != nil && owner.Address != nil {
		return *owner.Address
	}
	return ""
}

// Slots returns the main slot followed by the alternatives.
func (a *Appointment) Slots() []time.Time {
	out := make([]time.Time, 0, 1+len(a.AlternativeSlots))
	out = append(out, a.MainSlot)
	return append(out, a.AlternativeSlots...)
}

func (a *Appointment) clone() Appointment {
	c := *a
	c.AnimalIDs = append([]uuid.UUID(nil), a.AnimalIDs...)
	c.AlternativeSlots = append([]time.Time(nil), a.AlternativeSlots...)
	return c
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}

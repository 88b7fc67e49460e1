package appointment

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrProfessionalNotFound = errors.New("professional not found")
	ErrOwnerNotFound        = errors.New("owner not found")
	ErrAppointmentNotFound  = errors.New("appointment not found")
	ErrNotParty             = errors.New("you are not a party to this appointment")

	// Storage-level signals, translated by the service.
	ErrSlotTaken  = errors.New("slot already held by another appointment")
	ErrStaleWrite = errors.New("appointment changed since it was read")
)

// ValidationError is a malformed or incomplete request. It is surfaced
// verbatim and never retried.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, msg string) *ValidationError {
	return &ValidationError{Field: field, Message: msg}
}

// GeofenceError means the visit address lies outside the service radius.
type GeofenceError struct {
	DistanceKm float64
	RadiusKm   float64
}

func (e *GeofenceError) Error() string {
	return fmt.Sprintf("address is %.1f km away but the professional only travels %.1f km; choose a closer address",
		e.DistanceKm, e.RadiusKm)
}

// InvalidTransitionError is an action that the current status does not allow
// for the acting role. Most often the client is looking at stale state.
type InvalidTransitionError struct {
	From   AppointmentStatus
	Action Action
	Role   Role
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("this appointment's state has changed (now %s, cannot %s as %s), please refresh",
		e.From, e.Action, e.Role)
}

// ConflictError is a double-booking detected at write time.
type ConflictError struct {
	Slot time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("the slot %s just became unavailable, please pick another",
		e.Slot.UTC().Format("2006-01-02 15:04"))
}

func (e *ConflictError) Unwrap() error { return ErrSlotTaken }

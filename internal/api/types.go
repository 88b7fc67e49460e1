package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/equine-appointment-scheduling/internal/appointment"
)

type CreateAppointmentRequest struct {
	ProID            string      `json:"pro_id"`
	AnimalIDs        []string    `json:"animal_ids"`
	MainSlot         time.Time   `json:"main_slot"`
	AlternativeSlots []time.Time `json:"alternative_slots,omitempty"`
	Comment          string      `json:"comment"`
	Address          string      `json:"address"`
	AddressLat       *float64    `json:"address_lat,omitempty"`
	AddressLng       *float64    `json:"address_lng,omitempty"`
	DurationMinutes  int         `json:"duration_minutes,omitempty"`
}

type TransitionRequest struct {
	Action           string      `json:"action"`
	MainSlot         *time.Time  `json:"main_slot,omitempty"`
	AlternativeSlots []time.Time `json:"alternative_slots,omitempty"`
	SelectedSlot     *time.Time  `json:"selected_slot,omitempty"`
	Report           string      `json:"report,omitempty"`
}

type AppointmentResponse struct {
	ID               uuid.UUID   `json:"id"`
	ProID            uuid.UUID   `json:"pro_id"`
	OwnerID          uuid.UUID   `json:"owner_id"`
	AnimalIDs        []uuid.UUID `json:"animal_ids"`
	MainSlot         time.Time   `json:"main_slot"`
	AlternativeSlots []time.Time `json:"alternative_slots"`
	DurationMinutes  int         `json:"duration_minutes"`
	Status           string      `json:"status"`
	// AllowedActions is what the caller can do next, derived from status.
	AllowedActions       []string   `json:"allowed_actions"`
	IsRescheduleProposal bool       `json:"is_reschedule_proposal"`
	Comment              string     `json:"comment"`
	Address              string     `json:"address"`
	AddressLat           *float64   `json:"address_lat,omitempty"`
	AddressLng           *float64   `json:"address_lng,omitempty"`
	GeoValidated         bool       `json:"geo_validated"`
	DistanceKm           *float64   `json:"distance_km,omitempty"`
	Report               *string    `json:"report,omitempty"`
	ReportUpdatedAt      *time.Time `json:"report_updated_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

type AppointmentListResponse struct {
	Items  []AppointmentResponse `json:"items"`
	Limit  int                   `json:"limit"`
	Offset int                   `json:"offset"`
}

type SlotResponse struct {
	Time     string    `json:"time"`
	Start    time.Time `json:"start"`
	IsBooked bool      `json:"is_booked"`
}

type AvailabilityResponse struct {
	ProID           uuid.UUID      `json:"pro_id"`
	Date            string         `json:"date"`
	DurationMinutes int            `json:"duration_minutes"`
	Slots           []SlotResponse `json:"slots"`
}

type ReconcileResponse struct {
	Transitioned int `json:"transitioned"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
	// DistanceKm is set on geofence rejections.
	DistanceKm *float64 `json:"distance_km,omitempty"`
}

func toAppointmentResponse(a *appointment.Appointment, role appointment.Role) AppointmentResponse {
	alts := a.AlternativeSlots
	if alts == nil {
		alts = []time.Time{}
	}

	allowed := appointment.Allowed(a.Status, role)
	actions := make([]string, len(allowed))
	for i, act := range allowed {
		actions[i] = string(act)
	}

	return AppointmentResponse{
		ID:                   a.ID,
		ProID:                a.ProID,
		OwnerID:              a.OwnerID,
		AnimalIDs:            a.AnimalIDs,
		MainSlot:             a.MainSlot,
		AlternativeSlots:     alts,
		DurationMinutes:      a.DurationMinutes,
		Status:               string(a.Status),
		AllowedActions:       actions,
		IsRescheduleProposal: a.IsRescheduleProposal(),
		Comment:              a.Comment,
		Address:              a.Address,
		AddressLat:           a.AddressLat,
		AddressLng:           a.AddressLng,
		GeoValidated:         a.GeoValidated,
		DistanceKm:           a.DistanceKm,
		Report:               a.Report,
		ReportUpdatedAt:      a.ReportUpdatedAt,
		CreatedAt:            a.CreatedAt,
		UpdatedAt:            a.UpdatedAt,
	}
}

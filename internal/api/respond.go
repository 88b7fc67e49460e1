package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hackgods/equine-appointment-scheduling/internal/appointment"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// writeServiceError maps engine errors to HTTP. Messages of typed errors are
// already user-facing; anything unexpected is reported generically.
func writeServiceError(w http.ResponseWriter, err error) {
	var (
		validationErr *appointment.ValidationError
		geofenceErr   *appointment.GeofenceError
		transitionErr *appointment.InvalidTransitionError
		conflictErr   *appointment.ConflictError
	)

	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, "validation_failed", validationErr.Error())
	case errors.As(err, &geofenceErr):
		d := geofenceErr.DistanceKm
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:      "outside_service_area",
			Details:    geofenceErr.Error(),
			DistanceKm: &d,
		})
	case errors.As(err, &transitionErr):
		writeError(w, http.StatusConflict, "invalid_status_transition", transitionErr.Error())
	case errors.As(err, &conflictErr):
		writeError(w, http.StatusConflict, "slot_unavailable", conflictErr.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, appointment.ErrProfessionalNotFound):
		writeError(w, http.StatusNotFound, "professional_not_found", err.Error())
	case errors.Is(err, appointment.ErrOwnerNotFound):
		writeError(w, http.StatusNotFound, "owner_not_found", err.Error())
	case errors.Is(err, appointment.ErrNotParty):
		writeError(w, http.StatusForbidden, "forbidden", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "something went wrong, please try again later")
	}
}

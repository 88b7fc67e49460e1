package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hackgods/equine-appointment-scheduling/internal/appointment"
	"github.com/hackgods/equine-appointment-scheduling/internal/availability"
)

const dateLayout = "2006-01-02"

func createAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}
		if actor.Role != appointment.RoleOwner {
			writeError(w, http.StatusForbidden, "forbidden", "only owners can request appointments")
			return
		}

		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		proID, err := uuid.Parse(req.ProID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_pro_id", "pro_id must be a valid UUID")
			return
		}

		animalIDs := make([]uuid.UUID, 0, len(req.AnimalIDs))
		for _, raw := range req.AnimalIDs {
			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_animal_id", "animal_ids must be valid UUIDs")
				return
			}
			animalIDs = append(animalIDs, id)
		}

		appt, err := svc.CreateAppointment(r.Context(), appointment.CreateInput{
			OwnerID:          actor.UserID,
			ProID:            proID,
			AnimalIDs:        animalIDs,
			MainSlot:         req.MainSlot,
			AlternativeSlots: req.AlternativeSlots,
			Comment:          req.Comment,
			Address:          req.Address,
			AddressLat:       req.AddressLat,
			AddressLng:       req.AddressLng,
			DurationMinutes:  req.DurationMinutes,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt, actor.Role))
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id, actor)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt, actor.Role))
	}
}

func listAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}

		limit, err := queryInt(r, "limit", 20)
		if err != nil || limit < 1 || limit > 100 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be between 1 and 100")
			return
		}
		offset, err := queryInt(r, "offset", 0)
		if err != nil || offset < 0 {
			writeError(w, http.StatusBadRequest, "invalid_offset", "offset must be >= 0")
			return
		}

		appts, err := svc.ListAppointments(r.Context(), actor, limit, offset)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		items := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			items = append(items, toAppointmentResponse(&appts[i], actor.Role))
		}

		writeJSON(w, http.StatusOK, AppointmentListResponse{Items: items, Limit: limit, Offset: offset})
	}
}

func transitionHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r)
		if !ok {
			return
		}

		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req TransitionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}
		if req.Action == "" {
			writeError(w, http.StatusBadRequest, "missing_action", "action is required")
			return
		}

		payload := appointment.Payload{
			MainSlot:         req.MainSlot,
			AlternativeSlots: req.AlternativeSlots,
			SelectedSlot:     req.SelectedSlot,
			Report:           req.Report,
		}

		appt, err := svc.Transition(r.Context(), id, actor, appointment.Action(req.Action), payload)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt, actor.Role))
	}
}

// reconcileHandler runs the stale sweep on demand, optionally scoped to one
// professional. Clients call it when an agenda view is opened.
func reconcileHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := requireActor(w, r); !ok {
			return
		}

		var proID *uuid.UUID
		if raw := r.URL.Query().Get("pro_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_pro_id", "pro_id must be a valid UUID")
				return
			}
			proID = &id
		}

		n, err := svc.ReconcileStale(r.Context(), proID)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, ReconcileResponse{Transitioned: n})
	}
}

func availabilityHandler(engine *availability.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		proID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_pro_id", "id must be a valid UUID")
			return
		}

		rawDate := r.URL.Query().Get("date")
		date, err := time.Parse(dateLayout, rawDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be formatted as YYYY-MM-DD")
			return
		}

		duration, err := queryInt(r, "duration", 0)
		if err != nil || duration < 0 {
			writeError(w, http.StatusBadRequest, "invalid_duration", "duration must be a positive number of minutes")
			return
		}

		slots, used, err := engine.GetAvailableSlots(r.Context(), proID, date, duration)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		resp := AvailabilityResponse{
			ProID:           proID,
			Date:            rawDate,
			DurationMinutes: used,
			Slots:           make([]SlotResponse, 0, len(slots)),
		}
		for _, s := range slots {
			resp.Slots = append(resp.Slots, SlotResponse{Time: s.Time, Start: s.Start, IsBooked: s.IsBooked})
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

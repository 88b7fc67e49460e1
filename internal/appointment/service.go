package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/equine-appointment-scheduling/internal/config"
	"github.com/hackgods/equine-appointment-scheduling/internal/geofence"
	redisclient "github.com/hackgods/equine-appointment-scheduling/internal/redis"
)

const (
	EventAppointmentCreated = "APPOINTMENT_CREATED"
	eventTransitionPrefix   = "APPOINTMENT_"
)

type Service struct {
	repo   Repository
	locker redisclient.Locker
	cfg    config.Config
	log    zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, locker redisclient.Locker, cfg config.Config, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
		cfg:    cfg,
		log:    log.With().Str("module", "appointment").Logger(),
		now:    time.Now,
	}
}

// clock returns now in UTC at the precision Postgres stores, so that
// optimistic updated_at comparisons round-trip.
func (s *Service) clock() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// CreateInput is an OWNER's booking request.
type CreateInput struct {
	OwnerID          uuid.UUID
	ProID            uuid.UUID
	AnimalIDs        []uuid.UUID
	MainSlot         time.Time
	AlternativeSlots []time.Time
	Comment          string
	Address          string
	AddressLat       *float64
	AddressLng       *float64
	DurationMinutes  int // 0 means the professional's default
}

// CreateAppointment books a new pending appointment. The slot is re-checked
// under a per (professional, slot) lock, and the storage uniqueness guarantee
// turns any race that still slips through into a ConflictError.
func (s *Service) CreateAppointment(ctx context.Context, in CreateInput) (*Appointment, error) {
	now := s.clock()

	animals, err := validateCreate(&in)
	if err != nil {
		return nil, err
	}

	mainSlot := in.MainSlot.UTC()
	alts, err := validateSlots(mainSlot, in.AlternativeSlots, now)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.GetOwnerByID(ctx, in.OwnerID); err != nil {
		if errors.Is(err, ErrOwnerNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load owner: %w", err)
	}

	pro, err := s.repo.GetProfessionalByID(ctx, in.ProID)
	if err != nil {
		if errors.Is(err, ErrProfessionalNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load professional: %w", err)
	}

	owned, err := s.repo.CountAnimalsOwnedBy(ctx, in.OwnerID, animals)
	if err != nil {
		return nil, fmt.Errorf("check animals: %w", err)
	}
	if owned != len(animals) {
		return nil, invalid("animal_ids", "every animal must belong to you")
	}

	duration := in.DurationMinutes
	if duration == 0 {
		duration = pro.ConsultationMinutes
	}
	if duration <= 0 {
		duration = s.cfg.DefaultConsultation
	}

	appt := Appointment{
		ID:               uuid.New(),
		ProID:            pro.ID,
		OwnerID:          in.OwnerID,
		AnimalIDs:        animals,
		MainSlot:         mainSlot,
		AlternativeSlots: alts,
		DurationMinutes:  duration,
		Status:           StatusPending,
		Comment:          strings.TrimSpace(in.Comment),
		Address:          strings.TrimSpace(in.Address),
		AddressLat:       in.AddressLat,
		AddressLng:       in.AddressLng,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.checkGeofence(pro, &appt); err != nil {
		return nil, err
	}

	var created *Appointment

	err = s.withSlotLock(ctx, pro.ID, mainSlot, func(lockCtx context.Context) error {
		// Inside the critical section re-check occupancy for this start time
		if err := s.ensureSlotFree(lockCtx, pro.ID, mainSlot, uuid.Nil); err != nil {
			return err
		}

		c, err := s.repo.CreateAppointment(lockCtx, appt)
		if err != nil {
			return err
		}
		created = c

		s.logEvent(lockCtx, c.ID, EventAppointmentCreated, map[string]any{
			"pro_id":        c.ProID.String(),
			"owner_id":      c.OwnerID.String(),
			"main_slot":     c.MainSlot,
			"geo_validated": c.GeoValidated,
		})
		return nil
	})
	if err != nil {
		return nil, s.mapWriteError(err, mainSlot)
	}

	s.log.Info().
		Str("appointment_id", created.ID.String()).
		Str("pro_id", created.ProID.String()).
		Time("main_slot", created.MainSlot).
		Bool("geo_validated", created.GeoValidated).
		Msg("appointment created")

	return created, nil
}

// Transition applies action on behalf of actor and persists the result with an
// optimistic check on the status and updated_at that were read.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, actor Actor, action Action, p Payload) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	updated, _, err := s.apply(ctx, *appt, actor, action, p)
	return updated, err
}

func (s *Service) apply(ctx context.Context, appt Appointment, actor Actor, action Action, p Payload) (*Appointment, bool, error) {
	next, changed, err := Apply(appt, actor, action, p, s.clock())
	if err != nil {
		return nil, false, err
	}
	if !changed {
		return &appt, false, nil
	}

	write := func(ctx context.Context) (*Appointment, error) {
		return s.repo.UpdateAppointment(ctx, next, appt.Status, appt.UpdatedAt)
	}

	var updated *Appointment
	if next.Status.Blocking() && !next.MainSlot.Equal(appt.MainSlot) {
		err = s.withSlotLock(ctx, next.ProID, next.MainSlot, func(lockCtx context.Context) error {
			if err := s.ensureSlotFree(lockCtx, next.ProID, next.MainSlot, next.ID); err != nil {
				return err
			}
			u, err := write(lockCtx)
			updated = u
			return err
		})
	} else {
		updated, err = write(ctx)
	}

	if err != nil {
		if errors.Is(err, ErrStaleWrite) {
			return nil, false, s.staleTransition(ctx, appt, actor, action)
		}
		return nil, false, s.mapWriteError(err, next.MainSlot)
	}

	s.logEvent(ctx, updated.ID, eventTransitionPrefix+strings.ToUpper(string(action)), map[string]any{
		"from":      appt.Status,
		"to":        updated.Status,
		"role":      actor.Role,
		"main_slot": updated.MainSlot,
	})

	s.log.Info().
		Str("appointment_id", updated.ID.String()).
		Str("action", string(action)).
		Str("role", string(actor.Role)).
		Str("from", string(appt.Status)).
		Str("to", string(updated.Status)).
		Msg("appointment transitioned")

	return updated, true, nil
}

// GetAppointment returns an appointment the actor is a party to.
func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID, actor Actor) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	if err := checkParty(appt, actor); err != nil || actor.Role == RoleSystem {
		return nil, ErrNotParty
	}
	return appt, nil
}

// ListAppointments retrieves the actor's appointments, latest slot first
func (s *Service) ListAppointments(ctx context.Context, actor Actor, limit, offset int) ([]Appointment, error) {
	if actor.Role != RolePro && actor.Role != RoleOwner {
		return nil, ErrNotParty
	}
	if limit <= 0 {
		limit = 20 // default
	}
	if limit > 100 {
		limit = 100 // max
	}
	if offset < 0 {
		offset = 0
	}

	appointments, err := s.repo.ListAppointmentsForParty(ctx, actor.Role, actor.UserID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return appointments, nil
}

func validateCreate(in *CreateInput) ([]uuid.UUID, error) {
	if len(in.AnimalIDs) == 0 {
		return nil, invalid("animal_ids", "select at least one animal")
	}
	animals := make([]uuid.UUID, 0, len(in.AnimalIDs))
	for _, id := range in.AnimalIDs {
		if id == uuid.Nil {
			return nil, invalid("animal_ids", "contains an empty animal reference")
		}
		if !slices.Contains(animals, id) {
			animals = append(animals, id)
		}
	}

	if strings.TrimSpace(in.Comment) == "" {
		return nil, invalid("comment", "describe the reason for the visit")
	}
	if strings.TrimSpace(in.Address) == "" {
		return nil, invalid("address", "enter the address where the visit takes place")
	}
	if (in.AddressLat == nil) != (in.AddressLng == nil) {
		return nil, invalid("address_coords", "latitude and longitude must be given together")
	}
	if in.DurationMinutes < 0 {
		return nil, invalid("duration_minutes", "must be positive")
	}
	return animals, nil
}

// checkGeofence validates the visit coordinates against the professional's
// service area. Without coordinates on either side the check is skipped and
// the appointment is recorded as not geo-validated.
func (s *Service) checkGeofence(pro *Professional, appt *Appointment) error {
	if appt.AddressLat == nil || appt.AddressLng == nil || !pro.HasGeofence() {
		appt.GeoValidated = false
		return nil
	}

	res, err := geofence.Validate(*appt.AddressLat, *appt.AddressLng, *pro.Lat, *pro.Lng, *pro.RadiusKm)
	if err != nil {
		return invalid("address_coords", "coordinates are out of range")
	}
	if !res.IsValid {
		return &GeofenceError{DistanceKm: res.DistanceKm, RadiusKm: *pro.RadiusKm}
	}

	d := res.DistanceKm
	appt.GeoValidated = true
	appt.DistanceKm = &d
	return nil
}

// ensureSlotFree fails when a blocking appointment other than self already
// claims slot as its main or alternative start time.
func (s *Service) ensureSlotFree(ctx context.Context, proID uuid.UUID, slot time.Time, self uuid.UUID) error {
	existing, err := s.repo.ListBlockingBetween(ctx, proID, slot, slot.Add(time.Minute))
	if err != nil {
		return fmt.Errorf("check slot occupancy: %w", err)
	}
	for _, a := range existing {
		if a.ID == self {
			continue
		}
		if slices.ContainsFunc(a.Slots(), slot.Equal) {
			return ErrSlotTaken
		}
	}
	return nil
}

// withSlotLock runs fn under the (professional, slot) lock. When the lock store
// itself is down, fn runs unlocked and the unique slot index decides.
func (s *Service) withSlotLock(ctx context.Context, proID uuid.UUID, slot time.Time, fn func(ctx context.Context) error) error {
	err := s.locker.WithSlotLock(ctx, proID, slot, fn)
	if !errors.Is(err, redisclient.ErrLockUnavailable) {
		return err
	}

	s.log.Warn().
		Err(err).
		Str("pro_id", proID.String()).
		Time("slot", slot).
		Msg("slot lock unavailable, falling back to storage guard")
	return fn(ctx)
}

func (s *Service) mapWriteError(err error, slot time.Time) error {
	switch {
	case errors.Is(err, ErrSlotTaken), errors.Is(err, redisclient.ErrLockNotAcquired):
		return &ConflictError{Slot: slot}
	}
	return err
}

// staleTransition reports a lost optimistic write using the freshest status.
func (s *Service) staleTransition(ctx context.Context, read Appointment, actor Actor, action Action) error {
	from := read.Status
	if cur, err := s.repo.GetAppointmentByID(ctx, read.ID); err == nil {
		from = cur.Status
	}
	return &InvalidTransitionError{From: from, Action: action, Role: actor.Role}
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Warn().Err(err).Str("event", eventType).Msg("failed to marshal event payload")
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     s.clock(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Warn().Err(err).
			Str("event", eventType).
			Str("appointment_id", appointmentID.String()).
			Msg("failed to insert event log")
	}
}

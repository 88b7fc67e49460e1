package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/equine-appointment-scheduling/internal/schedule"
)

// Name of the partial unique index guarding (pro_id, main_slot).
const blockingSlotIndex = "appointments_pro_slot_blocking"

const pgUniqueViolation = "23505"

const appointmentColumns = `
	id, pro_id, owner_id, animal_ids, main_slot, alternative_slots, confirmed_slot,
	duration_minutes, status, comment, address, address_lat, address_lng,
	geo_validated, distance_km, report, report_updated_at, created_at, updated_at`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanProfessional(row pgx.Row) (*Professional, error) {
	var p Professional
	var hours []byte

	err := row.Scan(
		&p.ID,
		&p.Name,
		&hours,
		&p.Lat,
		&p.Lng,
		&p.RadiusKm,
		&p.ConsultationMinutes,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProfessionalNotFound
		}
		return nil, err
	}

	p.WorkingHours = schedule.WorkingHours{}
	if len(hours) > 0 {
		if err := json.Unmarshal(hours, &p.WorkingHours); err != nil {
			return nil, fmt.Errorf("decode working hours: %w", err)
		}
	}
	return &p, nil
}

func scanOwner(row pgx.Row) (*Owner, error) {
	var o Owner

	err := row.Scan(
		&o.ID,
		&o.Name,
		&o.Address,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOwnerNotFound
		}
		return nil, err
	}
	return &o, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var status string

	err := row.Scan(
		&a.ID,
		&a.ProID,
		&a.OwnerID,
		&a.AnimalIDs,
		&a.MainSlot,
		&a.AlternativeSlots,
		&a.ConfirmedSlot,
		&a.DurationMinutes,
		&status,
		&a.Comment,
		&a.Address,
		&a.AddressLat,
		&a.AddressLng,
		&a.GeoValidated,
		&a.DistanceKm,
		&a.Report,
		&a.ReportUpdatedAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Status = AppointmentStatus(status)
	a.MainSlot = a.MainSlot.UTC()
	if len(a.AlternativeSlots) == 0 {
		a.AlternativeSlots = nil
	}
	for i := range a.AlternativeSlots {
		a.AlternativeSlots[i] = a.AlternativeSlots[i].UTC()
	}
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func isBlockingSlotViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == blockingSlotIndex
}

func blockingStatusStrings() []string {
	out := make([]string, len(BlockingStatuses))
	for i, s := range BlockingStatuses {
		out[i] = string(s)
	}
	return out
}

// Interface methods

func (r *PgRepository) GetProfessionalByID(ctx context.Context, id uuid.UUID) (*Professional, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, working_hours, lat, lng, radius_km, consultation_minutes, created_at, updated_at
		FROM professionals
		WHERE id = $1
	`, id)
	return scanProfessional(row)
}

func (r *PgRepository) GetOwnerByID(ctx context.Context, id uuid.UUID) (*Owner, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, name, address, created_at, updated_at
		FROM owners
		WHERE id = $1
	`, id)
	return scanOwner(row)
}

func (r *PgRepository) CountAnimalsOwnedBy(ctx context.Context, ownerID uuid.UUID, ids []uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM animals
		WHERE owner_id = $1
		  AND id = ANY($2)
	`, ownerID, ids).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count animals: %w", err)
	}
	return n, nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListAppointmentsForParty(ctx context.Context, role Role, userID uuid.UUID, limit, offset int) ([]Appointment, error) {
	column := "owner_id"
	if role == RolePro {
		column = "pro_id"
	}

	rows, err := r.pool.Query(ctx, `SELECT `+appointmentColumns+`
		FROM appointments
		WHERE `+column+` = $1
		ORDER BY main_slot DESC
		LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) ListBlockingBetween(ctx context.Context, proID uuid.UUID, from, to time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+appointmentColumns+`
		FROM appointments
		WHERE pro_id = $1
		  AND status = ANY($2)
		  AND (
		        (main_slot >= $3 AND main_slot < $4)
		     OR EXISTS (SELECT 1 FROM unnest(alternative_slots) AS alt WHERE alt >= $3 AND alt < $4)
		  )
		ORDER BY main_slot
	`, proID, blockingStatusStrings(), from, to)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) CreateAppointment(ctx context.Context, a Appointment) (*Appointment, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (
			id, pro_id, owner_id, animal_ids, main_slot, alternative_slots, confirmed_slot,
			duration_minutes, status, comment, address, address_lat, address_lng,
			geo_validated, distance_km, report, report_updated_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
		RETURNING`+appointmentColumns,
		a.ID, a.ProID, a.OwnerID, a.AnimalIDs, a.MainSlot, nonNilSlots(a.AlternativeSlots), a.ConfirmedSlot,
		a.DurationMinutes, string(a.Status), a.Comment, a.Address, a.AddressLat, a.AddressLng,
		a.GeoValidated, a.DistanceKm, a.Report, a.ReportUpdatedAt, a.CreatedAt, a.UpdatedAt,
	)

	created, err := scanAppointment(row)
	if err != nil {
		if isBlockingSlotViolation(err) {
			return nil, ErrSlotTaken
		}
		return nil, err
	}
	return created, nil
}

func (r *PgRepository) UpdateAppointment(ctx context.Context, a Appointment, expectedStatus AppointmentStatus, expectedUpdatedAt time.Time) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET main_slot = $2,
		    alternative_slots = $3,
		    confirmed_slot = $4,
		    status = $5,
		    report = $6,
		    report_updated_at = $7,
		    updated_at = $8
		WHERE id = $1
		  AND status = $9
		  AND updated_at = $10
		RETURNING`+appointmentColumns,
		a.ID, a.MainSlot, nonNilSlots(a.AlternativeSlots), a.ConfirmedSlot, string(a.Status),
		a.Report, a.ReportUpdatedAt, a.UpdatedAt, string(expectedStatus), expectedUpdatedAt,
	)

	updated, err := scanAppointment(row)
	if err != nil {
		switch {
		case errors.Is(err, ErrAppointmentNotFound):
			return nil, ErrStaleWrite
		case isBlockingSlotViolation(err):
			return nil, ErrSlotTaken
		}
		return nil, err
	}
	return updated, nil
}

func (r *PgRepository) FindElapsedConfirmed(ctx context.Context, now time.Time, proID *uuid.UUID) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+appointmentColumns+`
		FROM appointments
		WHERE status = 'confirmed'
		  AND main_slot + make_interval(mins => duration_minutes) < $1
		  AND ($2::uuid IS NULL OR pro_id = $2)
		ORDER BY main_slot
	`, now, proID)
	if err != nil {
		return nil, err
	}
	return collectAppointments(rows)
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO appointment_events (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func nonNilSlots(s []time.Time) []time.Time {
	if s == nil {
		return []time.Time{}
	}
	return s
}

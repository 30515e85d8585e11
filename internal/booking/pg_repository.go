package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the subset of *pgxpool.Pool the repository uses, so pgxmock can stand in for it.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PgRepository struct {
	pool PgxPool
}

func NewPgRepository(pool PgxPool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	var id uuid.UUID

	err := row.Scan(
		&id,
		&d.Name,
		&d.Specialization,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDoctorNotFound
		}
		return nil, err
	}

	d.ID = id.String()
	return &d, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var id, doctorID uuid.UUID

	err := row.Scan(
		&id,
		&doctorID,
		&a.DoctorName,
		&a.Date,
		&a.Time,
		&a.PatientEmail,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.ID = id.String()
	a.DoctorID = doctorID.String()
	return &a, nil
}

// parseDoctorID reports ok=false for ids that can never exist in the doctors table.
func parseDoctorID(id string) (uuid.UUID, bool) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, false
	}
	return parsed, true
}

// Interface methods

func (r *PgRepository) ListDoctors(ctx context.Context, specialization string) ([]Doctor, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, name, specialization
		FROM doctors
		WHERE ($1 = '' OR specialization = $1)
		ORDER BY name
	`, specialization)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// GetDoctor looks up by id first and falls back to a case-insensitive name match, so a stale
// or partial client selector still resolves.
func (r *PgRepository) GetDoctor(ctx context.Context, sel DoctorSelector) (*Doctor, error) {
	var doctor *Doctor

	if id, ok := parseDoctorID(sel.ID); ok {
		d, err := scanDoctor(r.pool.QueryRow(ctx, `
			SELECT id, name, specialization
			FROM doctors
			WHERE id = $1
		`, id))
		if err != nil && !errors.Is(err, ErrDoctorNotFound) {
			return nil, err
		}
		doctor = d
	}

	if doctor == nil && sel.Name != "" {
		d, err := scanDoctor(r.pool.QueryRow(ctx, `
			SELECT id, name, specialization
			FROM doctors
			WHERE lower(name) = lower($1)
		`, sel.Name))
		if err != nil {
			return nil, err
		}
		doctor = d
	}

	if doctor == nil {
		return nil, ErrDoctorNotFound
	}

	slots, err := r.loadSlots(ctx, doctor.ID, false)
	if err != nil {
		return nil, err
	}
	doctor.Availability = slots
	return doctor, nil
}

func (r *PgRepository) GetAvailableSlots(ctx context.Context, doctorID string) ([]Slot, error) {
	id, ok := parseDoctorID(doctorID)
	if !ok {
		return nil, ErrDoctorNotFound
	}

	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM doctors WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrDoctorNotFound
	}

	return r.loadSlots(ctx, doctorID, true)
}

func (r *PgRepository) loadSlots(ctx context.Context, doctorID string, onlyAvailable bool) ([]Slot, error) {
	id, _ := parseDoctorID(doctorID)

	rows, err := r.pool.Query(ctx, `
		SELECT slot_date, slot_time, available, claimed_at
		FROM doctor_slots
		WHERE doctor_id = $1
		  AND ($2 = false OR available)
		ORDER BY slot_date, slot_time
	`, id, onlyAvailable)
	if err != nil {
		return nil, fmt.Errorf("load slots: %w", err)
	}
	defer rows.Close()

	var result []Slot
	for rows.Next() {
		var s Slot
		if err := rows.Scan(&s.Date, &s.Time, &s.Available, &s.ClaimedAt); err != nil {
			return nil, err
		}
		result = append(result, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// ClaimSlot flips one slot in a single statement. The row lock taken by UPDATE serializes
// concurrent claims; a loser re-evaluates "AND available" after the winner commits and
// updates nothing.
func (r *PgRepository) ClaimSlot(ctx context.Context, doctorID, date, slotTime string) (ClaimResult, error) {
	id, ok := parseDoctorID(doctorID)
	if !ok {
		return DoctorNotFound, nil
	}

	var doctorExists, claimed bool
	err := r.pool.QueryRow(ctx, `
		WITH claimed AS (
			UPDATE doctor_slots
			SET available = false,
			    claimed_at = now()
			WHERE doctor_id = $1
			  AND slot_date = $2
			  AND slot_time = $3
			  AND available
			RETURNING doctor_id
		)
		SELECT EXISTS (SELECT 1 FROM doctors WHERE id = $1),
		       EXISTS (SELECT 1 FROM claimed)
	`, id, date, slotTime).Scan(&doctorExists, &claimed)
	if err != nil {
		return 0, err
	}

	switch {
	case claimed:
		return Claimed, nil
	case !doctorExists:
		return DoctorNotFound, nil
	default:
		return SlotUnavailable, nil
	}
}

func (r *PgRepository) ListClaimedSlots(ctx context.Context, claimedBefore time.Time) ([]ClaimedSlot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT s.doctor_id, d.name, s.slot_date, s.slot_time, s.claimed_at
		FROM doctor_slots s
		JOIN doctors d ON d.id = s.doctor_id
		WHERE NOT s.available
		  AND s.claimed_at IS NOT NULL
		  AND s.claimed_at < $1
		ORDER BY s.claimed_at
	`, claimedBefore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ClaimedSlot
	for rows.Next() {
		var c ClaimedSlot
		var doctorID uuid.UUID
		if err := rows.Scan(&doctorID, &c.DoctorName, &c.Date, &c.Time, &c.ClaimedAt); err != nil {
			return nil, err
		}
		c.DoctorID = doctorID.String()
		result = append(result, c)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func (r *PgRepository) RecordAppointment(ctx context.Context, appt Appointment) (*Appointment, error) {
	id := uuid.New()
	if parsed, err := uuid.Parse(appt.ID); err == nil {
		id = parsed
	}
	doctorID, ok := parseDoctorID(appt.DoctorID)
	if !ok {
		return nil, fmt.Errorf("record appointment: invalid doctor id %q", appt.DoctorID)
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, doctor_id, doctor_name, slot_date, slot_time, patient_email, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, now()))
		RETURNING id, doctor_id, doctor_name, slot_date, slot_time, patient_email, created_at
	`, id, doctorID, appt.DoctorName, appt.Date, appt.Time, appt.PatientEmail, nullableTime(appt.CreatedAt))

	created, err := scanAppointment(row)
	if err != nil {
		return nil, fmt.Errorf("insert appointment: %w", err)
	}
	return created, nil
}

func (r *PgRepository) ListAppointments(ctx context.Context, f AppointmentFilter) ([]Appointment, error) {
	var doctorID *uuid.UUID
	if f.DoctorID != "" {
		id, ok := parseDoctorID(f.DoctorID)
		if !ok {
			return nil, nil
		}
		doctorID = &id
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, doctor_id, doctor_name, slot_date, slot_time, patient_email, created_at
		FROM appointments
		WHERE ($1::uuid IS NULL OR doctor_id = $1)
		  AND ($2 = '' OR lower(patient_email) = lower($2))
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, doctorID, f.PatientEmail, f.Limit, f.Offset)
	if err != nil {
		return nil, err
	}
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

func (r *PgRepository) HasAppointment(ctx context.Context, doctorID, date, slotTime string) (bool, error) {
	id, ok := parseDoctorID(doctorID)
	if !ok {
		return false, nil
	}

	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM appointments
			WHERE doctor_id = $1 AND slot_date = $2 AND slot_time = $3
		)
	`, id, date, slotTime).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// Provisioning

func (r *PgRepository) CreateDoctor(ctx context.Context, d Doctor) (*Doctor, error) {
	id := uuid.New()
	if parsed, ok := parseDoctorID(d.ID); ok {
		id = parsed
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO doctors (id, name, specialization, created_at)
		VALUES ($1, $2, $3, now())
	`, id, d.Name, d.Specialization)
	if err != nil {
		return nil, fmt.Errorf("insert doctor: %w", err)
	}

	for _, s := range d.Availability {
		_, err := tx.Exec(ctx, `
			INSERT INTO doctor_slots (doctor_id, slot_date, slot_time, available)
			VALUES ($1, $2, $3, $4)
		`, id, s.Date, s.Time, s.Available)
		if err != nil {
			return nil, fmt.Errorf("insert slot %s %s: %w", s.Date, s.Time, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	d.ID = id.String()
	return &d, nil
}

func (r *PgRepository) DoctorNameExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM doctors WHERE lower(name) = lower($1))`, name).Scan(&exists)
	return exists, err
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

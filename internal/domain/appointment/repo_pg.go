package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bits-grahate/hospital-management-system/internal/platform/db"
	"github.com/bits-grahate/hospital-management-system/pkg/apperror"
	"github.com/bits-grahate/hospital-management-system/pkg/pagination"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const cols = `id, patient_id, doctor_id, department, slot_start, slot_end,
	status, reschedule_count, version, created_at`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.Department,
		&a.SlotStart, &a.SlotEnd, &a.Status, &a.RescheduleCount, &a.Version, &a.CreatedAt)
	return &a, err
}

func (r *repoPG) Create(ctx context.Context, a *Appointment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Version == 0 {
		a.Version = 1
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO appointments (id, patient_id, doctor_id, department,
			slot_start, slot_end, status, reschedule_count, version, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		a.ID, a.PatientID, a.DoctorID, a.Department,
		a.SlotStart, a.SlotEnd, a.Status, a.RescheduleCount, a.Version, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	a, err := scanAppointment(r.conn(ctx).QueryRow(ctx,
		`SELECT `+cols+` FROM appointments WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("appointment %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return a, nil
}

func (r *repoPG) List(ctx context.Context, f Filter, p pagination.Params) ([]Appointment, int, error) {
	where := " WHERE 1=1"
	args := []interface{}{}
	idx := 1

	if f.PatientID != nil {
		where += fmt.Sprintf(" AND patient_id = $%d", idx)
		args = append(args, *f.PatientID)
		idx++
	}
	if f.DoctorID != nil {
		where += fmt.Sprintf(" AND doctor_id = $%d", idx)
		args = append(args, *f.DoctorID)
		idx++
	}
	if f.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, f.Status)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, "SELECT COUNT(*) FROM appointments"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	query := "SELECT " + cols + " FROM appointments" + where +
		fmt.Sprintf(" ORDER BY slot_start DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, p.Limit, p.Offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	out, err := collectAppointments(rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *repoPG) UpdateSlot(ctx context.Context, id uuid.UUID, slotStart, slotEnd time.Time, rescheduleCount, version int) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointments
		SET slot_start = $3, slot_end = $4, reschedule_count = $5, version = version + 1
		WHERE id = $1 AND version = $2`,
		id, version, slotStart, slotEnd, rescheduleCount)
	if err != nil {
		return fmt.Errorf("update appointment slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.staleOrMissing(ctx, id)
	}
	return nil
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status Status, version int) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE appointments
		SET status = $3, version = version + 1
		WHERE id = $1 AND version = $2`,
		id, version, status)
	if err != nil {
		return fmt.Errorf("update appointment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.staleOrMissing(ctx, id)
	}
	return nil
}

// staleOrMissing distinguishes a lost optimistic-lock race from a deleted row.
func (r *repoPG) staleOrMissing(ctx context.Context, id uuid.UUID) error {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM appointments WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check appointment existence: %w", err)
	}
	if !exists {
		return apperror.NotFound("appointment %s not found", id)
	}
	return apperror.Conflict("appointment %s was modified concurrently", id)
}

func (r *repoPG) FindOverlappingForDoctor(ctx context.Context, doctorID uuid.UUID, slotStart, slotEnd time.Time, excludeID *uuid.UUID) ([]Appointment, error) {
	return r.findOverlapping(ctx, "doctor_id", doctorID, slotStart, slotEnd, excludeID)
}

func (r *repoPG) FindOverlappingForPatient(ctx context.Context, patientID uuid.UUID, slotStart, slotEnd time.Time, excludeID *uuid.UUID) ([]Appointment, error) {
	return r.findOverlapping(ctx, "patient_id", patientID, slotStart, slotEnd, excludeID)
}

// findOverlapping implements half-open interval intersection: touching
// endpoints do not conflict.
func (r *repoPG) findOverlapping(ctx context.Context, ownerCol string, ownerID uuid.UUID, slotStart, slotEnd time.Time, excludeID *uuid.UUID) ([]Appointment, error) {
	query := `SELECT ` + cols + ` FROM appointments
		WHERE ` + ownerCol + ` = $1
		AND status <> 'CANCELLED'
		AND slot_start < $3 AND slot_end > $2`
	args := []interface{}{ownerID, slotStart, slotEnd}
	if excludeID != nil {
		query += " AND id <> $4"
		args = append(args, *excludeID)
	}

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find overlapping appointments: %w", err)
	}
	defer rows.Close()

	return collectAppointments(rows)
}

func (r *repoPG) CountByDoctorAndDate(ctx context.Context, doctorID uuid.UUID, date time.Time) (int, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	var count int
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT COUNT(*) FROM appointments
		WHERE doctor_id = $1
		AND status IN ('SCHEDULED', 'COMPLETED')
		AND slot_start >= $2 AND slot_start < $3`,
		doctorID, dayStart, dayEnd).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count appointments: %w", err)
	}
	return count, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	var out []Appointment
	for rows.Next() {
		var a Appointment
		if err := rows.Scan(&a.ID, &a.PatientID, &a.DoctorID, &a.Department,
			&a.SlotStart, &a.SlotEnd, &a.Status, &a.RescheduleCount, &a.Version, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bits-grahate/hospital-management-system/internal/platform/db"
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

func (r *repoPG) Insert(ctx context.Context, ev *Event) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO appointment_events (id, appointment_id, patient_id, doctor_id,
			event_type, slot_start, slot_end, correlation_id, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		ev.ID, ev.AppointmentID, ev.PatientID, ev.DoctorID,
		ev.Type, ev.SlotStart, ev.SlotEnd, ev.CorrelationID, ev.CreatedAt)
	return err
}

func (r *repoPG) ListUndispatched(ctx context.Context, limit int) ([]Event, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, appointment_id, patient_id, doctor_id, event_type,
			slot_start, slot_end, correlation_id, created_at, dispatched_at
		FROM appointment_events
		WHERE dispatched_at IS NULL
		ORDER BY created_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.ID, &ev.AppointmentID, &ev.PatientID, &ev.DoctorID,
			&ev.Type, &ev.SlotStart, &ev.SlotEnd, &ev.CorrelationID,
			&ev.CreatedAt, &ev.DispatchedAt); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (r *repoPG) MarkDispatched(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE appointment_events SET dispatched_at = NOW() WHERE id = $1`, id)
	return err
}

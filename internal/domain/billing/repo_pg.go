package billing

import (
	"context"
	"errors"
	"fmt"

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

const cols = `id, patient_id, appointment_id, consultation_fee, medication_fee,
	tax_amount, total_amount, status, refund_amount, refund_reason, created_at`

func scanBill(row pgx.Row) (*Bill, error) {
	var b Bill
	err := row.Scan(&b.ID, &b.PatientID, &b.AppointmentID,
		&b.ConsultationFee, &b.MedicationFee, &b.TaxAmount, &b.TotalAmount,
		&b.Status, &b.RefundAmount, &b.RefundReason, &b.CreatedAt)
	return &b, err
}

func (r *repoPG) Create(ctx context.Context, b *Bill) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO bills (id, patient_id, appointment_id, consultation_fee,
			medication_fee, tax_amount, total_amount, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		b.ID, b.PatientID, b.AppointmentID, b.ConsultationFee,
		b.MedicationFee, b.TaxAmount, b.TotalAmount, b.Status)
	if err != nil {
		return fmt.Errorf("insert bill: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Bill, error) {
	b, err := scanBill(r.conn(ctx).QueryRow(ctx,
		`SELECT `+cols+` FROM bills WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("bill %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get bill: %w", err)
	}
	return b, nil
}

func (r *repoPG) GetByAppointmentID(ctx context.Context, appointmentID uuid.UUID) (*Bill, error) {
	b, err := scanBill(r.conn(ctx).QueryRow(ctx,
		`SELECT `+cols+` FROM bills WHERE appointment_id = $1 ORDER BY created_at DESC LIMIT 1`,
		appointmentID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("no bill for appointment %s", appointmentID)
	}
	if err != nil {
		return nil, fmt.Errorf("get bill by appointment: %w", err)
	}
	return b, nil
}

func (r *repoPG) List(ctx context.Context, p pagination.Params) ([]Bill, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM bills`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count bills: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+cols+` FROM bills ORDER BY created_at DESC LIMIT $1 OFFSET $2`,
		p.Limit, p.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list bills: %w", err)
	}
	defer rows.Close()

	out, err := collectBills(rows)
	return out, total, err
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID, p pagination.Params) ([]Bill, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM bills WHERE patient_id = $1`, patientID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count patient bills: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+cols+` FROM bills WHERE patient_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		patientID, p.Limit, p.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list patient bills: %w", err)
	}
	defer rows.Close()

	out, err := collectBills(rows)
	return out, total, err
}

func (r *repoPG) Update(ctx context.Context, b *Bill, expected Status) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE bills
		SET consultation_fee = $2, medication_fee = $3, tax_amount = $4,
			total_amount = $5, status = $6, refund_amount = $7, refund_reason = $8
		WHERE id = $1 AND status = $9`,
		b.ID, b.ConsultationFee, b.MedicationFee, b.TaxAmount,
		b.TotalAmount, b.Status, b.RefundAmount, b.RefundReason, expected)
	if err != nil {
		return fmt.Errorf("update bill: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return r.transitionedOrMissing(ctx, b.ID, expected)
	}
	return nil
}

// transitionedOrMissing distinguishes a lost status race from a deleted row.
func (r *repoPG) transitionedOrMissing(ctx context.Context, id uuid.UUID, expected Status) error {
	var current Status
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT status FROM bills WHERE id = $1`, id).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperror.NotFound("bill %s not found", id)
	}
	if err != nil {
		return fmt.Errorf("recheck bill status: %w", err)
	}
	return apperror.InvalidState("bill %s is %s, expected %s", id, current, expected)
}

func collectBills(rows pgx.Rows) ([]Bill, error) {
	var out []Bill
	for rows.Next() {
		var b Bill
		if err := rows.Scan(&b.ID, &b.PatientID, &b.AppointmentID,
			&b.ConsultationFee, &b.MedicationFee, &b.TaxAmount, &b.TotalAmount,
			&b.Status, &b.RefundAmount, &b.RefundReason, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan bill: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

type processedEventRepoPG struct{ pool *pgxpool.Pool }

func NewProcessedEventRepoPG(pool *pgxpool.Pool) ProcessedEventRepository {
	return &processedEventRepoPG{pool: pool}
}

func (r *processedEventRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *processedEventRepoPG) MarkProcessed(ctx context.Context, appointmentID uuid.UUID, eventType string) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO billing_processed_events (appointment_id, event_type)
		VALUES ($1, $2)
		ON CONFLICT (appointment_id, event_type) DO NOTHING`,
		appointmentID, eventType)
	if err != nil {
		return false, fmt.Errorf("mark event processed: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

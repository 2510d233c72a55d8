package patient

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

const cols = `id, name, email, phone, dob, active, created_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Name, &p.Email, &p.Phone, &p.DOB, &p.Active, &p.CreatedAt)
	return &p, err
}

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO patients (id, name, email, phone, dob, active)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		p.ID, p.Name, p.Email, p.Phone, p.DOB, p.Active)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperror.Conflict("a patient with email %s already exists", p.Email)
		}
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx,
		`SELECT `+cols+` FROM patients WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("patient %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get patient: %w", err)
	}
	return p, nil
}

func (r *repoPG) List(ctx context.Context, f Filter, p pagination.Params) ([]Patient, int, error) {
	where := " WHERE 1=1"
	args := []interface{}{}
	idx := 1

	if f.Name != "" {
		where += fmt.Sprintf(" AND name ILIKE $%d", idx)
		args = append(args, "%"+f.Name+"%")
		idx++
	}
	if f.Phone != "" {
		where += fmt.Sprintf(" AND phone = $%d", idx)
		args = append(args, f.Phone)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, "SELECT COUNT(*) FROM patients"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count patients: %w", err)
	}

	query := "SELECT " + cols + " FROM patients" + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, p.Limit, p.Offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()

	var out []Patient
	for rows.Next() {
		var pt Patient
		if err := rows.Scan(&pt.ID, &pt.Name, &pt.Email, &pt.Phone, &pt.DOB, &pt.Active, &pt.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan patient: %w", err)
		}
		out = append(out, pt)
	}
	return out, total, rows.Err()
}

func (r *repoPG) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE patients SET active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("update patient active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NotFound("patient %s not found", id)
	}
	return nil
}

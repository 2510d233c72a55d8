package doctor

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

const cols = `id, name, email, phone, department, specialization, active, created_at`

func (r *repoPG) Create(ctx context.Context, d *Doctor) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO doctors (id, name, email, phone, department, specialization, active)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		d.ID, d.Name, d.Email, d.Phone, d.Department, d.Specialization, d.Active)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return apperror.Conflict("a doctor with email %s already exists", d.Email)
		}
		return fmt.Errorf("insert doctor: %w", err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	var d Doctor
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT `+cols+` FROM doctors WHERE id = $1`, id).
		Scan(&d.ID, &d.Name, &d.Email, &d.Phone, &d.Department, &d.Specialization, &d.Active, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperror.NotFound("doctor %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get doctor: %w", err)
	}
	return &d, nil
}

func (r *repoPG) List(ctx context.Context, f Filter, p pagination.Params) ([]Doctor, int, error) {
	where := " WHERE 1=1"
	args := []interface{}{}
	idx := 1

	if f.Department != "" {
		where += fmt.Sprintf(" AND department = $%d", idx)
		args = append(args, f.Department)
		idx++
	}
	if f.Specialization != "" {
		where += fmt.Sprintf(" AND specialization = $%d", idx)
		args = append(args, f.Specialization)
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, "SELECT COUNT(*) FROM doctors"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count doctors: %w", err)
	}

	query := "SELECT " + cols + " FROM doctors" + where +
		fmt.Sprintf(" ORDER BY name LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, p.Limit, p.Offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list doctors: %w", err)
	}
	defer rows.Close()

	var out []Doctor
	for rows.Next() {
		var d Doctor
		if err := rows.Scan(&d.ID, &d.Name, &d.Email, &d.Phone, &d.Department, &d.Specialization, &d.Active, &d.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan doctor: %w", err)
		}
		out = append(out, d)
	}
	return out, total, rows.Err()
}

func (r *repoPG) ListDepartments(ctx context.Context) ([]string, error) {
	return r.scanStrings(ctx, `SELECT DISTINCT department FROM doctors WHERE active ORDER BY department`)
}

func (r *repoPG) ListSpecializations(ctx context.Context, department string) ([]string, error) {
	if department != "" {
		return r.scanStrings(ctx,
			`SELECT DISTINCT specialization FROM doctors WHERE active AND department = $1 ORDER BY specialization`,
			department)
	}
	return r.scanStrings(ctx, `SELECT DISTINCT specialization FROM doctors WHERE active ORDER BY specialization`)
}

func (r *repoPG) scanStrings(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

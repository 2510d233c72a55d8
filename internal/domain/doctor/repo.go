package doctor

import (
	"context"

	"github.com/google/uuid"

	"github.com/bits-grahate/hospital-management-system/pkg/pagination"
)

// Repository persists doctor records.
type Repository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	List(ctx context.Context, f Filter, p pagination.Params) ([]Doctor, int, error)
	ListDepartments(ctx context.Context) ([]string, error)
	ListSpecializations(ctx context.Context, department string) ([]string, error)
}

package patient

import (
	"context"

	"github.com/google/uuid"

	"github.com/bits-grahate/hospital-management-system/pkg/pagination"
)

// Repository persists patient records.
type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	List(ctx context.Context, f Filter, p pagination.Params) ([]Patient, int, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

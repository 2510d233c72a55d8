package patient

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bits-grahate/hospital-management-system/pkg/pagination"
)

// Service implements patient registry operations.
type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

func (s *Service) Create(ctx context.Context, req *CreateRequest) (*Patient, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	p := &Patient{
		Name:   req.Name,
		Email:  req.Email,
		Phone:  req.Phone,
		Active: true,
	}
	if req.DOB != "" {
		dob, _ := time.Parse("2006-01-02", req.DOB)
		p.DOB = &dob
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("patient_id", p.ID.String()).
		Str("email", MaskEmail(p.Email)).
		Str("phone", MaskPhone(p.Phone)).
		Msg("patient registered")
	return p, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter, p pagination.Params) ([]Patient, int, error) {
	return s.repo.List(ctx, f, p)
}

// Deactivate marks the patient inactive. Inactive patients cannot book
// appointments.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.SetActive(ctx, id, false); err != nil {
		return err
	}
	s.logger.Info().Str("patient_id", id.String()).Msg("patient deactivated")
	return nil
}

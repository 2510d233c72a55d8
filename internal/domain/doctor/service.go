package doctor

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bits-grahate/hospital-management-system/pkg/pagination"
)

// AppointmentCounter reports how many countable appointments a doctor has on
// a calendar date. The availability checker uses it to enforce the daily cap.
type AppointmentCounter interface {
	CountByDoctorAndDate(ctx context.Context, doctorID uuid.UUID, date time.Time) (int, error)
}

// Service implements the doctor directory and the availability checker.
type Service struct {
	repo     Repository
	counter  AppointmentCounter
	dailyCap int
	now      func() time.Time
	logger   zerolog.Logger
}

func NewService(repo Repository, counter AppointmentCounter, dailyCap int, logger zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		counter:  counter,
		dailyCap: dailyCap,
		now:      time.Now,
		logger:   logger,
	}
}

// WithClock overrides the service clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Create(ctx context.Context, req *CreateRequest) (*Doctor, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	d := &Doctor{
		Name:           req.Name,
		Email:          req.Email,
		Phone:          req.Phone,
		Department:     req.Department,
		Specialization: req.Specialization,
		Active:         true,
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("doctor_id", d.ID.String()).
		Str("department", d.Department).
		Msg("doctor registered")
	return d, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter, p pagination.Params) ([]Doctor, int, error) {
	return s.repo.List(ctx, f, p)
}

func (s *Service) ListDepartments(ctx context.Context) ([]string, error) {
	return s.repo.ListDepartments(ctx)
}

func (s *Service) ListSpecializations(ctx context.Context, department string) ([]string, error) {
	return s.repo.ListSpecializations(ctx, department)
}

// CheckAvailability decides whether the doctor can take the requested slot.
// An unknown doctor is an error; every other failure is reported as
// Available=false with a reason. The checks run in a fixed order: department,
// clinic hours, lead time, daily cap. The cap check fails open when the
// counter is unreachable so that a counting outage cannot block all bookings.
func (s *Service) CheckAvailability(ctx context.Context, doctorID uuid.UUID, req *AvailabilityRequest) (*AvailabilityResult, error) {
	d, err := s.repo.GetByID(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	if !d.Active {
		return &AvailabilityResult{Reason: "doctor is not active"}, nil
	}

	if req.Department != "" && req.Department != d.Department {
		return &AvailabilityResult{Reason: "department mismatch"}, nil
	}

	minute := req.SlotStart.Hour()*60 + req.SlotStart.Minute()
	if minute < ClinicOpenMinute || minute > ClinicCloseMinute {
		return &AvailabilityResult{Reason: "outside clinic hours"}, nil
	}

	if req.SlotStart.Before(s.now().Add(MinLeadTime)) {
		return &AvailabilityResult{Reason: "insufficient lead time"}, nil
	}

	count, err := s.counter.CountByDoctorAndDate(ctx, doctorID, req.SlotStart)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("doctor_id", doctorID.String()).
			Msg("appointment count unavailable, skipping daily cap check")
	} else if count >= s.dailyCap {
		return &AvailabilityResult{Reason: "daily cap reached"}, nil
	}

	return &AvailabilityResult{Available: true}, nil
}

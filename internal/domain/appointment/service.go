package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bits-grahate/hospital-management-system/internal/domain/doctor"
	"github.com/bits-grahate/hospital-management-system/internal/platform/clients"
	"github.com/bits-grahate/hospital-management-system/internal/platform/correlation"
	"github.com/bits-grahate/hospital-management-system/internal/platform/events"
	"github.com/bits-grahate/hospital-management-system/internal/platform/lock"
	"github.com/bits-grahate/hospital-management-system/pkg/apperror"
	"github.com/bits-grahate/hospital-management-system/pkg/pagination"
)

// PatientDirectory resolves patients at the booking boundary.
type PatientDirectory interface {
	GetPatient(ctx context.Context, id uuid.UUID) (*clients.Patient, error)
}

// AvailabilityChecker decides whether a doctor can take a slot. It also
// resolves the doctor: an unknown doctor surfaces as NotFound.
type AvailabilityChecker interface {
	CheckAvailability(ctx context.Context, doctorID uuid.UUID, req *doctor.AvailabilityRequest) (*doctor.AvailabilityResult, error)
}

// TxRunner runs fn atomically. The production runner wraps fn in a database
// transaction; tests pass the function through.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// Service owns the appointment lifecycle state machine.
type Service struct {
	repo         Repository
	patients     PatientDirectory
	availability AvailabilityChecker
	locker       lock.Locker
	outbox       events.Emitter
	inTx         TxRunner
	now          func() time.Time
	logger       zerolog.Logger
}

func NewService(
	repo Repository,
	patients PatientDirectory,
	availability AvailabilityChecker,
	locker lock.Locker,
	outbox events.Emitter,
	inTx TxRunner,
	logger zerolog.Logger,
) *Service {
	return &Service{
		repo:         repo,
		patients:     patients,
		availability: availability,
		locker:       locker,
		outbox:       outbox,
		inTx:         inTx,
		now:          time.Now,
		logger:       logger,
	}
}

// WithClock overrides the service clock, for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Book creates a SCHEDULED appointment. Availability and overlap are
// validated under a doctor+patient lock so two concurrent bookings for
// overlapping windows cannot both pass the checks; the insert and the BOOKED
// outbox row commit in one transaction.
func (s *Service) Book(ctx context.Context, req *BookRequest) (*Appointment, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	p, err := s.patients.GetPatient(ctx, req.PatientID)
	if err != nil {
		if apperror.CodeOf(err) == apperror.CodeNotFound {
			return nil, apperror.NotFound("patient %s not found", req.PatientID)
		}
		return nil, err
	}
	if !p.Active {
		return nil, apperror.NotFound("patient %s is not active", req.PatientID)
	}

	if err := s.checkAvailable(ctx, req.DoctorID, req.Department, req.SlotStart, req.SlotEnd); err != nil {
		return nil, err
	}

	appt := &Appointment{
		PatientID:  req.PatientID,
		DoctorID:   req.DoctorID,
		Department: req.Department,
		SlotStart:  req.SlotStart,
		SlotEnd:    req.SlotEnd,
		Status:     StatusScheduled,
		Version:    1,
		CreatedAt:  s.now().UTC(),
	}

	keys := []string{lock.DoctorKey(req.DoctorID), lock.PatientKey(req.PatientID)}
	err = s.locker.WithLocks(ctx, keys, func(ctx context.Context) error {
		if err := s.checkOverlap(ctx, req.DoctorID, req.PatientID, req.SlotStart, req.SlotEnd, nil); err != nil {
			return err
		}
		return s.inTx(ctx, func(ctx context.Context) error {
			if err := s.repo.Create(ctx, appt); err != nil {
				return err
			}
			return s.emit(ctx, appt, events.TypeBooked)
		})
	})
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil, apperror.Conflict("slot is being booked by another request, retry")
		}
		return nil, err
	}

	s.logger.Info().
		Str("appointment_id", appt.ID.String()).
		Str("doctor_id", appt.DoctorID.String()).
		Time("slot_start", appt.SlotStart).
		Msg("appointment booked")
	return appt, nil
}

// Reschedule moves a SCHEDULED appointment to a new window. The check order
// is fixed: existence, reschedule cap, cutoff against the current slot, lead
// time of the new slot, time ordering, availability, then overlap under the
// lock.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, req *RescheduleRequest) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if appt.Status != StatusScheduled {
		return nil, apperror.InvalidState("cannot reschedule a %s appointment", appt.Status)
	}
	if appt.RescheduleCount >= MaxReschedules {
		return nil, apperror.LimitExceeded("appointment has already been rescheduled %d times", appt.RescheduleCount)
	}

	now := s.now()
	if now.After(appt.SlotStart.Add(-RescheduleCutoff)) {
		return nil, apperror.CutoffViolation("appointment starts within 1 hour and can no longer be rescheduled")
	}
	if req.SlotStart.Before(now.Add(MinLeadTime)) {
		return nil, apperror.LeadTimeViolation("new slot must start at least 2 hours from now")
	}
	if !req.SlotEnd.After(req.SlotStart) {
		return nil, apperror.Validation("slotEnd must be after slotStart")
	}

	if err := s.checkAvailable(ctx, appt.DoctorID, appt.Department, req.SlotStart, req.SlotEnd); err != nil {
		return nil, err
	}

	keys := []string{lock.DoctorKey(appt.DoctorID), lock.PatientKey(appt.PatientID)}
	err = s.locker.WithLocks(ctx, keys, func(ctx context.Context) error {
		if err := s.checkOverlap(ctx, appt.DoctorID, appt.PatientID, req.SlotStart, req.SlotEnd, &appt.ID); err != nil {
			return err
		}
		return s.inTx(ctx, func(ctx context.Context) error {
			if err := s.repo.UpdateSlot(ctx, appt.ID, req.SlotStart, req.SlotEnd, appt.RescheduleCount+1, appt.Version); err != nil {
				return err
			}
			appt.SlotStart = req.SlotStart
			appt.SlotEnd = req.SlotEnd
			appt.RescheduleCount++
			appt.Version++
			return s.emit(ctx, appt, events.TypeRescheduled)
		})
	})
	if err != nil {
		if errors.Is(err, lock.ErrNotAcquired) {
			return nil, apperror.Conflict("appointment is being modified by another request, retry")
		}
		return nil, err
	}

	s.logger.Info().
		Str("appointment_id", appt.ID.String()).
		Int("reschedule_count", appt.RescheduleCount).
		Time("slot_start", appt.SlotStart).
		Msg("appointment rescheduled")
	return appt, nil
}

// Cancel transitions a SCHEDULED appointment to CANCELLED.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusCancelled, events.TypeCancelled)
}

// Complete transitions a SCHEDULED appointment to COMPLETED.
func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusCompleted, events.TypeCompleted)
}

// MarkNoShow transitions a SCHEDULED appointment to NO_SHOW.
func (s *Service) MarkNoShow(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, id, StatusNoShow, events.TypeNoShow)
}

// transition applies the lifecycle state machine. The three terminal states
// are reachable only from SCHEDULED; any terminal-to-terminal move is
// rejected with InvalidState.
func (s *Service) transition(ctx context.Context, id uuid.UUID, to Status, eventType string) (*Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if appt.Status.terminal() {
		return nil, apperror.InvalidState("appointment is already %s", appt.Status)
	}

	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.repo.UpdateStatus(ctx, appt.ID, to, appt.Version); err != nil {
			return err
		}
		appt.Status = to
		appt.Version++
		return s.emit(ctx, appt, eventType)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("appointment_id", appt.ID.String()).
		Str("status", string(to)).
		Msg("appointment transitioned")
	return appt, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter, p pagination.Params) ([]Appointment, int, error) {
	return s.repo.List(ctx, f, p)
}

// CountByDoctorAndDate counts countable (SCHEDULED and COMPLETED)
// appointments whose slot starts on the given calendar date.
func (s *Service) CountByDoctorAndDate(ctx context.Context, doctorID uuid.UUID, date time.Time) (int, error) {
	return s.repo.CountByDoctorAndDate(ctx, doctorID, date)
}

// checkAvailable maps the availability checker's outcome onto the booking
// error taxonomy: unknown doctor stays NotFound, a department mismatch is a
// validation failure, and every other negative reason is SlotUnavailable.
func (s *Service) checkAvailable(ctx context.Context, doctorID uuid.UUID, department string, slotStart, slotEnd time.Time) error {
	res, err := s.availability.CheckAvailability(ctx, doctorID, &doctor.AvailabilityRequest{
		Department: department,
		SlotStart:  slotStart,
		SlotEnd:    slotEnd,
	})
	if err != nil {
		return err
	}
	if res.Available {
		return nil
	}
	if res.Reason == "department mismatch" {
		return apperror.Validation("doctor does not belong to department %s", department)
	}
	return apperror.SlotUnavailable("%s", res.Reason)
}

func (s *Service) checkOverlap(ctx context.Context, doctorID, patientID uuid.UUID, slotStart, slotEnd time.Time, excludeID *uuid.UUID) error {
	conflicts, err := s.repo.FindOverlappingForDoctor(ctx, doctorID, slotStart, slotEnd, excludeID)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		return apperror.SlotConflict("doctor already has an appointment in this window")
	}

	conflicts, err = s.repo.FindOverlappingForPatient(ctx, patientID, slotStart, slotEnd, excludeID)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		return apperror.SlotConflict("patient already has an appointment in this window")
	}
	return nil
}

func (s *Service) emit(ctx context.Context, appt *Appointment, eventType string) error {
	return s.outbox.Emit(ctx, &events.Event{
		AppointmentID: appt.ID,
		PatientID:     appt.PatientID,
		DoctorID:      appt.DoctorID,
		Type:          eventType,
		SlotStart:     appt.SlotStart,
		SlotEnd:       appt.SlotEnd,
		CorrelationID: correlation.FromContext(ctx),
	})
}

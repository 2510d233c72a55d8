package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/bits-grahate/hospital-management-system/internal/platform/events"
	"github.com/bits-grahate/hospital-management-system/pkg/apperror"
	"github.com/bits-grahate/hospital-management-system/pkg/pagination"
)

// SlotStartSource resolves an appointment's slot start, for cancellation
// fee tiering.
type SlotStartSource interface {
	GetSlotStart(ctx context.Context, appointmentID uuid.UUID) (time.Time, error)
}

// MedicationFeeSource resolves the medication fee charged on a completed
// appointment.
type MedicationFeeSource interface {
	MedicationFee(ctx context.Context, appointmentID uuid.UUID) (decimal.Decimal, error)
}

// TxRunner runs fn atomically. The production runner wraps fn in a database
// transaction; tests pass the function through.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// Service owns the bill state machine and the billing-event ingestion.
type Service struct {
	repo         Repository
	processed    ProcessedEventRepository
	appointments SlotStartSource
	pharmacy     MedicationFeeSource
	inTx         TxRunner
	now          func() time.Time
	logger       zerolog.Logger
}

func NewService(
	repo Repository,
	processed ProcessedEventRepository,
	appointments SlotStartSource,
	pharmacy MedicationFeeSource,
	inTx TxRunner,
	logger zerolog.Logger,
) *Service {
	return &Service{
		repo:         repo,
		processed:    processed,
		appointments: appointments,
		pharmacy:     pharmacy,
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

// ProcessEvent applies one appointment lifecycle event to the bill state
// machine. Processing is idempotent: each (appointment, eventType) pair is
// recorded in the same transaction as its effects, and a replay returns
// Conflict so the sender can mark it delivered without retrying.
func (s *Service) ProcessEvent(ctx context.Context, ev *IngestEvent) error {
	if ev.AppointmentID == uuid.Nil || ev.PatientID == uuid.Nil {
		return apperror.Validation("appointmentId and patientId are required")
	}

	switch ev.EventType {
	case events.TypeCompleted, events.TypeCancelled, events.TypeNoShow:
	default:
		return apperror.Validation("unsupported event type %q", ev.EventType)
	}

	return s.inTx(ctx, func(ctx context.Context) error {
		fresh, err := s.processed.MarkProcessed(ctx, ev.AppointmentID, ev.EventType)
		if err != nil {
			return err
		}
		if !fresh {
			s.logger.Info().
				Str("appointment_id", ev.AppointmentID.String()).
				Str("event_type", ev.EventType).
				Msg("replayed billing event ignored")
			return apperror.Conflict("event %s for appointment %s already processed",
				ev.EventType, ev.AppointmentID)
		}

		switch ev.EventType {
		case events.TypeCompleted:
			return s.handleCompleted(ctx, ev)
		case events.TypeCancelled:
			return s.handleCancelled(ctx, ev)
		default:
			return s.handleNoShow(ctx, ev)
		}
	})
}

func (s *Service) handleCompleted(ctx context.Context, ev *IngestEvent) error {
	_, err := s.repo.GetByAppointmentID(ctx, ev.AppointmentID)
	if err == nil {
		return apperror.Conflict("bill already exists for appointment %s", ev.AppointmentID)
	}
	if apperror.CodeOf(err) != apperror.CodeNotFound {
		return err
	}

	medFee, err := s.pharmacy.MedicationFee(ctx, ev.AppointmentID)
	if err != nil {
		s.logger.Warn().Err(err).
			Str("appointment_id", ev.AppointmentID.String()).
			Msg("medication fee lookup failed, using default")
		medFee = DefaultMedicationFee
	}

	tax := taxOn(ConsultationFee.Add(medFee))
	bill := &Bill{
		PatientID:       ev.PatientID,
		AppointmentID:   ev.AppointmentID,
		ConsultationFee: ConsultationFee,
		MedicationFee:   medFee,
		TaxAmount:       tax,
		TotalAmount:     ConsultationFee.Add(medFee).Add(tax),
		Status:          StatusOpen,
	}
	if err := s.repo.Create(ctx, bill); err != nil {
		return err
	}

	s.logger.Info().
		Str("bill_id", bill.ID.String()).
		Str("appointment_id", ev.AppointmentID.String()).
		Str("total", bill.TotalAmount.String()).
		Msg("bill created for completed appointment")
	return nil
}

func (s *Service) handleCancelled(ctx context.Context, ev *IngestEvent) error {
	now := s.now()

	slotStart, err := s.appointments.GetSlotStart(ctx, ev.AppointmentID)
	if err != nil {
		// Unknown start time: assume the slot is imminent so the
		// cancellation fee is never skipped by a lookup failure.
		s.logger.Warn().Err(err).
			Str("appointment_id", ev.AppointmentID.String()).
			Msg("slot start lookup failed, treating cancellation as late")
		slotStart = now.Add(time.Hour)
	}

	if slotStart.Sub(now) > CancellationFeeWindow {
		return s.cancelOutsideFeeWindow(ctx, ev)
	}
	return s.cancelInsideFeeWindow(ctx, ev)
}

// cancelOutsideFeeWindow handles cancellations more than 2h before the slot:
// no fee applies, so any open charge is voided and any paid charge is fully
// refunded.
func (s *Service) cancelOutsideFeeWindow(ctx context.Context, ev *IngestEvent) error {
	bill, err := s.repo.GetByAppointmentID(ctx, ev.AppointmentID)
	if apperror.CodeOf(err) == apperror.CodeNotFound {
		return nil
	}
	if err != nil {
		return err
	}

	switch bill.Status {
	case StatusOpen:
		bill.Status = StatusVoid
		if err := s.repo.Update(ctx, bill, StatusOpen); err != nil {
			return err
		}
		s.logger.Info().Str("bill_id", bill.ID.String()).Msg("open bill voided on cancellation")
		return nil
	case StatusPaid:
		return s.refund(ctx, bill, bill.TotalAmount, "cancellation >2h before start")
	default:
		return nil
	}
}

// cancelInsideFeeWindow handles cancellations within 2h of the slot: a fee
// of 50% of the consultation fee is retained.
func (s *Service) cancelInsideFeeWindow(ctx context.Context, ev *IngestEvent) error {
	fee := ConsultationFee.Mul(CancellationFeeRate)

	bill, err := s.repo.GetByAppointmentID(ctx, ev.AppointmentID)
	if apperror.CodeOf(err) == apperror.CodeNotFound {
		return s.createFeeBill(ctx, ev, fee)
	}
	if err != nil {
		return err
	}

	switch bill.Status {
	case StatusOpen:
		bill.ConsultationFee = fee
		bill.MedicationFee = decimal.Zero
		bill.TaxAmount = decimal.Zero
		bill.TotalAmount = fee
		if err := s.repo.Update(ctx, bill, StatusOpen); err != nil {
			return err
		}
		s.logger.Info().
			Str("bill_id", bill.ID.String()).
			Str("total", fee.String()).
			Msg("open bill reduced to cancellation fee")
		return nil
	case StatusPaid:
		refundable := bill.TotalAmount.Sub(fee)
		if refundable.IsPositive() {
			return s.refund(ctx, bill, refundable, "late cancellation, 50% fee retained")
		}
		// The paid amount does not cover the fee; the paid bill stays
		// untouched and the fee is raised separately.
		return s.createFeeBill(ctx, ev, fee)
	default:
		return s.createFeeBill(ctx, ev, fee)
	}
}

func (s *Service) handleNoShow(ctx context.Context, ev *IngestEvent) error {
	// A no-show always charges the full consultation fee, even when an
	// earlier bill exists for the appointment.
	bill := &Bill{
		PatientID:       ev.PatientID,
		AppointmentID:   ev.AppointmentID,
		ConsultationFee: ConsultationFee,
		MedicationFee:   decimal.Zero,
		TaxAmount:       decimal.Zero,
		TotalAmount:     ConsultationFee,
		Status:          StatusOpen,
	}
	if err := s.repo.Create(ctx, bill); err != nil {
		return err
	}
	s.logger.Info().
		Str("bill_id", bill.ID.String()).
		Str("appointment_id", ev.AppointmentID.String()).
		Msg("no-show fee bill created")
	return nil
}

func (s *Service) createFeeBill(ctx context.Context, ev *IngestEvent, fee decimal.Decimal) error {
	bill := &Bill{
		PatientID:       ev.PatientID,
		AppointmentID:   ev.AppointmentID,
		ConsultationFee: fee,
		MedicationFee:   decimal.Zero,
		TaxAmount:       decimal.Zero,
		TotalAmount:     fee,
		Status:          StatusOpen,
	}
	if err := s.repo.Create(ctx, bill); err != nil {
		return err
	}
	s.logger.Info().
		Str("bill_id", bill.ID.String()).
		Str("appointment_id", ev.AppointmentID.String()).
		Msg("cancellation fee bill created")
	return nil
}

// refund applies a refund to a PAID bill. A full refund moves the bill to
// REFUNDED; a partial one records the amount and leaves the bill PAID.
func (s *Service) refund(ctx context.Context, bill *Bill, amount decimal.Decimal, reason string) error {
	bill.RefundAmount = &amount
	bill.RefundReason = &reason
	if amount.Equal(bill.TotalAmount) {
		bill.Status = StatusRefunded
	}
	if err := s.repo.Update(ctx, bill, StatusPaid); err != nil {
		return err
	}
	s.logger.Info().
		Str("bill_id", bill.ID.String()).
		Str("amount", amount.String()).
		Str("reason", reason).
		Msg("refund processed")
	return nil
}

// VoidBill voids an OPEN bill.
func (s *Service) VoidBill(ctx context.Context, id uuid.UUID) (*Bill, error) {
	bill, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if bill.Status != StatusOpen {
		return nil, apperror.InvalidState("bill %s is %s, only OPEN bills can be voided", id, bill.Status)
	}
	bill.Status = StatusVoid
	if err := s.repo.Update(ctx, bill, StatusOpen); err != nil {
		return nil, err
	}
	return bill, nil
}

// MarkPaid marks an OPEN bill as paid.
func (s *Service) MarkPaid(ctx context.Context, id uuid.UUID) (*Bill, error) {
	bill, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if bill.Status != StatusOpen {
		return nil, apperror.InvalidState("bill %s is %s, only OPEN bills can be paid", id, bill.Status)
	}
	bill.Status = StatusPaid
	if err := s.repo.Update(ctx, bill, StatusOpen); err != nil {
		return nil, err
	}
	return bill, nil
}

// ProcessRefund refunds part or all of a PAID bill.
func (s *Service) ProcessRefund(ctx context.Context, id uuid.UUID, req *RefundRequest) (*Bill, error) {
	bill, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if bill.Status != StatusPaid {
		return nil, apperror.InvalidState("bill %s is %s, only PAID bills can be refunded", id, bill.Status)
	}
	if !req.Amount.IsPositive() {
		return nil, apperror.Validation("refund amount must be positive")
	}
	if req.Amount.GreaterThan(bill.TotalAmount) {
		return nil, apperror.Validation("refund amount %s exceeds bill total %s",
			req.Amount, bill.TotalAmount)
	}
	if err := s.refund(ctx, bill, req.Amount, req.Reason); err != nil {
		return nil, err
	}
	return bill, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Bill, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, p pagination.Params) ([]Bill, int, error) {
	return s.repo.List(ctx, p)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, p pagination.Params) ([]Bill, int, error) {
	return s.repo.ListByPatient(ctx, patientID, p)
}

package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the bill lifecycle state.
type Status string

const (
	StatusOpen     Status = "OPEN"
	StatusPaid     Status = "PAID"
	StatusVoid     Status = "VOID"
	StatusRefunded Status = "REFUNDED"
)

// Fee schedule. Amounts are fixed by the hospital's rate card.
var (
	// ConsultationFee is charged for every completed consultation.
	ConsultationFee = decimal.RequireFromString("500.00")
	// DefaultMedicationFee is used when the pharmacy lookup fails.
	DefaultMedicationFee = decimal.RequireFromString("200.00")
	// TaxRate applies to consultation plus medication.
	TaxRate = decimal.RequireFromString("0.05")
	// CancellationFeeRate applies to cancellations within the fee window.
	CancellationFeeRate = decimal.RequireFromString("0.5")
)

// CancellationFeeWindow is how close to the slot start a cancellation incurs
// the 50% fee.
const CancellationFeeWindow = 2 * time.Hour

// Bill is a charge raised against a patient for one appointment. A NO_SHOW
// fee bill may coexist with an earlier bill for the same appointment, so
// appointmentId is not unique across bills.
type Bill struct {
	ID              uuid.UUID        `json:"id"`
	PatientID       uuid.UUID        `json:"patientId"`
	AppointmentID   uuid.UUID        `json:"appointmentId"`
	ConsultationFee decimal.Decimal  `json:"consultationFee"`
	MedicationFee   decimal.Decimal  `json:"medicationFee"`
	TaxAmount       decimal.Decimal  `json:"taxAmount"`
	TotalAmount     decimal.Decimal  `json:"totalAmount"`
	Status          Status           `json:"status"`
	RefundAmount    *decimal.Decimal `json:"refundAmount,omitempty"`
	RefundReason    *string          `json:"refundReason,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
}

// IngestEvent is a lifecycle event received on the billing ingestion
// endpoint.
type IngestEvent struct {
	AppointmentID uuid.UUID `json:"appointmentId"`
	PatientID     uuid.UUID `json:"patientId"`
	EventType     string    `json:"eventType"`
	CorrelationID string    `json:"correlationId"`
}

// RefundRequest is the payload for refunding a paid bill.
type RefundRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

// taxOn computes the 5% tax on a fee base, rounded half-up to 2 decimals.
func taxOn(base decimal.Decimal) decimal.Decimal {
	return base.Mul(TaxRate).Round(2)
}

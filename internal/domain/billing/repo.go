package billing

import (
	"context"

	"github.com/google/uuid"

	"github.com/bits-grahate/hospital-management-system/pkg/pagination"
)

// Repository persists bills.
type Repository interface {
	Create(ctx context.Context, b *Bill) error
	GetByID(ctx context.Context, id uuid.UUID) (*Bill, error)
	// GetByAppointmentID returns the most recent bill for the appointment,
	// or NotFound when none exists.
	GetByAppointmentID(ctx context.Context, appointmentID uuid.UUID) (*Bill, error)
	List(ctx context.Context, p pagination.Params) ([]Bill, int, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, p pagination.Params) ([]Bill, int, error)
	// Update persists bill mutations, but only while the bill is still in
	// the expected status. A bill that transitioned concurrently surfaces
	// as InvalidState, so two requests racing the same OPEN bill cannot
	// both commit.
	Update(ctx context.Context, b *Bill, expected Status) error
}

// ProcessedEventRepository records which (appointment, eventType) pairs have
// already been handled, making event processing idempotent under the
// dispatcher's at-least-once delivery.
type ProcessedEventRepository interface {
	// MarkProcessed records the pair and reports whether it was newly
	// recorded. false means the event is a replay.
	MarkProcessed(ctx context.Context, appointmentID uuid.UUID, eventType string) (bool, error)
}

// Package events implements the appointment lifecycle event outbox. Events
// are inserted in the same transaction as the appointment mutation and later
// delivered by a polling dispatcher, so delivery failures never fail the
// originating operation and every event is delivered at least once.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Lifecycle event types.
const (
	TypeBooked      = "BOOKED"
	TypeRescheduled = "RESCHEDULED"
	TypeCancelled   = "CANCELLED"
	TypeCompleted   = "COMPLETED"
	TypeNoShow      = "NO_SHOW"
)

// Event is one appointment lifecycle event awaiting delivery.
type Event struct {
	ID            uuid.UUID  `json:"id"`
	AppointmentID uuid.UUID  `json:"appointmentId"`
	PatientID     uuid.UUID  `json:"patientId"`
	DoctorID      uuid.UUID  `json:"doctorId"`
	Type          string     `json:"eventType"`
	SlotStart     time.Time  `json:"slotStart"`
	SlotEnd       time.Time  `json:"slotEnd"`
	CorrelationID string     `json:"correlationId,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	DispatchedAt  *time.Time `json:"dispatchedAt,omitempty"`
}

// Repository stores outbox rows. Insert participates in the caller's
// transaction when one is present in the context.
type Repository interface {
	Insert(ctx context.Context, ev *Event) error
	ListUndispatched(ctx context.Context, limit int) ([]Event, error)
	MarkDispatched(ctx context.Context, id uuid.UUID) error
}

// Emitter is the narrow interface domain services use to record events.
type Emitter interface {
	Emit(ctx context.Context, ev *Event) error
}

// repoEmitter records events by inserting outbox rows.
type repoEmitter struct {
	repo Repository
}

func NewEmitter(repo Repository) Emitter {
	return &repoEmitter{repo: repo}
}

func (e *repoEmitter) Emit(ctx context.Context, ev *Event) error {
	return e.repo.Insert(ctx, ev)
}

package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/bits-grahate/hospital-management-system/pkg/pagination"
)

// Repository persists appointments. UpdateSlot and UpdateStatus carry the
// caller's version token and fail with Conflict when another writer got
// there first.
type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	List(ctx context.Context, f Filter, p pagination.Params) ([]Appointment, int, error)

	// UpdateSlot moves the appointment window and records the reschedule.
	UpdateSlot(ctx context.Context, id uuid.UUID, slotStart, slotEnd time.Time, rescheduleCount, version int) error
	// UpdateStatus applies a lifecycle transition.
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status, version int) error

	// FindOverlappingForDoctor returns the doctor's non-cancelled
	// appointments whose [slotStart, slotEnd) window intersects the given
	// half-open window. excludeID removes one appointment from
	// consideration, used when rescheduling.
	FindOverlappingForDoctor(ctx context.Context, doctorID uuid.UUID, slotStart, slotEnd time.Time, excludeID *uuid.UUID) ([]Appointment, error)
	FindOverlappingForPatient(ctx context.Context, patientID uuid.UUID, slotStart, slotEnd time.Time, excludeID *uuid.UUID) ([]Appointment, error)

	// CountByDoctorAndDate counts SCHEDULED and COMPLETED appointments
	// whose slotStart falls on the given calendar date.
	CountByDoctorAndDate(ctx context.Context, doctorID uuid.UUID, date time.Time) (int, error)
}

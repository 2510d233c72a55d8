// Package lock provides keyed mutual exclusion for booking-path critical
// sections. Bookings serialize on the doctor and patient calendars involved,
// so concurrent requests for the same doctor or patient cannot both pass the
// overlap checks.
package lock

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrNotAcquired is returned when a lock is already held by another request.
var ErrNotAcquired = errors.New("lock not acquired")

// Locker guards a critical section with one or more keyed locks. Keys are
// acquired in the order given; callers must always pass keys in the same
// order (doctor before patient) to avoid deadlock.
type Locker interface {
	WithLocks(ctx context.Context, keys []string, fn func(ctx context.Context) error) error
}

// DoctorKey returns the lock key serializing writes to a doctor's calendar.
func DoctorKey(doctorID uuid.UUID) string {
	return fmt.Sprintf("lock:doctor:%s", doctorID)
}

// PatientKey returns the lock key serializing writes to a patient's calendar.
func PatientKey(patientID uuid.UUID) string {
	return fmt.Sprintf("lock:patient:%s", patientID)
}

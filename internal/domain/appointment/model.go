package appointment

import (
	"time"

	"github.com/google/uuid"

	"github.com/bits-grahate/hospital-management-system/pkg/apperror"
)

// Status is the appointment lifecycle state.
type Status string

const (
	StatusScheduled Status = "SCHEDULED"
	StatusCancelled Status = "CANCELLED"
	StatusCompleted Status = "COMPLETED"
	StatusNoShow    Status = "NO_SHOW"
)

// MaxReschedules caps how often a single appointment may be moved.
const MaxReschedules = 2

// RescheduleCutoff is the window before the current slot start inside which
// an appointment can no longer be moved.
const RescheduleCutoff = time.Hour

// MinLeadTime is how far in the future a new slot must start.
const MinLeadTime = 2 * time.Hour

// terminal reports whether a status permits no further transitions.
func (s Status) terminal() bool {
	switch s {
	case StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

// Appointment is a booked slot on a doctor's and a patient's calendar. For
// any doctor, and independently for any patient, the non-cancelled
// appointments have pairwise disjoint [SlotStart, SlotEnd) windows.
type Appointment struct {
	ID              uuid.UUID `json:"id"`
	PatientID       uuid.UUID `json:"patientId"`
	DoctorID        uuid.UUID `json:"doctorId"`
	Department      string    `json:"department"`
	SlotStart       time.Time `json:"slotStart"`
	SlotEnd         time.Time `json:"slotEnd"`
	Status          Status    `json:"status"`
	RescheduleCount int       `json:"rescheduleCount"`
	Version         int       `json:"version"`
	CreatedAt       time.Time `json:"createdAt"`
}

// BookRequest is the payload for booking an appointment.
type BookRequest struct {
	PatientID  uuid.UUID `json:"patientId"`
	DoctorID   uuid.UUID `json:"doctorId"`
	Department string    `json:"department"`
	SlotStart  time.Time `json:"slotStart"`
	SlotEnd    time.Time `json:"slotEnd"`
}

func (r *BookRequest) validate() error {
	if r.PatientID == uuid.Nil {
		return apperror.Validation("patientId is required")
	}
	if r.DoctorID == uuid.Nil {
		return apperror.Validation("doctorId is required")
	}
	if r.SlotStart.IsZero() || r.SlotEnd.IsZero() {
		return apperror.Validation("slotStart and slotEnd are required")
	}
	if !r.SlotEnd.After(r.SlotStart) {
		return apperror.Validation("slotEnd must be after slotStart")
	}
	return nil
}

// RescheduleRequest is the payload for moving an appointment.
type RescheduleRequest struct {
	SlotStart time.Time `json:"slotStart"`
	SlotEnd   time.Time `json:"slotEnd"`
}

// Filter narrows appointment listings.
type Filter struct {
	PatientID *uuid.UUID
	DoctorID  *uuid.UUID
	Status    Status
}

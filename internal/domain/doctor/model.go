package doctor

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bits-grahate/hospital-management-system/pkg/apperror"
)

// Clinic operating hours. Slot starts outside [09:00, 18:00] are rejected by
// the availability checker.
const (
	ClinicOpenMinute  = 9 * 60
	ClinicCloseMinute = 18 * 60
)

// MinLeadTime is how far in advance a slot must start to be bookable.
const MinLeadTime = 2 * time.Hour

// Doctor is a practitioner in the directory.
type Doctor struct {
	ID             uuid.UUID `json:"id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	Phone          string    `json:"phone"`
	Department     string    `json:"department"`
	Specialization string    `json:"specialization"`
	Active         bool      `json:"active"`
	CreatedAt      time.Time `json:"createdAt"`
}

// CreateRequest is the payload for adding a doctor to the directory.
type CreateRequest struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Phone          string `json:"phone"`
	Department     string `json:"department"`
	Specialization string `json:"specialization"`
}

func (r *CreateRequest) validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return apperror.Validation("name is required")
	}
	if !strings.Contains(r.Email, "@") {
		return apperror.Validation("a valid email is required")
	}
	if strings.TrimSpace(r.Department) == "" {
		return apperror.Validation("department is required")
	}
	return nil
}

// Filter narrows doctor listings.
type Filter struct {
	Department     string
	Specialization string
}

// AvailabilityRequest asks whether a doctor can take a slot.
type AvailabilityRequest struct {
	Department string    `json:"department"`
	SlotStart  time.Time `json:"slotStart"`
	SlotEnd    time.Time `json:"slotEnd"`
}

// AvailabilityResult reports the outcome of an availability check. Reason is
// set when Available is false.
type AvailabilityResult struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

package patient

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bits-grahate/hospital-management-system/pkg/apperror"
)

// Patient is a registered patient record.
type Patient struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Phone     string     `json:"phone"`
	DOB       *time.Time `json:"dob,omitempty"`
	Active    bool       `json:"active"`
	CreatedAt time.Time  `json:"createdAt"`
}

// CreateRequest is the payload for registering a patient.
type CreateRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
	DOB   string `json:"dob"` // YYYY-MM-DD, optional
}

func (r *CreateRequest) validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return apperror.Validation("name is required")
	}
	if !strings.Contains(r.Email, "@") {
		return apperror.Validation("a valid email is required")
	}
	if strings.TrimSpace(r.Phone) == "" {
		return apperror.Validation("phone is required")
	}
	if r.DOB != "" {
		if _, err := time.Parse("2006-01-02", r.DOB); err != nil {
			return apperror.Validation("dob must be YYYY-MM-DD")
		}
	}
	return nil
}

// Filter narrows patient listings.
type Filter struct {
	Name  string
	Phone string
}

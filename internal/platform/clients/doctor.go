package clients

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/bits-grahate/hospital-management-system/internal/domain/doctor"
)

// DoctorClient checks slot availability against a remote doctor directory.
type DoctorClient struct {
	baseURL string
	hc      *http.Client
}

func NewDoctorClient(baseURL string, hc *http.Client) *DoctorClient {
	return &DoctorClient{baseURL: baseURL, hc: hc}
}

// GetDoctor fetches one doctor record. An unknown id maps to NotFound.
func (c *DoctorClient) GetDoctor(ctx context.Context, id uuid.UUID) (*doctor.Doctor, error) {
	url := fmt.Sprintf("%s/api/v1/doctors/%s", c.baseURL, id)
	req, err := newRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	var d doctor.Doctor
	if err := doJSON(c.hc, req, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// CheckAvailability asks the remote directory whether the doctor can take
// the slot. An unknown doctor maps to NotFound; an unreachable directory
// surfaces as DependencyUnavailable and aborts the booking.
func (c *DoctorClient) CheckAvailability(ctx context.Context, doctorID uuid.UUID, req *doctor.AvailabilityRequest) (*doctor.AvailabilityResult, error) {
	url := fmt.Sprintf("%s/api/v1/doctors/%s/check-availability", c.baseURL, doctorID)
	httpReq, err := newRequest(ctx, http.MethodPost, url, req)
	if err != nil {
		return nil, err
	}

	var result doctor.AvailabilityResult
	if err := doJSON(c.hc, httpReq, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

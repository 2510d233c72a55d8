package clients

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// Patient is the subset of the patient registry record the booking path needs.
type Patient struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Email  string    `json:"email"`
	Phone  string    `json:"phone"`
	Active bool      `json:"active"`
}

// PatientClient looks patients up in a remote patient registry.
type PatientClient struct {
	baseURL string
	hc      *http.Client
}

func NewPatientClient(baseURL string, hc *http.Client) *PatientClient {
	return &PatientClient{baseURL: baseURL, hc: hc}
}

func (c *PatientClient) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	url := fmt.Sprintf("%s/api/v1/patients/%s", c.baseURL, id)
	req, err := newRequest(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	var p Patient
	if err := doJSON(c.hc, req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

package clients

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PharmacyClient fetches the dispensed-medication charge for an appointment
// from the pharmacy service. Billing treats failures as "no medication fee"
// rather than blocking the bill.
type PharmacyClient struct {
	baseURL string
	hc      *http.Client
}

func NewPharmacyClient(baseURL string, hc *http.Client) *PharmacyClient {
	return &PharmacyClient{baseURL: baseURL, hc: hc}
}

func (c *PharmacyClient) MedicationFee(ctx context.Context, appointmentID uuid.UUID) (decimal.Decimal, error) {
	u := fmt.Sprintf("%s/api/v1/medication-fees/%s", c.baseURL, appointmentID)
	req, err := newRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return decimal.Zero, err
	}

	var body struct {
		Fee decimal.Decimal `json:"fee"`
	}
	if err := doJSON(c.hc, req, &body); err != nil {
		return decimal.Zero, err
	}
	return body.Fee, nil
}

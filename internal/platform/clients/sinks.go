package clients

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// BillingEvent is the payload the billing ingestion endpoint accepts.
type BillingEvent struct {
	AppointmentID uuid.UUID `json:"appointmentId"`
	PatientID     uuid.UUID `json:"patientId"`
	EventType     string    `json:"eventType"`
	CorrelationID string    `json:"correlationId,omitempty"`
}

// BillingClient delivers lifecycle events to the billing ingestion endpoint.
type BillingClient struct {
	baseURL string
	hc      *http.Client
}

func NewBillingClient(baseURL string, hc *http.Client) *BillingClient {
	return &BillingClient{baseURL: baseURL, hc: hc}
}

func (c *BillingClient) PostEvent(ctx context.Context, ev BillingEvent) error {
	req, err := newRequest(ctx, http.MethodPost, c.baseURL+"/api/v1/billing-events", ev)
	if err != nil {
		return err
	}
	return doJSON(c.hc, req, nil)
}

// NotificationClient posts event payloads to the notification sink.
type NotificationClient struct {
	url string
	hc  *http.Client
}

func NewNotificationClient(url string, hc *http.Client) *NotificationClient {
	return &NotificationClient{url: url, hc: hc}
}

func (c *NotificationClient) Notify(ctx context.Context, payload interface{}) error {
	req, err := newRequest(ctx, http.MethodPost, c.url, payload)
	if err != nil {
		return err
	}
	return doJSON(c.hc, req, nil)
}

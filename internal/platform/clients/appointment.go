package clients

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// AppointmentClient reads appointment data from a remote appointment service.
// Billing uses it to resolve slot times, and the availability checker uses it
// to count a doctor's bookings for a day.
type AppointmentClient struct {
	baseURL string
	hc      *http.Client
}

func NewAppointmentClient(baseURL string, hc *http.Client) *AppointmentClient {
	return &AppointmentClient{baseURL: baseURL, hc: hc}
}

// GetSlotStart returns the slot start time of the appointment.
func (c *AppointmentClient) GetSlotStart(ctx context.Context, appointmentID uuid.UUID) (time.Time, error) {
	u := fmt.Sprintf("%s/api/v1/appointments/%s", c.baseURL, appointmentID)
	req, err := newRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return time.Time{}, err
	}

	var body struct {
		SlotStart time.Time `json:"slotStart"`
	}
	if err := doJSON(c.hc, req, &body); err != nil {
		return time.Time{}, err
	}
	return body.SlotStart, nil
}

// CountByDoctorAndDate returns how many countable appointments the doctor has
// on the given calendar date.
func (c *AppointmentClient) CountByDoctorAndDate(ctx context.Context, doctorID uuid.UUID, date time.Time) (int, error) {
	u := fmt.Sprintf("%s/api/v1/appointments/doctor/%s/count?date=%s",
		c.baseURL, doctorID, url.QueryEscape(date.Format("2006-01-02")))
	req, err := newRequest(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}

	var body struct {
		Count int `json:"count"`
	}
	if err := doJSON(c.hc, req, &body); err != nil {
		return 0, err
	}
	return body.Count, nil
}

// Package httpx holds the shared HTTP error responder used by all handlers.
package httpx

import (
	"github.com/labstack/echo/v4"

	"github.com/bits-grahate/hospital-management-system/pkg/apperror"
)

// Error serializes a service failure as {"code", "message", "correlationId"}
// with the status the taxonomy assigns to its code. Plain errors are not
// leaked to clients; they surface as a generic internal error.
func Error(c echo.Context, err error) error {
	ae := apperror.As(err)
	if ae == nil {
		ae = apperror.Internal("internal server error")
	}

	// Shallow copy so the correlation id never leaks between requests.
	body := *ae
	if body.CorrelationID == "" {
		body.CorrelationID, _ = c.Get("request_id").(string)
	}

	return c.JSON(apperror.HTTPStatus(body.Code), &body)
}

package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/bits-grahate/hospital-management-system/internal/platform/correlation"
)

// RequestIDHeader is the header carrying the request correlation identifier.
const RequestIDHeader = "X-Request-ID"

// RequestID returns middleware that assigns a correlation identifier to each
// request. An identifier supplied by the caller in X-Request-ID is preserved;
// otherwise a new UUID is generated. The identifier is stored on the echo
// context under "request_id" and echoed back in the response header so that
// callers can correlate their requests with server logs and downstream calls.
func RequestID() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rid := c.Request().Header.Get(RequestIDHeader)
			if rid == "" {
				rid = uuid.NewString()
			}

			c.Set("request_id", rid)
			c.Response().Header().Set(RequestIDHeader, rid)

			req := c.Request()
			c.SetRequest(req.WithContext(correlation.WithID(req.Context(), rid)))

			return next(c)
		}
	}
}

package appointment

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/bits-grahate/hospital-management-system/internal/platform/httpx"
	"github.com/bits-grahate/hospital-management-system/pkg/apperror"
	"github.com/bits-grahate/hospital-management-system/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.POST("/appointments", h.Book)
	api.GET("/appointments", h.List)
	api.GET("/appointments/:id", h.Get)
	api.PUT("/appointments/:id/reschedule", h.Reschedule)
	api.PUT("/appointments/:id/cancel", h.Cancel)
	api.PUT("/appointments/:id/complete", h.Complete)
	api.PUT("/appointments/:id/no-show", h.MarkNoShow)
	api.GET("/appointments/doctor/:id/count", h.CountByDoctorAndDate)
}

func (h *Handler) Book(c echo.Context) error {
	var req BookRequest
	if err := c.Bind(&req); err != nil {
		return httpx.Error(c, apperror.Validation("invalid request body"))
	}

	appt, err := h.svc.Book(c.Request().Context(), &req)
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.JSON(http.StatusCreated, appt)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httpx.Error(c, apperror.Validation("invalid appointment id"))
	}

	appt, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) List(c echo.Context) error {
	var f Filter
	if v := c.QueryParam("patientId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return httpx.Error(c, apperror.Validation("invalid patientId"))
		}
		f.PatientID = &id
	}
	if v := c.QueryParam("doctorId"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			return httpx.Error(c, apperror.Validation("invalid doctorId"))
		}
		f.DoctorID = &id
	}
	f.Status = Status(c.QueryParam("status"))

	params := pagination.FromContext(c)
	appts, total, err := h.svc.List(c.Request().Context(), f, params)
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(appts, total, params.Limit, params.Offset))
}

func (h *Handler) Reschedule(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httpx.Error(c, apperror.Validation("invalid appointment id"))
	}

	var req RescheduleRequest
	if err := c.Bind(&req); err != nil {
		return httpx.Error(c, apperror.Validation("invalid request body"))
	}
	if req.SlotStart.IsZero() || req.SlotEnd.IsZero() {
		return httpx.Error(c, apperror.Validation("slotStart and slotEnd are required"))
	}

	appt, err := h.svc.Reschedule(c.Request().Context(), id, &req)
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) Cancel(c echo.Context) error {
	return h.transition(c, h.svc.Cancel)
}

func (h *Handler) Complete(c echo.Context) error {
	return h.transition(c, h.svc.Complete)
}

func (h *Handler) MarkNoShow(c echo.Context) error {
	return h.transition(c, h.svc.MarkNoShow)
}

func (h *Handler) transition(c echo.Context, op func(ctx context.Context, id uuid.UUID) (*Appointment, error)) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httpx.Error(c, apperror.Validation("invalid appointment id"))
	}

	appt, err := op(c.Request().Context(), id)
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.JSON(http.StatusOK, appt)
}

func (h *Handler) CountByDoctorAndDate(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httpx.Error(c, apperror.Validation("invalid doctor id"))
	}

	date, err := time.Parse("2006-01-02", c.QueryParam("date"))
	if err != nil {
		return httpx.Error(c, apperror.Validation("date must be YYYY-MM-DD"))
	}

	count, err := h.svc.CountByDoctorAndDate(c.Request().Context(), id, date)
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.JSON(http.StatusOK, map[string]int{"count": count})
}

package billing

import (
	"context"
	"net/http"

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
	api.POST("/billing-events", h.IngestEvent)
	api.GET("/bills", h.List)
	api.GET("/bills/:id", h.Get)
	api.GET("/bills/patient/:patientId", h.ListByPatient)
	api.PUT("/bills/:id/void", h.Void)
	api.PUT("/bills/:id/paid", h.MarkPaid)
	api.POST("/bills/:id/refund", h.Refund)
}

func (h *Handler) IngestEvent(c echo.Context) error {
	var ev IngestEvent
	if err := c.Bind(&ev); err != nil {
		return httpx.Error(c, apperror.Validation("invalid request body"))
	}

	if err := h.svc.ProcessEvent(c.Request().Context(), &ev); err != nil {
		return httpx.Error(c, err)
	}
	return c.JSON(http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httpx.Error(c, apperror.Validation("invalid bill id"))
	}

	bill, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.JSON(http.StatusOK, bill)
}

func (h *Handler) List(c echo.Context) error {
	params := pagination.FromContext(c)
	bills, total, err := h.svc.List(c.Request().Context(), params)
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(bills, total, params.Limit, params.Offset))
}

func (h *Handler) ListByPatient(c echo.Context) error {
	patientID, err := uuid.Parse(c.Param("patientId"))
	if err != nil {
		return httpx.Error(c, apperror.Validation("invalid patient id"))
	}

	params := pagination.FromContext(c)
	bills, total, err := h.svc.ListByPatient(c.Request().Context(), patientID, params)
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(bills, total, params.Limit, params.Offset))
}

func (h *Handler) Void(c echo.Context) error {
	return h.transition(c, h.svc.VoidBill)
}

func (h *Handler) MarkPaid(c echo.Context) error {
	return h.transition(c, h.svc.MarkPaid)
}

func (h *Handler) Refund(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httpx.Error(c, apperror.Validation("invalid bill id"))
	}

	var req RefundRequest
	if err := c.Bind(&req); err != nil {
		return httpx.Error(c, apperror.Validation("invalid request body"))
	}

	bill, err := h.svc.ProcessRefund(c.Request().Context(), id, &req)
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.JSON(http.StatusOK, bill)
}

func (h *Handler) transition(c echo.Context, op func(ctx context.Context, id uuid.UUID) (*Bill, error)) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httpx.Error(c, apperror.Validation("invalid bill id"))
	}

	bill, err := op(c.Request().Context(), id)
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.JSON(http.StatusOK, bill)
}

package doctor

import (
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
	api.POST("/doctors", h.Create)
	api.GET("/doctors", h.List)
	api.GET("/doctors/:id", h.Get)
	api.GET("/departments", h.ListDepartments)
	api.GET("/specializations", h.ListSpecializations)
	api.POST("/doctors/:id/check-availability", h.CheckAvailability)
}

func (h *Handler) Create(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return httpx.Error(c, apperror.Validation("invalid request body"))
	}

	d, err := h.svc.Create(c.Request().Context(), &req)
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httpx.Error(c, apperror.Validation("invalid doctor id"))
	}

	d, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) List(c echo.Context) error {
	f := Filter{
		Department:     c.QueryParam("department"),
		Specialization: c.QueryParam("specialization"),
	}

	params := pagination.FromContext(c)
	doctors, total, err := h.svc.List(c.Request().Context(), f, params)
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(doctors, total, params.Limit, params.Offset))
}

func (h *Handler) ListDepartments(c echo.Context) error {
	departments, err := h.svc.ListDepartments(c.Request().Context())
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"departments": departments})
}

func (h *Handler) ListSpecializations(c echo.Context) error {
	specializations, err := h.svc.ListSpecializations(c.Request().Context(), c.QueryParam("department"))
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"specializations": specializations})
}

func (h *Handler) CheckAvailability(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httpx.Error(c, apperror.Validation("invalid doctor id"))
	}

	var req AvailabilityRequest
	if err := c.Bind(&req); err != nil {
		return httpx.Error(c, apperror.Validation("invalid request body"))
	}
	if req.SlotStart.IsZero() {
		return httpx.Error(c, apperror.Validation("slotStart is required"))
	}

	result, err := h.svc.CheckAvailability(c.Request().Context(), id, &req)
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.JSON(http.StatusOK, result)
}

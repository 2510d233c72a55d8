package patient

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
	api.POST("/patients", h.Create)
	api.GET("/patients", h.List)
	api.GET("/patients/:id", h.Get)
	api.DELETE("/patients/:id", h.Deactivate)
}

func (h *Handler) Create(c echo.Context) error {
	var req CreateRequest
	if err := c.Bind(&req); err != nil {
		return httpx.Error(c, apperror.Validation("invalid request body"))
	}

	p, err := h.svc.Create(c.Request().Context(), &req)
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httpx.Error(c, apperror.Validation("invalid patient id"))
	}

	p, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) List(c echo.Context) error {
	f := Filter{
		Name:  c.QueryParam("name"),
		Phone: c.QueryParam("phone"),
	}

	params := pagination.FromContext(c)
	patients, total, err := h.svc.List(c.Request().Context(), f, params)
	if err != nil {
		return httpx.Error(c, err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(patients, total, params.Limit, params.Offset))
}

func (h *Handler) Deactivate(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return httpx.Error(c, apperror.Validation("invalid patient id"))
	}

	if err := h.svc.Deactivate(c.Request().Context(), id); err != nil {
		return httpx.Error(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

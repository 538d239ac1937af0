package audit

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/bloodbank/bloodbank/internal/platform/httperr"
)

// Handler exposes the audit trail read-only.
type Handler struct {
	log Log
}

func NewHandler(log Log) *Handler {
	return &Handler{log: log}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/audit", h.Recent)
	api.GET("/audit/units/:id", h.ByUnit)
}

func limitParam(c echo.Context) int {
	n, _ := strconv.Atoi(c.QueryParam("limit"))
	return n
}

// Recent returns up to ?limit= records, newest first, capped at 100.
func (h *Handler) Recent(c echo.Context) error {
	items, err := h.log.Recent(c.Request().Context(), limitParam(c))
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, items)
}

func (h *Handler) ByUnit(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	ctx := c.Request().Context()
	items, err := h.log.ListByUnit(ctx, id, limitParam(c))
	if err != nil {
		return httperr.From(err)
	}
	total, err := h.log.CountByUnit(ctx, id)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"data": items, "total": total})
}

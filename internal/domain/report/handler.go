package report

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/bloodbank/bloodbank/internal/platform/httperr"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/reports")
	g.GET("/compatibility/:group", h.Compatibility)
	g.GET("/inventory", h.Inventory)
	g.GET("/inventory/value", h.TotalValue)
	g.GET("/banks", h.BankStatus)
	g.GET("/donors/:id/history", h.DonorHistory)
	g.GET("/patients/critical", h.CriticalPatients)
	g.GET("/patients/:id/urgency", h.PatientUrgency)
	g.GET("/trends", h.Trends)
	g.GET("/overview", h.Overview)
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

// Compatibility takes the group in the path; "+" may arrive unescaped as a
// space.
func (h *Handler) Compatibility(c echo.Context) error {
	group := strings.ReplaceAll(c.Param("group"), " ", "+")
	rows, err := h.svc.Compatibility(c.Request().Context(), group)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, rows)
}

func (h *Handler) Inventory(c echo.Context) error {
	rows, err := h.svc.Inventory(c.Request().Context())
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, rows)
}

func (h *Handler) TotalValue(c echo.Context) error {
	v, err := h.svc.TotalValue(c.Request().Context())
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"total_value": v.StringFixed(2), "currency": "INR"})
}

func (h *Handler) BankStatus(c echo.Context) error {
	rows, err := h.svc.BankStatus(c.Request().Context())
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, rows)
}

func (h *Handler) DonorHistory(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	hist, err := h.svc.DonorHistory(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, hist)
}

// CriticalPatients accepts ?threshold= to override the configured cut-off.
func (h *Handler) CriticalPatients(c echo.Context) error {
	threshold := 0
	if v := c.QueryParam("threshold"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "threshold must be an integer")
		}
		threshold = n
	}
	rows, err := h.svc.CriticalPatients(c.Request().Context(), threshold)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, rows)
}

func (h *Handler) PatientUrgency(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	pp, err := h.svc.PatientUrgency(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, pp)
}

func (h *Handler) Trends(c echo.Context) error {
	t, err := h.svc.Trends(c.Request().Context())
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, t)
}

func (h *Handler) Overview(c echo.Context) error {
	o, err := h.svc.Overview(c.Request().Context())
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, o)
}

package scoring

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/bloodbank/bloodbank/internal/domain/inventory"
	"github.com/bloodbank/bloodbank/internal/platform/apperr"
	"github.com/bloodbank/bloodbank/internal/platform/httperr"
)

// Handler exposes each scoring function as a read-only endpoint.
type Handler struct{}

func NewHandler() *Handler { return &Handler{} }

func (h *Handler) RegisterRoutes(api *echo.Group) {
	g := api.Group("/scoring")
	g.GET("/compatibility", h.Compatibility)
	g.GET("/risk", h.Risk)
	g.GET("/value", h.Value)
	g.GET("/priority", h.Priority)
}

// groupParam reads a blood group from the query string. An unescaped "+"
// arrives as a space, so "A " is read back as "A+".
func groupParam(c echo.Context, name string) (inventory.BloodGroup, error) {
	raw := strings.ReplaceAll(c.QueryParam(name), " ", "+")
	return inventory.ParseBloodGroup(raw)
}

func intParam(c echo.Context, name string) (int, error) {
	v, err := strconv.Atoi(c.QueryParam(name))
	if err != nil {
		return 0, apperr.InvalidArgument("%s must be an integer", name)
	}
	return v, nil
}

func (h *Handler) Compatibility(c echo.Context) error {
	donor, err := groupParam(c, "donor")
	if err != nil {
		return httperr.From(err)
	}
	recipient, err := groupParam(c, "recipient")
	if err != nil {
		return httperr.From(err)
	}
	score, err := CompatibilityScore(donor, recipient)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"donor":             donor,
		"recipient":         recipient,
		"score":             score,
		"compatible_donors": CompatibleDonors(recipient),
	})
}

func (h *Handler) Risk(c echo.Context) error {
	age, err := intParam(c, "age")
	if err != nil {
		return httperr.From(err)
	}
	level, err := DonorRiskLevel(age, c.QueryParam("disease"))
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"age": age, "risk_level": level})
}

func (h *Handler) Value(c echo.Context) error {
	kind, err := inventory.ParseKind(c.QueryParam("kind"))
	if err != nil {
		return httperr.From(err)
	}
	qty, err := intParam(c, "quantity")
	if err != nil {
		return httperr.From(err)
	}
	subtype := c.QueryParam("subtype")
	if kind == inventory.KindBlood {
		subtype = strings.ReplaceAll(subtype, " ", "+")
	}
	value, err := InventoryValue(kind, qty, subtype)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"kind":     kind,
		"subtype":  subtype,
		"quantity": qty,
		"value":    value.StringFixed(2),
		"currency": "INR",
	})
}

func (h *Handler) Priority(c echo.Context) error {
	days, err := intParam(c, "days_waiting")
	if err != nil {
		return httperr.From(err)
	}
	group, err := groupParam(c, "blood_group")
	if err != nil {
		return httperr.From(err)
	}
	units, err := intParam(c, "compatible_units")
	if err != nil {
		return httperr.From(err)
	}
	p, err := PatientPriority(days, group, units)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"priority": p})
}

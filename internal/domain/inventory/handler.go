package inventory

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/bloodbank/bloodbank/internal/platform/apperr"
	"github.com/bloodbank/bloodbank/internal/platform/httperr"
)

// Defaults are the banks used when a request names none.
type Defaults struct {
	BloodBankID uuid.UUID
	OrganBankID uuid.UUID
}

func (d Defaults) bankFor(k Kind) uuid.UUID {
	if k == KindOrgan {
		return d.OrganBankID
	}
	return d.BloodBankID
}

type Handler struct {
	svc      *Service
	defaults Defaults
}

func NewHandler(svc *Service, defaults Defaults) *Handler {
	return &Handler{svc: svc, defaults: defaults}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/banks", h.ListBanks)
	api.POST("/banks", h.CreateBank)
	api.GET("/banks/:id", h.GetBank)
	api.POST("/banks/:id/initialize", h.InitializeBaseline)

	api.GET("/inventory", h.GetInventory)
	api.POST("/inventory", h.CreateUnit)
	api.POST("/inventory/find-or-create", h.FindOrCreateUnit)
	api.GET("/inventory/:id", h.GetUnit)
}

type createBankRequest struct {
	Name     string `json:"name" validate:"required"`
	Location string `json:"location"`
	Kind     string `json:"kind" validate:"required,oneof=blood_bank organ_bank"`
}

type unitRequest struct {
	Kind      string `json:"kind" validate:"required,oneof=blood organ"`
	Subtype   string `json:"subtype" validate:"required"`
	Condition string `json:"condition"`
	BankID    string `json:"bank_id"`
}

func parseID(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func (h *Handler) CreateBank(c echo.Context) error {
	var req createBankRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return httperr.From(err)
	}
	b := &Bank{Name: req.Name, Location: req.Location, Kind: BankKind(req.Kind)}
	if err := h.svc.CreateBank(c.Request().Context(), b); err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusCreated, b)
}

func (h *Handler) GetBank(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	b, err := h.svc.GetBank(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, b)
}

func (h *Handler) ListBanks(c echo.Context) error {
	banks, err := h.svc.ListBanks(c.Request().Context())
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, banks)
}

func (h *Handler) InitializeBaseline(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	units, err := h.svc.InitializeBaselineInventory(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, units)
}

// GetInventory supports ?kind=, ?subtype=, ?bank_id= and ?in_stock=true.
func (h *Handler) GetInventory(c echo.Context) error {
	var f Filter
	if k := c.QueryParam("kind"); k != "" {
		kind, err := ParseKind(k)
		if err != nil {
			return httperr.From(err)
		}
		f.Kind = kind
	}
	f.Subtype = c.QueryParam("subtype")
	if b := c.QueryParam("bank_id"); b != "" {
		id, err := uuid.Parse(b)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid bank_id")
		}
		f.BankID = id
	}
	f.InStockOnly, _ = strconv.ParseBool(c.QueryParam("in_stock"))

	units, err := h.svc.GetInventory(c.Request().Context(), f)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, units)
}

func (h *Handler) GetUnit(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	u, err := h.svc.GetUnit(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) bindKey(c echo.Context) (UnitKey, error) {
	var req unitRequest
	if err := c.Bind(&req); err != nil {
		return UnitKey{}, echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return UnitKey{}, httperr.From(err)
	}
	kind, err := ParseKind(req.Kind)
	if err != nil {
		return UnitKey{}, httperr.From(err)
	}
	bankID := h.defaults.bankFor(kind)
	if req.BankID != "" {
		if bankID, err = uuid.Parse(req.BankID); err != nil {
			return UnitKey{}, echo.NewHTTPError(http.StatusBadRequest, "invalid bank_id")
		}
	}
	if bankID == uuid.Nil {
		return UnitKey{}, httperr.From(apperr.InvalidArgument("bank_id is required: no default %s bank is configured", kind))
	}
	key, err := NewUnitKey(kind, req.Subtype, req.Condition, bankID)
	if err != nil {
		return UnitKey{}, httperr.From(err)
	}
	return key, nil
}

func (h *Handler) CreateUnit(c echo.Context) error {
	key, err := h.bindKey(c)
	if err != nil {
		return err
	}
	u, err := h.svc.CreateUnit(c.Request().Context(), key)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusCreated, u)
}

func (h *Handler) FindOrCreateUnit(c echo.Context) error {
	key, err := h.bindKey(c)
	if err != nil {
		return err
	}
	u, err := h.svc.FindOrCreateUnit(c.Request().Context(), key)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, u)
}

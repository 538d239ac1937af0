package donation

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/bloodbank/bloodbank/internal/platform/httperr"
	"github.com/bloodbank/bloodbank/pkg/pagination"
)

type Handler struct {
	coord *Coordinator
}

func NewHandler(coord *Coordinator) *Handler {
	return &Handler{coord: coord}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/donations", h.List)
	api.POST("/donations", h.Create)
	api.GET("/donations/:id", h.Get)
	api.DELETE("/donations/:id", h.Delete)
	api.POST("/inventory/:id/restock", h.Restock)
}

type createRequest struct {
	BloodUnitID *uuid.UUID `json:"blood_unit_id"`
	OrganUnitID *uuid.UUID `json:"organ_unit_id"`
	Quantity    int        `json:"quantity"`
	DonorID     *uuid.UUID `json:"donor_id"`
	PatientID   *uuid.UUID `json:"patient_id"`
	Notes       string     `json:"notes"`
	Date        *time.Time `json:"date"`
}

type restockRequest struct {
	Quantity int    `json:"quantity"`
	Note     string `json:"note"`
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func optionalID(c echo.Context, name string) (*uuid.UUID, error) {
	v := c.QueryParam(name)
	if v == "" {
		return nil, nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name)
	}
	return &id, nil
}

func (h *Handler) Create(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	target, err := TargetFromIDs(req.BloodUnitID, req.OrganUnitID)
	if err != nil {
		return httperr.From(err)
	}
	r := Request{
		Target:    target,
		Quantity:  req.Quantity,
		DonorID:   req.DonorID,
		PatientID: req.PatientID,
		Notes:     req.Notes,
	}
	if req.Date != nil {
		r.Date = *req.Date
	}
	ev, err := h.coord.CreateDonation(c.Request().Context(), r)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusCreated, ev)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ev, err := h.coord.GetDonation(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, ev)
}

// List supports ?donor_id=, ?patient_id=, ?unit_id= and limit/offset paging.
func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)
	p := ListParams{Limit: pg.Limit, Offset: pg.Offset}
	var err error
	if p.DonorID, err = optionalID(c, "donor_id"); err != nil {
		return err
	}
	if p.PatientID, err = optionalID(c, "patient_id"); err != nil {
		return err
	}
	if p.UnitID, err = optionalID(c, "unit_id"); err != nil {
		return err
	}
	items, total, err := h.coord.ListDonations(c.Request().Context(), p)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.coord.DeleteDonation(c.Request().Context(), id); err != nil {
		return httperr.From(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Restock(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req restockRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	u, err := h.coord.Restock(c.Request().Context(), id, req.Quantity, req.Note)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, u)
}

package registry

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/bloodbank/bloodbank/internal/domain/inventory"
	"github.com/bloodbank/bloodbank/internal/platform/httperr"
	"github.com/bloodbank/bloodbank/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/donors", h.ListDonors)
	api.POST("/donors", h.CreateDonor)
	api.GET("/donors/:id", h.GetDonor)
	api.PUT("/donors/:id", h.UpdateDonor)
	api.DELETE("/donors/:id", h.DeleteDonor)

	api.GET("/patients", h.ListPatients)
	api.POST("/patients", h.CreatePatient)
	api.GET("/patients/:id", h.GetPatient)
	api.PUT("/patients/:id", h.UpdatePatient)
	api.DELETE("/patients/:id", h.DeletePatient)
}

type personRequest struct {
	Name       string `json:"name" validate:"required"`
	Age        int    `json:"age" validate:"min=0,max=130"`
	Gender     string `json:"gender" validate:"omitempty,oneof=Male Female Other"`
	BloodGroup string `json:"blood_group" validate:"required"`
	Address    string `json:"address"`
	Contact    string `json:"contact"`
}

type donorRequest struct {
	personRequest
	DiseaseHistory *string `json:"disease_history"`
}

func (r donorRequest) donor() *Donor {
	return &Donor{
		Name:           r.Name,
		Age:            r.Age,
		Gender:         r.Gender,
		BloodGroup:     inventory.BloodGroup(r.BloodGroup),
		Address:        r.Address,
		Contact:        r.Contact,
		DiseaseHistory: r.DiseaseHistory,
	}
}

type patientRequest struct {
	personRequest
	IntakeDate *time.Time `json:"intake_date"`
}

func (r patientRequest) patient() *Patient {
	p := &Patient{
		Name:       r.Name,
		Age:        r.Age,
		Gender:     r.Gender,
		BloodGroup: inventory.BloodGroup(r.BloodGroup),
		Address:    r.Address,
		Contact:    r.Contact,
	}
	if r.IntakeDate != nil {
		p.IntakeDate = *r.IntakeDate
	}
	return p
}

func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	return id, nil
}

func listParams(c echo.Context) ListParams {
	p := pagination.FromContext(c)
	return ListParams{Name: c.QueryParam("name"), Limit: p.Limit, Offset: p.Offset}
}

func (h *Handler) CreateDonor(c echo.Context) error {
	var req donorRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return httperr.From(err)
	}
	d := req.donor()
	if err := h.svc.CreateDonor(c.Request().Context(), d); err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusCreated, d)
}

func (h *Handler) GetDonor(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	d, err := h.svc.GetDonor(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) UpdateDonor(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req donorRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return httperr.From(err)
	}
	d := req.donor()
	d.ID = id
	if err := h.svc.UpdateDonor(c.Request().Context(), d); err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (h *Handler) DeleteDonor(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteDonor(c.Request().Context(), id); err != nil {
		return httperr.From(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListDonors(c echo.Context) error {
	p := listParams(c)
	items, total, err := h.svc.ListDonors(c.Request().Context(), p)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
}

func (h *Handler) CreatePatient(c echo.Context) error {
	var req patientRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return httperr.From(err)
	}
	p := req.patient()
	if err := h.svc.CreatePatient(c.Request().Context(), p); err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) GetPatient(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	p, err := h.svc.GetPatient(c.Request().Context(), id)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdatePatient(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	var req patientRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return httperr.From(err)
	}
	p := req.patient()
	p.ID = id
	if err := h.svc.UpdatePatient(c.Request().Context(), p); err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) DeletePatient(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeletePatient(c.Request().Context(), id); err != nil {
		return httperr.From(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) ListPatients(c echo.Context) error {
	p := listParams(c)
	items, total, err := h.svc.ListPatients(c.Request().Context(), p)
	if err != nil {
		return httperr.From(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, p.Limit, p.Offset))
}

package donation

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/bloodbank/bloodbank/internal/domain/inventory"
	"github.com/bloodbank/bloodbank/internal/platform/httperr"
)

func jsonRequest(method, body string) *http.Request {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func expectStatus(t *testing.T, err error, status int) *echo.HTTPError {
	t.Helper()
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != status {
		t.Fatalf("expected %d, got %v", status, err)
	}
	return he
}

func TestHandler_CreateAndDelete(t *testing.T) {
	f := newFixture(t)
	unit := f.bloodUnit(t, inventory.OPos, 10)
	h := NewHandler(f.coord)
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(jsonRequest(http.MethodPost, `{"blood_unit_id":"`+unit.ID.String()+`","quantity":3}`), rec)
	if err := h.Create(c); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	var ev Event
	if err := json.Unmarshal(rec.Body.Bytes(), &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), rec)
	c.SetParamNames("id")
	c.SetParamValues(ev.ID.String())
	if err := h.Delete(c); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if got := f.quantity(t, unit.ID); got != 10 {
		t.Errorf("expected quantity 10, got %d", got)
	}
}

func TestHandler_CreateInsufficientStock(t *testing.T) {
	f := newFixture(t)
	unit := f.bloodUnit(t, inventory.OPos, 2)
	c := echo.New().NewContext(jsonRequest(http.MethodPost, `{"blood_unit_id":"`+unit.ID.String()+`","quantity":5}`), httptest.NewRecorder())

	he := expectStatus(t, NewHandler(f.coord).Create(c), http.StatusConflict)
	body, ok := he.Message.(httperr.Body)
	if !ok || body.Available == nil || *body.Available != 2 {
		t.Errorf("expected body with available=2, got %#v", he.Message)
	}
}

func TestHandler_CreateAmbiguousTarget(t *testing.T) {
	f := newFixture(t)
	unit := f.bloodUnit(t, inventory.OPos, 2)
	id := unit.ID.String()
	c := echo.New().NewContext(jsonRequest(http.MethodPost, `{"blood_unit_id":"`+id+`","organ_unit_id":"`+id+`","quantity":1}`), httptest.NewRecorder())

	expectStatus(t, NewHandler(f.coord).Create(c), http.StatusBadRequest)
}

func TestHandler_DeleteUnknown(t *testing.T) {
	f := newFixture(t)
	c := echo.New().NewContext(httptest.NewRequest(http.MethodDelete, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("0b8f9d8e-7c61-4d0e-9a34-2f1c3b5d6e70")

	expectStatus(t, NewHandler(f.coord).Delete(c), http.StatusNotFound)
}

func TestHandler_Restock(t *testing.T) {
	f := newFixture(t)
	unit := f.bloodUnit(t, inventory.ANeg, 0)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(jsonRequest(http.MethodPost, `{"quantity":8,"note":"camp"}`), rec)
	c.SetParamNames("id")
	c.SetParamValues(unit.ID.String())

	if err := NewHandler(f.coord).Restock(c); err != nil {
		t.Fatalf("Restock: %v", err)
	}
	if got := f.quantity(t, unit.ID); got != 8 {
		t.Errorf("expected quantity 8, got %d", got)
	}
}

func TestHandler_ListFiltersByUnit(t *testing.T) {
	f := newFixture(t)
	a := f.bloodUnit(t, inventory.OPos, 10)
	b := f.bloodUnit(t, inventory.APos, 10)
	f.donate(t, a.ID, 1)
	f.donate(t, a.ID, 2)
	f.donate(t, b.ID, 3)

	rec := httptest.NewRecorder()
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/donations?unit_id="+a.ID.String(), nil), rec)
	if err := NewHandler(f.coord).List(c); err != nil {
		t.Fatalf("List: %v", err)
	}
	var resp struct {
		Data  []Event `json:"data"`
		Total int     `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 2 || len(resp.Data) != 2 || resp.Data[0].Quantity != 2 {
		t.Errorf("expected 2 events newest first, got %+v", resp)
	}
}

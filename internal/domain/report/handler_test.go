package report

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/bloodbank/bloodbank/internal/domain/inventory"
)

func TestHandler_CompatibilityUnescapedPlus(t *testing.T) {
	f := newFixture(t)
	f.unit(t, inventory.ABPos, 2)
	f.unit(t, inventory.ONeg, 2)

	rec := httptest.NewRecorder()
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	c.SetParamNames("group")
	c.SetParamValues("AB ")

	if err := NewHandler(f.svc).Compatibility(c); err != nil {
		t.Fatalf("Compatibility: %v", err)
	}
	var rows []CompatibilityRow
	if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("expected AB+ to receive both units, got %d rows", len(rows))
	}
}

func TestHandler_CriticalPatientsBadThreshold(t *testing.T) {
	f := newFixture(t)
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/?threshold=abc", nil), httptest.NewRecorder())

	err := NewHandler(f.svc).CriticalPatients(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestHandler_DonorHistoryNotFound(t *testing.T) {
	f := newFixture(t)
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("5d1e3c7a-2b4f-4e8a-9c61-0f2d3b4a5c6e")

	err := NewHandler(f.svc).DonorHistory(c)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %v", err)
	}
}

func TestHandler_TotalValue(t *testing.T) {
	f := newFixture(t)
	f.unit(t, inventory.OPos, 2)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	if err := NewHandler(f.svc).TotalValue(c); err != nil {
		t.Fatalf("TotalValue: %v", err)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["total_value"] != "3000.00" || body["currency"] != "INR" {
		t.Errorf("unexpected body %v", body)
	}
}

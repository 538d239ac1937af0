package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ObserveOutcome("create_donation", "OK", time.Now())
	m.AddUnitsMoved("create_donation", "blood", 3)
	m.IncGateTimeout()
}

func TestObserveOutcome(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveOutcome("create_donation", "OK", time.Now())
	m.ObserveOutcome("create_donation", "OK", time.Now())
	m.ObserveOutcome("create_donation", "INSUFFICIENT_STOCK", time.Now())

	if got := testutil.ToFloat64(m.Outcomes.WithLabelValues("create_donation", "OK")); got != 2 {
		t.Errorf("expected 2 OK outcomes, got %v", got)
	}
	if got := testutil.ToFloat64(m.Outcomes.WithLabelValues("create_donation", "INSUFFICIENT_STOCK")); got != 1 {
		t.Errorf("expected 1 rejection, got %v", got)
	}
}

func TestAddUnitsMoved(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.AddUnitsMoved("delete_donation", "organ", 2)
	m.AddUnitsMoved("delete_donation", "organ", 1)
	if got := testutil.ToFloat64(m.UnitsMoved.WithLabelValues("delete_donation", "organ")); got != 3 {
		t.Errorf("expected 3, got %v", got)
	}
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.IncGateTimeout()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	if err := Handler(reg)(e.NewContext(req, rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "bloodbank_gate_timeouts_total 1") {
		t.Errorf("expected gate counter in output, got:\n%s", rec.Body.String())
	}
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/bloodbank/bloodbank/internal/config"
)

func memoryConfig() *config.Config {
	return &config.Config{
		Port:                      "0",
		Env:                       "test",
		StoreBackend:              config.BackendMemory,
		LockTimeout:               time.Second,
		RequestTimeout:            5 * time.Second,
		UnitGateTTL:               time.Second,
		CriticalPriorityThreshold: 60,
		CORSOrigins:               []string{"*"},
	}
}

func newTestServer(t *testing.T) *echo.Echo {
	t.Helper()
	cfg := memoryConfig()
	st, err := openStores(context.Background(), cfg)
	if err != nil {
		t.Fatalf("openStores: %v", err)
	}
	t.Cleanup(st.close)
	e, err := newServer(context.Background(), cfg, st, zerolog.Nop(), prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("newServer: %v", err)
	}
	return e
}

func do(t *testing.T, e *echo.Echo, method, path string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if out != nil && rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec.Code
}

type idBody struct {
	ID string `json:"id"`
}

type unitBody struct {
	ID       string `json:"id"`
	Subtype  string `json:"subtype"`
	Quantity int    `json:"quantity"`
}

func TestHealth_MemoryBackend(t *testing.T) {
	e := newTestServer(t)

	var body struct {
		Status  string `json:"status"`
		Backend string `json:"backend"`
	}
	if code := do(t, e, http.MethodGet, "/health", nil, &body); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if body.Backend != config.BackendMemory {
		t.Errorf("backend = %q", body.Backend)
	}
}

func TestRequestIDEchoed(t *testing.T) {
	e := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "abc-123" {
		t.Errorf("X-Request-ID = %q", got)
	}
}

func TestDonationFlow(t *testing.T) {
	e := newTestServer(t)

	var bank idBody
	if code := do(t, e, http.MethodPost, "/api/v1/banks", map[string]string{
		"name": "Central", "location": "Pune", "kind": "blood_bank",
	}, &bank); code != http.StatusCreated {
		t.Fatalf("create bank: %d", code)
	}

	var units []unitBody
	if code := do(t, e, http.MethodPost, "/api/v1/banks/"+bank.ID+"/initialize", nil, &units); code != http.StatusOK {
		t.Fatalf("initialize: %d", code)
	}
	if len(units) != 8 {
		t.Fatalf("got %d baseline units, want 8", len(units))
	}
	var oNeg unitBody
	for _, u := range units {
		if u.Subtype == "O-" {
			oNeg = u
		}
	}

	if code := do(t, e, http.MethodPost, "/api/v1/inventory/"+oNeg.ID+"/restock", map[string]any{
		"quantity": 10, "note": "drive",
	}, nil); code != http.StatusOK {
		t.Fatalf("restock: %d", code)
	}

	var donor idBody
	if code := do(t, e, http.MethodPost, "/api/v1/donors", map[string]any{
		"name": "Asha", "age": 30, "gender": "Female", "blood_group": "O-",
	}, &donor); code != http.StatusCreated {
		t.Fatalf("create donor: %d", code)
	}

	var ev idBody
	if code := do(t, e, http.MethodPost, "/api/v1/donations", map[string]any{
		"blood_unit_id": oNeg.ID, "quantity": 4, "donor_id": donor.ID,
	}, &ev); code != http.StatusCreated {
		t.Fatalf("create donation: %d", code)
	}

	var after unitBody
	do(t, e, http.MethodGet, "/api/v1/inventory/"+oNeg.ID, nil, &after)
	if after.Quantity != 6 {
		t.Errorf("quantity after donation = %d, want 6", after.Quantity)
	}

	if code := do(t, e, http.MethodPost, "/api/v1/donations", map[string]any{
		"blood_unit_id": oNeg.ID, "quantity": 7,
	}, nil); code != http.StatusConflict {
		t.Errorf("overdraw status = %d, want 409", code)
	}

	if code := do(t, e, http.MethodDelete, "/api/v1/donations/"+ev.ID, nil, nil); code != http.StatusNoContent {
		t.Fatalf("delete donation: %d", code)
	}
	do(t, e, http.MethodGet, "/api/v1/inventory/"+oNeg.ID, nil, &after)
	if after.Quantity != 10 {
		t.Errorf("quantity after delete = %d, want 10", after.Quantity)
	}

	var trail struct {
		Total int `json:"total"`
	}
	if code := do(t, e, http.MethodGet, "/api/v1/audit/units/"+oNeg.ID, nil, &trail); code != http.StatusOK {
		t.Fatalf("audit: %d", code)
	}
	// restock, insert, delete
	if trail.Total != 3 {
		t.Errorf("audit records = %d, want 3", trail.Total)
	}
}

func TestMetricsExposed(t *testing.T) {
	e := newTestServer(t)

	if code := do(t, e, http.MethodPost, "/api/v1/donations", map[string]any{
		"blood_unit_id": "6f1c2a3e-8d2b-4b7a-9a51-0c7e5d1f2a34", "quantity": 0,
	}, nil); code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", code)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	want := `bloodbank_coordinator_outcomes_total{code="INVALID_QUANTITY",op="create_donation"} 1`
	if !strings.Contains(rec.Body.String(), want) {
		t.Errorf("metrics body missing %s", want)
	}
}

func TestWriteCommandsRejectMemoryBackend(t *testing.T) {
	t.Setenv("STORE_BACKEND", config.BackendMemory)

	cases := []struct {
		name string
		cmd  func() *cobra.Command
		args []string
		want string
	}{
		{"bank create", bankCmd, []string{"create", "--name", "Central"}, "bank create requires STORE_BACKEND=postgres"},
		{"inventory init", inventoryCmd, []string{"init", "--bank", "7f6c1f3e-1d4a-4c55-9d63-3d8e2f1b0a11"}, "inventory init requires STORE_BACKEND=postgres"},
		{"migrate up", migrateCmd, []string{"up"}, "migrate requires STORE_BACKEND=postgres"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cmd := tc.cmd()
			cmd.SetArgs(tc.args)
			cmd.SetOut(io.Discard)
			cmd.SetErr(io.Discard)
			err := cmd.Execute()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q, got %v", tc.want, err)
			}
		})
	}
}

func TestRequirePostgres(t *testing.T) {
	cfg := memoryConfig()
	if err := requirePostgres(cfg, "bank create"); err == nil {
		t.Fatal("expected memory backend to be rejected")
	}
	cfg.StoreBackend = config.BackendPostgres
	if err := requirePostgres(cfg, "bank create"); err != nil {
		t.Errorf("expected postgres backend to be accepted, got %v", err)
	}
}

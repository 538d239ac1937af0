//go:build integration

package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bloodbank/bloodbank/internal/domain/audit"
	"github.com/bloodbank/bloodbank/internal/domain/donation"
	"github.com/bloodbank/bloodbank/internal/domain/inventory"
	"github.com/bloodbank/bloodbank/internal/domain/registry"
	"github.com/bloodbank/bloodbank/internal/platform/db"
)

// connStr points at the shared server; each test gets its own schema.
var connStr string

func TestMain(m *testing.M) {
	ctx := context.Background()

	cleanup := func() {}
	connStr = os.Getenv("BLOODBANK_TEST_DATABASE_URL")
	if connStr == "" {
		var err error
		connStr, cleanup, err = startPostgresContainer(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start postgres: %v\n", err)
			os.Exit(1)
		}
	}

	code := m.Run()
	cleanup()
	os.Exit(code)
}

func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// stack is every postgres repository bound to one migrated schema.
type stack struct {
	pool     *pgxpool.Pool
	tx       *db.TxRunner
	units    inventory.Repository
	donors   registry.DonorRepository
	patients registry.PatientRepository
	events   donation.Repository
	log      audit.Log
	coord    *donation.Coordinator
	bank     *inventory.Bank
}

func newStack(t *testing.T) *stack {
	t.Helper()
	ctx := context.Background()
	schema := "it_" + uuid.NewString()[:8]

	pool, err := db.NewPool(ctx, connStr, 10, 1, schema)
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}
	t.Cleanup(func() {
		if _, err := pool.Exec(context.Background(), "DROP SCHEMA IF EXISTS "+schema+" CASCADE"); err != nil {
			t.Logf("warning: drop schema %s: %v", schema, err)
		}
		pool.Close()
	})

	if _, err := db.NewMigrator(pool, migrationsDir(), schema).Up(ctx); err != nil {
		t.Fatalf("migrate %s: %v", schema, err)
	}

	s := &stack{
		pool:     pool,
		tx:       db.NewTxRunner(pool, 500*time.Millisecond),
		units:    inventory.NewRepoPG(pool),
		donors:   registry.NewDonorRepoPG(pool),
		patients: registry.NewPatientRepoPG(pool),
		events:   donation.NewRepoPG(pool),
		log:      audit.NewLogPG(pool),
	}
	s.coord = donation.NewCoordinator(s.tx, s.units, s.events, s.donors, s.patients, s.log)

	s.bank = &inventory.Bank{Name: "Central", Location: "Pune", Kind: inventory.BloodBank}
	if err := s.units.CreateBank(ctx, s.bank); err != nil {
		t.Fatalf("create bank: %v", err)
	}
	return s
}

func (s *stack) bloodUnit(t *testing.T, group inventory.BloodGroup, qty int) *inventory.Unit {
	t.Helper()
	u := &inventory.Unit{Kind: inventory.KindBlood, Subtype: string(group), Quantity: qty, BankID: s.bank.ID}
	if err := s.units.Create(context.Background(), u); err != nil {
		t.Fatalf("create unit: %v", err)
	}
	return u
}

func (s *stack) quantity(t *testing.T, id uuid.UUID) int {
	t.Helper()
	u, err := s.units.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get unit: %v", err)
	}
	return u.Quantity
}

//go:build integration

package integration

import (
	"context"
	"math"
	"testing"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bloodbank/bloodbank/internal/domain/audit"
	"github.com/bloodbank/bloodbank/internal/domain/donation"
	"github.com/bloodbank/bloodbank/internal/domain/inventory"
	"github.com/bloodbank/bloodbank/internal/domain/registry"
	"github.com/bloodbank/bloodbank/internal/platform/apperr"
)

func TestDonation_CreateAndDelete(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	unit := s.bloodUnit(t, inventory.ONeg, 10)

	donor := &registry.Donor{Name: "Asha", Age: 30, Gender: "Female", BloodGroup: inventory.ONeg}
	if err := s.donors.Create(ctx, donor); err != nil {
		t.Fatalf("create donor: %v", err)
	}

	ev, err := s.coord.CreateDonation(ctx, donation.Request{
		Target: donation.BloodTarget(unit.ID), Quantity: 4, DonorID: &donor.ID,
	})
	if err != nil {
		t.Fatalf("CreateDonation: %v", err)
	}
	if got := s.quantity(t, unit.ID); got != 6 {
		t.Errorf("quantity after create = %d, want 6", got)
	}

	got, err := s.events.GetByID(ctx, ev.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Target.UnitID() != unit.ID || got.DonorID == nil || *got.DonorID != donor.ID {
		t.Errorf("stored event mismatch: %+v", got)
	}

	if err := s.coord.DeleteDonation(ctx, ev.ID); err != nil {
		t.Fatalf("DeleteDonation: %v", err)
	}
	if got := s.quantity(t, unit.ID); got != 10 {
		t.Errorf("quantity after delete = %d, want 10", got)
	}
	if err := s.coord.DeleteDonation(ctx, ev.ID); apperr.CodeOf(err) != apperr.CodeNotFound {
		t.Errorf("second delete: expected NOT_FOUND, got %v", err)
	}

	recs, err := s.log.ListByUnit(ctx, unit.ID, 10)
	if err != nil {
		t.Fatalf("ListByUnit: %v", err)
	}
	if len(recs) != 2 || recs[0].Action != audit.ActionDelete || recs[1].Action != audit.ActionInsert {
		t.Errorf("unexpected audit trail: %+v", recs)
	}
	if recs[0].Seq <= recs[1].Seq {
		t.Errorf("expected increasing seq, got %d then %d", recs[1].Seq, recs[0].Seq)
	}
}

func TestDonation_InsufficientStockLeavesNoTrace(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	unit := s.bloodUnit(t, inventory.APos, 3)

	_, err := s.coord.CreateDonation(ctx, donation.Request{Target: donation.BloodTarget(unit.ID), Quantity: 5})
	if apperr.CodeOf(err) != apperr.CodeInsufficientStock {
		t.Fatalf("expected INSUFFICIENT_STOCK, got %v", err)
	}
	if got := s.quantity(t, unit.ID); got != 3 {
		t.Errorf("quantity = %d, want 3", got)
	}
	n, err := s.log.CountByUnit(ctx, unit.ID)
	if err != nil {
		t.Fatalf("CountByUnit: %v", err)
	}
	if n != 0 {
		t.Errorf("audit records = %d, want 0", n)
	}
	_, total, err := s.events.List(ctx, donation.ListParams{UnitID: &unit.ID})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 0 {
		t.Errorf("events = %d, want 0", total)
	}
}

func TestDonation_UnknownDonorRejected(t *testing.T) {
	s := newStack(t)
	unit := s.bloodUnit(t, inventory.BPos, 5)
	ghost := uuid.New()

	_, err := s.coord.CreateDonation(context.Background(), donation.Request{
		Target: donation.BloodTarget(unit.ID), Quantity: 1, DonorID: &ghost,
	})
	if apperr.CodeOf(err) != apperr.CodeNotFound {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
	if got := s.quantity(t, unit.ID); got != 5 {
		t.Errorf("quantity = %d, want 5", got)
	}
}

func TestDonation_ConcurrentRequestsNeverOverdraw(t *testing.T) {
	s := newStack(t)
	unit := s.bloodUnit(t, inventory.ABNeg, 10)

	results := make([]error, 2)
	var g errgroup.Group
	for i := range results {
		i := i
		g.Go(func() error {
			_, results[i] = s.coord.CreateDonation(context.Background(), donation.Request{
				Target: donation.BloodTarget(unit.ID), Quantity: 6,
			})
			return nil
		})
	}
	_ = g.Wait()

	ok, short := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case apperr.CodeOf(err) == apperr.CodeInsufficientStock:
			short++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 || short != 1 {
		t.Errorf("expected one success and one INSUFFICIENT_STOCK, got %d and %d", ok, short)
	}
	if got := s.quantity(t, unit.ID); got != 4 {
		t.Errorf("quantity = %d, want 4", got)
	}
}

func TestAudit_RowsAreImmutable(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	unit := s.bloodUnit(t, inventory.OPos, 2)

	if _, err := s.coord.Restock(ctx, unit.ID, 5, "drive"); err != nil {
		t.Fatalf("Restock: %v", err)
	}

	if _, err := s.pool.Exec(ctx, "UPDATE audit_record SET details = 'tampered'"); err != nil {
		t.Fatalf("update: %v", err)
	}
	if _, err := s.pool.Exec(ctx, "DELETE FROM audit_record"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	recs, err := s.log.ListByUnit(ctx, unit.ID, 10)
	if err != nil {
		t.Fatalf("ListByUnit: %v", err)
	}
	if len(recs) != 1 || recs[0].Details == "tampered" {
		t.Errorf("audit record was modified: %+v", recs)
	}
}

func TestRestock_QuantityBoundsAgainstPostgres(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	unit := s.bloodUnit(t, inventory.APos, inventory.MaxQuantity-1)

	if _, err := s.coord.Restock(ctx, unit.ID, 5, ""); apperr.CodeOf(err) != apperr.CodeInvalidArgument {
		t.Fatalf("expected INVALID_ARGUMENT, got %v", err)
	}
	if got := s.quantity(t, unit.ID); got != inventory.MaxQuantity-1 {
		t.Errorf("quantity = %d, want %d", got, inventory.MaxQuantity-1)
	}
	if n, _ := s.log.CountByUnit(ctx, unit.ID); n != 0 {
		t.Errorf("expected no audit rows, got %d", n)
	}

	if _, err := s.coord.Restock(ctx, unit.ID, math.MaxInt, ""); apperr.CodeOf(err) != apperr.CodeInvalidQuantity {
		t.Errorf("expected INVALID_QUANTITY, got %v", err)
	}

	big := &inventory.Unit{Kind: inventory.KindBlood, Subtype: string(inventory.BPos), Quantity: inventory.MaxQuantity + 1, BankID: s.bank.ID}
	if err := s.units.Create(ctx, big); apperr.CodeOf(err) != apperr.CodeInvalidArgument {
		t.Errorf("expected INVALID_ARGUMENT for oversized unit, got %v", err)
	}
}

//go:build integration

package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/bloodbank/bloodbank/internal/domain/donation"
	"github.com/bloodbank/bloodbank/internal/domain/inventory"
	"github.com/bloodbank/bloodbank/internal/domain/registry"
	"github.com/bloodbank/bloodbank/internal/domain/report"
	"github.com/bloodbank/bloodbank/internal/platform/apperr"
)

func TestRegistry_ListDonorsFiltersAndPages(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	svc := registry.NewService(s.donors, s.patients)

	for _, name := range []string{"Asha Rao", "Bilal Khan", "Chitra Rao"} {
		d := &registry.Donor{Name: name, Age: 40, BloodGroup: inventory.APos}
		if err := svc.CreateDonor(ctx, d); err != nil {
			t.Fatalf("CreateDonor(%s): %v", name, err)
		}
	}

	items, total, err := svc.ListDonors(ctx, registry.ListParams{Name: "rao", Limit: 1})
	if err != nil {
		t.Fatalf("ListDonors: %v", err)
	}
	if total != 2 || len(items) != 1 || items[0].Name != "Asha Rao" {
		t.Errorf("got total=%d items=%+v", total, items)
	}
}

func TestReport_CompatibilityAgainstPostgres(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	s.bloodUnit(t, inventory.ONeg, 4)
	s.bloodUnit(t, inventory.BPos, 9)
	s.bloodUnit(t, inventory.APos, 0)

	svc := report.NewService(s.units, s.events, s.donors, s.patients, 60)
	rows, err := svc.Compatibility(ctx, "A+")
	if err != nil {
		t.Fatalf("Compatibility: %v", err)
	}
	// A+ is out of stock and B+ is incompatible.
	if len(rows) != 1 || rows[0].Unit.Subtype != string(inventory.ONeg) {
		t.Errorf("unexpected rows: %+v", rows)
	}
}

func TestRegistry_UpdatePatientKeepsIntakeDate(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	svc := registry.NewService(s.donors, s.patients)
	svc.SetReferences(s.tx, s.events)

	p := &registry.Patient{Name: "Ravi", Age: 52, BloodGroup: inventory.ABPos}
	if err := svc.CreatePatient(ctx, p); err != nil {
		t.Fatalf("CreatePatient: %v", err)
	}
	intake := p.IntakeDate

	upd := &registry.Patient{ID: p.ID, Name: "Ravi M", Age: 53, BloodGroup: inventory.ABPos}
	if err := svc.UpdatePatient(ctx, upd); err != nil {
		t.Fatalf("UpdatePatient: %v", err)
	}
	got, err := svc.GetPatient(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetPatient: %v", err)
	}
	if got.Name != "Ravi M" || got.Age != 53 {
		t.Errorf("update not applied: %+v", got)
	}
	if !got.IntakeDate.Equal(intake) {
		t.Errorf("expected intake %v kept, got %v", intake, got.IntakeDate)
	}

	err = svc.UpdatePatient(ctx, &registry.Patient{ID: uuid.New(), Name: "Ghost", Age: 40, BloodGroup: inventory.APos})
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestRegistry_DeleteDonorClearsDonationReference(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	svc := registry.NewService(s.donors, s.patients)
	svc.SetReferences(s.tx, s.events)
	unit := s.bloodUnit(t, inventory.ONeg, 5)

	donor := &registry.Donor{Name: "Asha", Age: 30, BloodGroup: inventory.ONeg}
	if err := svc.CreateDonor(ctx, donor); err != nil {
		t.Fatalf("CreateDonor: %v", err)
	}
	ev, err := s.coord.CreateDonation(ctx, donation.Request{Target: donation.BloodTarget(unit.ID), Quantity: 2, DonorID: &donor.ID})
	if err != nil {
		t.Fatalf("CreateDonation: %v", err)
	}

	if err := svc.DeleteDonor(ctx, donor.ID); err != nil {
		t.Fatalf("DeleteDonor: %v", err)
	}
	got, err := s.events.GetByID(ctx, ev.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.DonorID != nil {
		t.Errorf("expected donor reference cleared, got %v", *got.DonorID)
	}
	if got.Quantity != 2 {
		t.Errorf("expected quantity 2 kept, got %d", got.Quantity)
	}
	if _, err := svc.GetDonor(ctx, donor.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected NOT_FOUND after delete, got %v", err)
	}
	if err := svc.DeleteDonor(ctx, donor.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected NOT_FOUND on second delete, got %v", err)
	}
}

func TestRegistry_DeletePatientForeignKeySetsNull(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	svc := registry.NewService(s.donors, s.patients)
	unit := s.bloodUnit(t, inventory.ONeg, 5)

	p := &registry.Patient{Name: "Ravi", Age: 52, BloodGroup: inventory.ABPos}
	if err := svc.CreatePatient(ctx, p); err != nil {
		t.Fatalf("CreatePatient: %v", err)
	}
	ev, err := s.coord.CreateDonation(ctx, donation.Request{Target: donation.BloodTarget(unit.ID), Quantity: 1, PatientID: &p.ID})
	if err != nil {
		t.Fatalf("CreateDonation: %v", err)
	}
	if err := svc.DeletePatient(ctx, p.ID); err != nil {
		t.Fatalf("DeletePatient: %v", err)
	}
	got, err := s.events.GetByID(ctx, ev.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.PatientID != nil {
		t.Errorf("expected ON DELETE SET NULL to clear the patient, got %v", *got.PatientID)
	}
}

package registry

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bloodbank/bloodbank/internal/domain/inventory"
	"github.com/bloodbank/bloodbank/internal/domain/scoring"
	"github.com/bloodbank/bloodbank/internal/platform/apperr"
)

type Service struct {
	donors   DonorRepository
	patients PatientRepository
	tx       Transactor
	refs     References
	now      func() time.Time
}

func NewService(donors DonorRepository, patients PatientRepository) *Service {
	return &Service{donors: donors, patients: patients, now: time.Now}
}

// SetReferences makes deletes clear donation links in the same transaction.
func (s *Service) SetReferences(tx Transactor, refs References) {
	s.tx = tx
	s.refs = refs
}

func (s *Service) withinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.tx == nil {
		return fn(ctx)
	}
	return s.tx.WithinTx(ctx, fn)
}

func validatePerson(name string, age int, gender string, group inventory.BloodGroup) (inventory.BloodGroup, error) {
	if strings.TrimSpace(name) == "" {
		return "", apperr.InvalidArgument("name is required")
	}
	if age < 0 || age > 130 {
		return "", apperr.InvalidArgument("age must be between 0 and 130")
	}
	if gender != "" && !validGenders[gender] {
		return "", apperr.InvalidArgument("invalid gender: %s", gender)
	}
	return inventory.ParseBloodGroup(string(group))
}

func normalizeDonor(d *Donor) error {
	g, err := validatePerson(d.Name, d.Age, d.Gender, d.BloodGroup)
	if err != nil {
		return err
	}
	d.BloodGroup = g
	if d.DiseaseHistory != nil && scoring.NoDisease(*d.DiseaseHistory) {
		d.DiseaseHistory = nil
	}
	return nil
}

func (s *Service) CreateDonor(ctx context.Context, d *Donor) error {
	if err := normalizeDonor(d); err != nil {
		return err
	}
	return s.donors.Create(ctx, d)
}

func (s *Service) UpdateDonor(ctx context.Context, d *Donor) error {
	if err := normalizeDonor(d); err != nil {
		return err
	}
	return s.donors.Update(ctx, d)
}

// DeleteDonor removes the donor. Donations they made stay on record without
// a donor reference.
func (s *Service) DeleteDonor(ctx context.Context, id uuid.UUID) error {
	return s.withinTx(ctx, func(ctx context.Context) error {
		if _, err := s.donors.LockForShare(ctx, id); err != nil {
			return err
		}
		if s.refs != nil {
			if _, err := s.refs.DetachDonor(ctx, id); err != nil {
				return err
			}
		}
		return s.donors.Delete(ctx, id)
	})
}

func (s *Service) GetDonor(ctx context.Context, id uuid.UUID) (*Donor, error) {
	return s.donors.GetByID(ctx, id)
}

func (s *Service) ListDonors(ctx context.Context, p ListParams) ([]*Donor, int, error) {
	return s.donors.List(ctx, p)
}

func (s *Service) checkPatient(p *Patient) error {
	g, err := validatePerson(p.Name, p.Age, p.Gender, p.BloodGroup)
	if err != nil {
		return err
	}
	p.BloodGroup = g
	if p.IntakeDate.After(s.now().Add(time.Minute)) {
		return apperr.InvalidArgument("intake date must not be in the future")
	}
	return nil
}

// CreatePatient defaults the intake date to now.
func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	if p.IntakeDate.IsZero() {
		p.IntakeDate = s.now()
	}
	if err := s.checkPatient(p); err != nil {
		return err
	}
	return s.patients.Create(ctx, p)
}

// UpdatePatient keeps the stored intake date when p carries none.
func (s *Service) UpdatePatient(ctx context.Context, p *Patient) error {
	if err := s.checkPatient(p); err != nil {
		return err
	}
	return s.withinTx(ctx, func(ctx context.Context) error {
		if p.IntakeDate.IsZero() {
			cur, err := s.patients.LockForShare(ctx, p.ID)
			if err != nil {
				return err
			}
			p.IntakeDate = cur.IntakeDate
		}
		return s.patients.Update(ctx, p)
	})
}

func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) error {
	return s.withinTx(ctx, func(ctx context.Context) error {
		if _, err := s.patients.LockForShare(ctx, id); err != nil {
			return err
		}
		if s.refs != nil {
			if _, err := s.refs.DetachPatient(ctx, id); err != nil {
				return err
			}
		}
		return s.patients.Delete(ctx, id)
	})
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, p ListParams) ([]*Patient, int, error) {
	return s.patients.List(ctx, p)
}

package inventory

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/bloodbank/bloodbank/internal/platform/apperr"
)

// Transactor runs fn inside a single storage transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Service struct {
	repo Repository
	tx   Transactor
}

func NewService(repo Repository, tx Transactor) *Service {
	return &Service{repo: repo, tx: tx}
}

func (s *Service) CreateBank(ctx context.Context, b *Bank) error {
	b.Name = strings.TrimSpace(b.Name)
	if b.Name == "" {
		return apperr.InvalidArgument("name is required")
	}
	if b.Kind != BloodBank && b.Kind != OrganBank {
		return apperr.InvalidArgument("bank kind must be %q or %q", BloodBank, OrganBank)
	}
	return s.repo.CreateBank(ctx, b)
}

func (s *Service) GetBank(ctx context.Context, id uuid.UUID) (*Bank, error) {
	return s.repo.GetBank(ctx, id)
}

func (s *Service) ListBanks(ctx context.Context) ([]*Bank, error) {
	return s.repo.ListBanks(ctx)
}

func (s *Service) GetInventory(ctx context.Context, f Filter) ([]*Unit, error) {
	return s.repo.List(ctx, f)
}

func (s *Service) GetUnit(ctx context.Context, id uuid.UUID) (*Unit, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) checkBank(ctx context.Context, key UnitKey) error {
	bank, err := s.repo.GetBank(ctx, key.BankID)
	if err != nil {
		return err
	}
	if !bank.Kind.Holds(key.Kind) {
		return apperr.InvalidArgument("bank %s (%s) cannot hold %s units", bank.Name, bank.Kind, key.Kind)
	}
	return nil
}

// FindOrCreateUnit returns the slot for key, creating it empty if needed.
func (s *Service) FindOrCreateUnit(ctx context.Context, key UnitKey) (*Unit, error) {
	if err := s.checkBank(ctx, key); err != nil {
		return nil, err
	}
	u, _, err := s.repo.FindOrCreate(ctx, key)
	return u, err
}

// CreateUnit registers a new slot explicitly. Stock is added afterwards
// through an audited restock, so the slot always starts empty.
func (s *Service) CreateUnit(ctx context.Context, key UnitKey) (*Unit, error) {
	if err := s.checkBank(ctx, key); err != nil {
		return nil, err
	}
	u := &Unit{Kind: key.Kind, Subtype: key.Subtype, Condition: key.Condition, BankID: key.BankID}
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// InitializeBaselineInventory makes sure the bank has a slot for each of the
// eight blood groups. Calling it again creates nothing.
func (s *Service) InitializeBaselineInventory(ctx context.Context, bankID uuid.UUID) ([]*Unit, error) {
	if bankID == uuid.Nil {
		return nil, apperr.InvalidArgument("bank id is required")
	}
	units := make([]*Unit, 0, len(BloodGroups))
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		units = units[:0]
		for _, g := range BloodGroups {
			key, err := BloodKey(string(g), bankID)
			if err != nil {
				return err
			}
			if len(units) == 0 {
				if err := s.checkBank(ctx, key); err != nil {
					return err
				}
			}
			u, _, err := s.repo.FindOrCreate(ctx, key)
			if err != nil {
				return err
			}
			units = append(units, u)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return units, nil
}

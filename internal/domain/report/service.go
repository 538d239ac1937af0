// Package report builds read-only views over committed inventory, donations
// and the registry. Nothing here writes.
package report

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/bloodbank/bloodbank/internal/domain/donation"
	"github.com/bloodbank/bloodbank/internal/domain/inventory"
	"github.com/bloodbank/bloodbank/internal/domain/registry"
	"github.com/bloodbank/bloodbank/internal/domain/scoring"
	"github.com/bloodbank/bloodbank/internal/platform/apperr"
)

const trendWindow = 30 * 24 * time.Hour

type Service struct {
	units             inventory.Repository
	events            donation.Repository
	donors            registry.DonorRepository
	patients          registry.PatientRepository
	criticalThreshold int
	now               func() time.Time
}

func NewService(units inventory.Repository, events donation.Repository,
	donors registry.DonorRepository, patients registry.PatientRepository, criticalThreshold int) *Service {
	return &Service{
		units:             units,
		events:            events,
		donors:            donors,
		patients:          patients,
		criticalThreshold: criticalThreshold,
		now:               time.Now,
	}
}

func (s *Service) bloodUnits(ctx context.Context) ([]*inventory.Unit, error) {
	return s.units.List(ctx, inventory.Filter{Kind: inventory.KindBlood})
}

// Compatibility lists in-stock blood units a patient of group can receive,
// best score first and then largest quantity.
func (s *Service) Compatibility(ctx context.Context, group string) ([]CompatibilityRow, error) {
	recipient, err := inventory.ParseBloodGroup(group)
	if err != nil {
		return nil, err
	}
	units, err := s.units.List(ctx, inventory.Filter{Kind: inventory.KindBlood, InStockOnly: true})
	if err != nil {
		return nil, err
	}
	donors, _, err := s.donors.List(ctx, registry.ListParams{})
	if err != nil {
		return nil, err
	}
	byGroup := make(map[inventory.BloodGroup][]*registry.Donor)
	for _, d := range donors {
		byGroup[d.BloodGroup] = append(byGroup[d.BloodGroup], d)
	}

	var rows []CompatibilityRow
	for _, u := range units {
		g, _ := u.BloodGroup()
		score, err := scoring.CompatibilityScore(g, recipient)
		if err != nil {
			return nil, err
		}
		if score == scoring.ScoreNone || u.Quantity == 0 {
			continue
		}
		value, err := scoring.InventoryValue(u.Kind, u.Quantity, u.Subtype)
		if err != nil {
			return nil, err
		}
		matches := byGroup[g]
		if len(matches) == 0 {
			rows = append(rows, CompatibilityRow{Unit: u, Score: score, Value: value})
			continue
		}
		for _, d := range matches {
			risk, err := scoring.DonorRiskLevel(d.Age, d.Disease())
			if err != nil {
				return nil, err
			}
			rows = append(rows, CompatibilityRow{Unit: u, Donor: d, Score: score, DonorRisk: risk, Value: value})
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Score != rows[j].Score {
			return rows[i].Score > rows[j].Score
		}
		return rows[i].Unit.Quantity > rows[j].Unit.Quantity
	})
	return rows, nil
}

// Inventory reports every unit with its stock status.
func (s *Service) Inventory(ctx context.Context) ([]InventoryRow, error) {
	units, err := s.units.List(ctx, inventory.Filter{})
	if err != nil {
		return nil, err
	}
	rows := make([]InventoryRow, 0, len(units))
	for _, u := range units {
		value, err := scoring.InventoryValue(u.Kind, u.Quantity, u.Subtype)
		if err != nil {
			return nil, err
		}
		st := StatusOf(u)
		rows = append(rows, InventoryRow{Unit: u, Status: st, RecommendedAction: RecommendedAction(st, u.Subtype), Value: value})
	}
	return rows, nil
}

// TotalValue is the value of all stock on hand, in INR.
func (s *Service) TotalValue(ctx context.Context) (decimal.Decimal, error) {
	units, err := s.units.List(ctx, inventory.Filter{})
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, u := range units {
		v, err := scoring.InventoryValue(u.Kind, u.Quantity, u.Subtype)
		if err != nil {
			return decimal.Zero, err
		}
		total = total.Add(v)
	}
	return total, nil
}

func (s *Service) DonorHistory(ctx context.Context, donorID uuid.UUID) (*DonorHistory, error) {
	d, err := s.donors.GetByID(ctx, donorID)
	if err != nil {
		return nil, err
	}
	events, err := s.events.ListByDonor(ctx, donorID)
	if err != nil {
		return nil, err
	}
	risk, err := scoring.DonorRiskLevel(d.Age, d.Disease())
	if err != nil {
		return nil, err
	}

	h := &DonorHistory{Donor: d, Donations: events, Summary: DonorSummary{RiskLevel: risk}}
	if h.Donations == nil {
		h.Donations = []*donation.Event{}
	}
	for _, e := range events {
		h.Summary.Donations++
		h.Summary.TotalQuantity += e.Quantity
	}
	if len(events) > 0 {
		first, last := events[0].Date, events[len(events)-1].Date
		days := int(s.now().Sub(last).Hours() / 24)
		if days < 0 {
			days = 0
		}
		h.Summary.FirstDonation, h.Summary.LastDonation, h.Summary.DaysSinceLast = &first, &last, &days
	}
	return h, nil
}

func (s *Service) priorityOf(p *registry.Patient, blood []*inventory.Unit) (PatientPriority, error) {
	days := p.DaysWaiting(s.now())
	units := scoring.CompatibleUnits(p.BloodGroup, blood)
	score, err := scoring.PatientPriority(days, p.BloodGroup, units)
	if err != nil {
		return PatientPriority{}, err
	}
	return PatientPriority{Patient: p, DaysWaiting: days, CompatibleUnits: units, Priority: score}, nil
}

// PatientUrgency computes one patient's priority from live stock.
func (s *Service) PatientUrgency(ctx context.Context, patientID uuid.UUID) (*PatientPriority, error) {
	p, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	blood, err := s.bloodUnits(ctx)
	if err != nil {
		return nil, err
	}
	pp, err := s.priorityOf(p, blood)
	if err != nil {
		return nil, err
	}
	return &pp, nil
}

// CriticalPatients ranks patients whose priority reaches threshold, highest
// first. A threshold of 0 uses the configured default.
func (s *Service) CriticalPatients(ctx context.Context, threshold int) ([]PatientPriority, error) {
	if threshold == 0 {
		threshold = s.criticalThreshold
	}
	if threshold < 1 || threshold > 100 {
		return nil, apperr.InvalidArgument("threshold must be between 1 and 100")
	}
	patients, _, err := s.patients.List(ctx, registry.ListParams{})
	if err != nil {
		return nil, err
	}
	blood, err := s.bloodUnits(ctx)
	if err != nil {
		return nil, err
	}

	out := []PatientPriority{}
	for _, p := range patients {
		pp, err := s.priorityOf(p, blood)
		if err != nil {
			return nil, err
		}
		if pp.Priority >= threshold {
			out = append(out, pp)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].DaysWaiting > out[j].DaysWaiting
	})
	return out, nil
}

func (s *Service) BankStatus(ctx context.Context) ([]BankStatus, error) {
	banks, err := s.units.ListBanks(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]BankStatus, 0, len(banks))
	for _, b := range banks {
		units, err := s.units.List(ctx, inventory.Filter{BankID: b.ID})
		if err != nil {
			return nil, err
		}
		st := BankStatus{Bank: b, Units: len(units), Value: decimal.Zero}
		for _, u := range units {
			st.TotalQuantity += u.Quantity
			switch StatusOf(u) {
			case StatusCritical:
				st.CriticalSlots++
			case StatusLow:
				st.LowSlots++
			}
			v, err := scoring.InventoryValue(u.Kind, u.Quantity, u.Subtype)
			if err != nil {
				return nil, err
			}
			st.Value = st.Value.Add(v)
		}
		out = append(out, st)
	}
	return out, nil
}

func (s *Service) Trends(ctx context.Context) (DonationTrends, error) {
	now := s.now()
	boundary := now.Add(-trendWindow)
	events, err := s.events.ListSince(ctx, now.Add(-2*trendWindow))
	if err != nil {
		return DonationTrends{}, err
	}
	var t DonationTrends
	for _, e := range events {
		if e.Date.Before(boundary) {
			t.PreviousCount++
			t.PreviousQuantity += e.Quantity
		} else {
			t.CurrentCount++
			t.CurrentQuantity += e.Quantity
		}
	}
	switch {
	case t.CurrentQuantity > t.PreviousQuantity:
		t.Direction = TrendUp
	case t.CurrentQuantity < t.PreviousQuantity:
		t.Direction = TrendDown
	default:
		t.Direction = TrendFlat
	}
	return t, nil
}

// Overview gathers the dashboard reports concurrently.
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	var o Overview
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		o.Inventory, err = s.Inventory(ctx)
		return err
	})
	g.Go(func() (err error) {
		o.TotalValue, err = s.TotalValue(ctx)
		return err
	})
	g.Go(func() (err error) {
		o.Trends, err = s.Trends(ctx)
		return err
	})
	g.Go(func() (err error) {
		o.CriticalPatients, err = s.CriticalPatients(ctx, 0)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &o, nil
}

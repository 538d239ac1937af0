package registry

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bloodbank/bloodbank/internal/platform/apperr"
	"github.com/bloodbank/bloodbank/internal/platform/memdb"
	"github.com/bloodbank/bloodbank/pkg/pagination"
)

func nameMatches(name, filter string) bool {
	return filter == "" || strings.Contains(strings.ToLower(name), strings.ToLower(filter))
}

func page[T any](items []T, p ListParams) []T {
	if p.Limit <= 0 {
		if p.Offset >= len(items) {
			return nil
		}
		return items[p.Offset:]
	}
	start, end := pagination.Params{Limit: p.Limit, Offset: p.Offset}.Window(len(items))
	return items[start:end]
}

// lockKey takes the row lock for key when ctx carries a transaction.
func lockKey(ctx context.Context, key string) error {
	if tx := memdb.TxFromContext(ctx); tx != nil {
		return tx.Lock(ctx, key)
	}
	return nil
}

func donorKey(id uuid.UUID) string   { return "donor:" + id.String() }
func patientKey(id uuid.UUID) string { return "patient:" + id.String() }

type donorRepoMemory struct {
	db     *memdb.DB
	donors map[uuid.UUID]Donor
}

func NewDonorRepoMemory(store *memdb.DB) DonorRepository {
	return &donorRepoMemory{db: store, donors: make(map[uuid.UUID]Donor)}
}

func (r *donorRepoMemory) Create(ctx context.Context, d *Donor) error {
	d.ID = uuid.New()
	d.CreatedAt = time.Now()
	saved := *d
	r.db.Apply(ctx, func() { r.donors[saved.ID] = saved })
	return nil
}

func (r *donorRepoMemory) GetByID(_ context.Context, id uuid.UUID) (*Donor, error) {
	var (
		d  Donor
		ok bool
	)
	r.db.View(func() { d, ok = r.donors[id] })
	if !ok {
		return nil, apperr.NotFound("donor %s", id)
	}
	return &d, nil
}

func (r *donorRepoMemory) List(_ context.Context, p ListParams) ([]*Donor, int, error) {
	var items []*Donor
	r.db.View(func() {
		for _, d := range r.donors {
			d := d
			if nameMatches(d.Name, p.Name) {
				items = append(items, &d)
			}
		}
	})
	sort.Slice(items, func(i, j int) bool {
		if items[i].Name != items[j].Name {
			return items[i].Name < items[j].Name
		}
		return items[i].ID.String() < items[j].ID.String()
	})
	return page(items, p), len(items), nil
}

func (r *donorRepoMemory) Update(ctx context.Context, d *Donor) error {
	if err := lockKey(ctx, donorKey(d.ID)); err != nil {
		return err
	}
	cur, err := r.GetByID(ctx, d.ID)
	if err != nil {
		return err
	}
	d.CreatedAt = cur.CreatedAt
	saved := *d
	r.db.Apply(ctx, func() { r.donors[saved.ID] = saved })
	return nil
}

func (r *donorRepoMemory) Delete(ctx context.Context, id uuid.UUID) error {
	if err := lockKey(ctx, donorKey(id)); err != nil {
		return err
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	r.db.Apply(ctx, func() { delete(r.donors, id) })
	return nil
}

func (r *donorRepoMemory) LockForShare(ctx context.Context, id uuid.UUID) (*Donor, error) {
	if err := lockKey(ctx, donorKey(id)); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

type patientRepoMemory struct {
	db       *memdb.DB
	patients map[uuid.UUID]Patient
}

func NewPatientRepoMemory(store *memdb.DB) PatientRepository {
	return &patientRepoMemory{db: store, patients: make(map[uuid.UUID]Patient)}
}

func (r *patientRepoMemory) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	p.CreatedAt = time.Now()
	saved := *p
	r.db.Apply(ctx, func() { r.patients[saved.ID] = saved })
	return nil
}

func (r *patientRepoMemory) GetByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	var (
		p  Patient
		ok bool
	)
	r.db.View(func() { p, ok = r.patients[id] })
	if !ok {
		return nil, apperr.NotFound("patient %s", id)
	}
	return &p, nil
}

func (r *patientRepoMemory) List(_ context.Context, lp ListParams) ([]*Patient, int, error) {
	var items []*Patient
	r.db.View(func() {
		for _, p := range r.patients {
			p := p
			if nameMatches(p.Name, lp.Name) {
				items = append(items, &p)
			}
		}
	})
	sort.Slice(items, func(i, j int) bool {
		if !items[i].IntakeDate.Equal(items[j].IntakeDate) {
			return items[i].IntakeDate.Before(items[j].IntakeDate)
		}
		return items[i].ID.String() < items[j].ID.String()
	})
	return page(items, lp), len(items), nil
}

func (r *patientRepoMemory) Update(ctx context.Context, p *Patient) error {
	if err := lockKey(ctx, patientKey(p.ID)); err != nil {
		return err
	}
	cur, err := r.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	p.CreatedAt = cur.CreatedAt
	saved := *p
	r.db.Apply(ctx, func() { r.patients[saved.ID] = saved })
	return nil
}

func (r *patientRepoMemory) Delete(ctx context.Context, id uuid.UUID) error {
	if err := lockKey(ctx, patientKey(id)); err != nil {
		return err
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	r.db.Apply(ctx, func() { delete(r.patients, id) })
	return nil
}

func (r *patientRepoMemory) LockForShare(ctx context.Context, id uuid.UUID) (*Patient, error) {
	if err := lockKey(ctx, patientKey(id)); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

package inventory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/bloodbank/bloodbank/internal/platform/apperr"
	"github.com/bloodbank/bloodbank/internal/platform/memdb"
)

type repoMemory struct {
	db    *memdb.DB
	banks map[uuid.UUID]Bank
	units map[uuid.UUID]Unit
	slots map[UnitKey]uuid.UUID
	now   func() time.Time
}

// NewRepoMemory returns a Repository backed by store. Quantity changes are
// staged on the store's transaction and become visible on commit.
func NewRepoMemory(store *memdb.DB) Repository {
	return &repoMemory{
		db:    store,
		banks: make(map[uuid.UUID]Bank),
		units: make(map[uuid.UUID]Unit),
		slots: make(map[UnitKey]uuid.UUID),
		now:   time.Now,
	}
}

func unitLock(id uuid.UUID) string { return "inventory_unit:" + id.String() }

func slotLock(k UnitKey) string { return "inventory_slot:" + k.String() }

func bankStage(id uuid.UUID) string { return "bank:" + id.String() }

func (r *repoMemory) CreateBank(ctx context.Context, b *Bank) error {
	b.ID = uuid.New()
	b.CreatedAt = r.now()
	saved := *b
	if tx := memdb.TxFromContext(ctx); tx != nil {
		tx.Stage(bankStage(saved.ID), saved)
	}
	r.db.Apply(ctx, func() { r.banks[saved.ID] = saved })
	return nil
}

func (r *repoMemory) GetBank(ctx context.Context, id uuid.UUID) (*Bank, error) {
	if tx := memdb.TxFromContext(ctx); tx != nil {
		if v, ok := tx.Staged(bankStage(id)); ok {
			b := v.(Bank)
			return &b, nil
		}
	}
	var (
		b  Bank
		ok bool
	)
	r.db.View(func() { b, ok = r.banks[id] })
	if !ok {
		return nil, apperr.NotFound("bank %s", id)
	}
	return &b, nil
}

func (r *repoMemory) ListBanks(_ context.Context) ([]*Bank, error) {
	var items []*Bank
	r.db.View(func() {
		for _, b := range r.banks {
			b := b
			items = append(items, &b)
		}
	})
	sort.Slice(items, func(i, j int) bool {
		if items[i].Kind != items[j].Kind {
			return items[i].Kind < items[j].Kind
		}
		return items[i].Name < items[j].Name
	})
	return items, nil
}

// read returns the unit as seen by ctx: staged within a transaction,
// committed otherwise.
func (r *repoMemory) read(ctx context.Context, id uuid.UUID) (Unit, bool) {
	if tx := memdb.TxFromContext(ctx); tx != nil {
		if v, ok := tx.Staged(unitLock(id)); ok {
			return v.(Unit), true
		}
	}
	var (
		u  Unit
		ok bool
	)
	r.db.View(func() { u, ok = r.units[id] })
	return u, ok
}

func (r *repoMemory) lookup(ctx context.Context, key UnitKey) (Unit, bool) {
	if tx := memdb.TxFromContext(ctx); tx != nil {
		if v, ok := tx.Staged(slotLock(key)); ok {
			return r.read(ctx, v.(uuid.UUID))
		}
	}
	var (
		id uuid.UUID
		ok bool
	)
	r.db.View(func() { id, ok = r.slots[key] })
	if !ok {
		return Unit{}, false
	}
	return r.read(ctx, id)
}

func (r *repoMemory) Create(ctx context.Context, u *Unit) error {
	return r.db.WithinTx(ctx, func(ctx context.Context) error {
		key := u.Key()
		if err := memdb.TxFromContext(ctx).Lock(ctx, slotLock(key)); err != nil {
			return err
		}
		if _, exists := r.lookup(ctx, key); exists {
			return apperr.InvalidArgument("inventory unit %s already exists", key)
		}
		return r.insert(ctx, u)
	})
}

func (r *repoMemory) insert(ctx context.Context, u *Unit) error {
	if _, err := r.GetBank(ctx, u.BankID); err != nil {
		return err
	}
	if u.Quantity < 0 || u.Quantity > MaxQuantity {
		return apperr.InvalidArgument("quantity must be between 0 and %d", MaxQuantity)
	}
	u.ID = uuid.New()
	u.CreatedAt = r.now()
	u.UpdatedAt = u.CreatedAt

	saved := *u
	key := saved.Key()
	tx := memdb.TxFromContext(ctx)
	tx.Stage(unitLock(saved.ID), saved)
	tx.Stage(slotLock(key), saved.ID)
	tx.OnCommit(func() {
		r.units[saved.ID] = saved
		r.slots[key] = saved.ID
	})
	return nil
}

func (r *repoMemory) GetByID(ctx context.Context, id uuid.UUID) (*Unit, error) {
	u, ok := r.read(ctx, id)
	if !ok {
		return nil, apperr.NotFound("inventory unit %s", id)
	}
	return &u, nil
}

func (r *repoMemory) Get(ctx context.Context, key UnitKey) (*Unit, error) {
	u, ok := r.lookup(ctx, key)
	if !ok {
		return nil, apperr.NotFound("inventory unit %s", key)
	}
	return &u, nil
}

func (r *repoMemory) FindOrCreate(ctx context.Context, key UnitKey) (*Unit, bool, error) {
	var (
		out     *Unit
		created bool
	)
	err := r.db.WithinTx(ctx, func(ctx context.Context) error {
		if err := memdb.TxFromContext(ctx).Lock(ctx, slotLock(key)); err != nil {
			return err
		}
		if u, ok := r.lookup(ctx, key); ok {
			out = &u
			return nil
		}
		u := &Unit{Kind: key.Kind, Subtype: key.Subtype, Condition: key.Condition, BankID: key.BankID}
		if err := r.insert(ctx, u); err != nil {
			return err
		}
		out, created = u, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, created, nil
}

func (r *repoMemory) List(_ context.Context, f Filter) ([]*Unit, error) {
	var items []*Unit
	r.db.View(func() {
		for _, u := range r.units {
			u := u
			if f.Match(&u) {
				items = append(items, &u)
			}
		}
	})
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Subtype != b.Subtype {
			return a.Subtype < b.Subtype
		}
		if a.Condition != b.Condition {
			return a.Condition < b.Condition
		}
		return a.BankID.String() < b.BankID.String()
	})
	return items, nil
}

func (r *repoMemory) LockForUpdate(ctx context.Context, id uuid.UUID) (*Unit, error) {
	tx := memdb.TxFromContext(ctx)
	if tx == nil {
		return nil, ErrNoTransaction
	}
	if err := tx.Lock(ctx, unitLock(id)); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *repoMemory) AdjustQuantity(ctx context.Context, id uuid.UUID, delta int) (*Unit, error) {
	tx := memdb.TxFromContext(ctx)
	if tx == nil {
		return nil, ErrNoTransaction
	}
	if err := tx.Lock(ctx, unitLock(id)); err != nil {
		return nil, err
	}
	u, ok := r.read(ctx, id)
	if !ok {
		return nil, apperr.NotFound("inventory unit %s", id)
	}
	if delta > MaxQuantity-u.Quantity {
		return nil, apperr.InvalidArgument("quantity of unit %s would exceed %d", id, MaxQuantity)
	}
	if u.Quantity+delta < 0 {
		return nil, apperr.InsufficientStock(u.Quantity, -delta)
	}
	u.Quantity += delta
	u.UpdatedAt = r.now()

	saved := u
	tx.Stage(unitLock(id), saved)
	tx.OnCommit(func() { r.units[id] = saved })
	return &u, nil
}

package donation

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/bloodbank/bloodbank/internal/platform/apperr"
	"github.com/bloodbank/bloodbank/internal/platform/memdb"
)

type repoMemory struct {
	db     *memdb.DB
	events map[uuid.UUID]Event
	now    func() time.Time
}

// NewRepoMemory returns a Repository on store. Inserts and deletes made inside
// a transaction are visible to that transaction only until it commits.
func NewRepoMemory(store *memdb.DB) Repository {
	return &repoMemory{db: store, events: make(map[uuid.UUID]Event), now: time.Now}
}

func eventKey(id uuid.UUID) string { return "donation_event:" + id.String() }

type tombstone struct{}

func (r *repoMemory) Create(ctx context.Context, e *Event) error {
	if e.Quantity <= 0 {
		return apperr.InvalidArgument("quantity must be positive")
	}
	e.ID = uuid.New()
	e.CreatedAt = r.now()
	saved := *e
	if tx := memdb.TxFromContext(ctx); tx != nil {
		tx.Stage(eventKey(saved.ID), saved)
	}
	r.db.Apply(ctx, func() { r.events[saved.ID] = saved })
	return nil
}

func (r *repoMemory) read(ctx context.Context, id uuid.UUID) (Event, bool) {
	if tx := memdb.TxFromContext(ctx); tx != nil {
		if v, ok := tx.Staged(eventKey(id)); ok {
			e, live := v.(Event)
			return e, live
		}
	}
	var (
		e  Event
		ok bool
	)
	r.db.View(func() { e, ok = r.events[id] })
	return e, ok
}

func (r *repoMemory) GetByID(ctx context.Context, id uuid.UUID) (*Event, error) {
	e, ok := r.read(ctx, id)
	if !ok {
		return nil, apperr.NotFound("donation %s", id)
	}
	return &e, nil
}

func (r *repoMemory) LockForUpdate(ctx context.Context, id uuid.UUID) (*Event, error) {
	tx := memdb.TxFromContext(ctx)
	if tx == nil {
		return nil, ErrNoTransaction
	}
	if err := tx.Lock(ctx, eventKey(id)); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *repoMemory) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := r.read(ctx, id); !ok {
		return apperr.NotFound("donation %s", id)
	}
	if tx := memdb.TxFromContext(ctx); tx != nil {
		tx.Stage(eventKey(id), tombstone{})
	}
	r.db.Apply(ctx, func() { delete(r.events, id) })
	return nil
}

func (r *repoMemory) snapshot(match func(*Event) bool) []*Event {
	var items []*Event
	r.db.View(func() {
		for _, e := range r.events {
			e := e
			if match(&e) {
				items = append(items, &e)
			}
		}
	})
	return items
}

func oldestFirst(items []*Event) {
	sort.Slice(items, func(i, j int) bool {
		if !items[i].Date.Equal(items[j].Date) {
			return items[i].Date.Before(items[j].Date)
		}
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
}

func (r *repoMemory) List(_ context.Context, p ListParams) ([]*Event, int, error) {
	items := r.snapshot(p.match)
	oldestFirst(items)
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	total := len(items)
	start := p.Offset
	if start > total {
		start = total
	}
	end := total
	if p.Limit > 0 && start+p.Limit < total {
		end = start + p.Limit
	}
	return items[start:end], total, nil
}

func (r *repoMemory) ListByDonor(_ context.Context, donorID uuid.UUID) ([]*Event, error) {
	items := r.snapshot(ListParams{DonorID: &donorID}.match)
	oldestFirst(items)
	return items, nil
}

func (r *repoMemory) ListSince(_ context.Context, since time.Time) ([]*Event, error) {
	items := r.snapshot(func(e *Event) bool { return !e.Date.Before(since) })
	oldestFirst(items)
	return items, nil
}

func (r *repoMemory) DetachDonor(ctx context.Context, donorID uuid.UUID) (int, error) {
	return r.detach(ctx, func(e *Event) **uuid.UUID { return &e.DonorID }, donorID), nil
}

func (r *repoMemory) DetachPatient(ctx context.Context, patientID uuid.UUID) (int, error) {
	return r.detach(ctx, func(e *Event) **uuid.UUID { return &e.PatientID }, patientID), nil
}

// detach clears the reference selected by field wherever it equals id. The
// change is applied at commit, so events committed while the caller held the
// party's lock are covered too.
func (r *repoMemory) detach(ctx context.Context, field func(*Event) **uuid.UUID, id uuid.UUID) int {
	matches := func(e *Event) bool {
		ref := *field(e)
		return ref != nil && *ref == id
	}
	n := len(r.snapshot(matches))
	r.db.Apply(ctx, func() {
		for key, e := range r.events {
			if matches(&e) {
				*field(&e) = nil
				r.events[key] = e
			}
		}
	})
	return n
}

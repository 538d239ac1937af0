package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/bloodbank/bloodbank/internal/platform/memdb"
)

type logMemory struct {
	db      *memdb.DB
	records []Record
	now     func() time.Time
}

// NewLogMemory returns a Log on store. Records appended inside a transaction
// get their sequence number, and become visible, only when it commits.
func NewLogMemory(store *memdb.DB) Log {
	return &logMemory{db: store, now: time.Now}
}

func (l *logMemory) Append(ctx context.Context, rec *Record) error {
	rec.ID = uuid.New()
	l.db.Apply(ctx, func() {
		rec.Seq = int64(len(l.records) + 1)
		rec.RecordedAt = l.now()
		l.records = append(l.records, *rec)
	})
	return nil
}

func (l *logMemory) newestFirst(limit int, match func(*Record) bool) []*Record {
	limit = clampLimit(limit)
	var items []*Record
	l.db.View(func() {
		for i := len(l.records) - 1; i >= 0 && len(items) < limit; i-- {
			r := l.records[i]
			if match(&r) {
				items = append(items, &r)
			}
		}
	})
	return items
}

func (l *logMemory) Recent(_ context.Context, limit int) ([]*Record, error) {
	return l.newestFirst(limit, func(*Record) bool { return true }), nil
}

func forUnit(id uuid.UUID) func(*Record) bool {
	return func(r *Record) bool { return r.UnitID != nil && *r.UnitID == id }
}

func (l *logMemory) ListByUnit(_ context.Context, unitID uuid.UUID, limit int) ([]*Record, error) {
	return l.newestFirst(limit, forUnit(unitID)), nil
}

func (l *logMemory) CountByUnit(_ context.Context, unitID uuid.UUID) (int, error) {
	match := forUnit(unitID)
	n := 0
	l.db.View(func() {
		for i := range l.records {
			if match(&l.records[i]) {
				n++
			}
		}
	})
	return n, nil
}

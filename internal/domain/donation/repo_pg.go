package donation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bloodbank/bloodbank/internal/platform/apperr"
	"github.com/bloodbank/bloodbank/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const eventCols = `id, donation_date, quantity, donor_id, patient_id, blood_unit_id, organ_unit_id, bank_id, notes, created_at`

// The filter arguments are nullable; NULL matches every row.
const eventFilter = `
	($1::uuid IS NULL OR donor_id = $1) AND
	($2::uuid IS NULL OR patient_id = $2) AND
	($3::uuid IS NULL OR blood_unit_id = $3 OR organ_unit_id = $3)`

func scanEvent(row pgx.Row) (*Event, error) {
	var (
		e            Event
		blood, organ *uuid.UUID
	)
	if err := row.Scan(&e.ID, &e.Date, &e.Quantity, &e.DonorID, &e.PatientID, &blood, &organ, &e.BankID, &e.Notes, &e.CreatedAt); err != nil {
		return nil, err
	}
	t, err := TargetFromIDs(blood, organ)
	if err != nil {
		return nil, err
	}
	e.Target = t
	return &e, nil
}

func (r *repoPG) Create(ctx context.Context, e *Event) error {
	e.ID = uuid.New()
	blood, organ := e.Target.IDs()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO donation_event (id, donation_date, quantity, donor_id, patient_id, blood_unit_id, organ_unit_id, bank_id, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at`,
		e.ID, e.Date, e.Quantity, e.DonorID, e.PatientID, blood, organ, e.BankID, e.Notes,
	).Scan(&e.CreatedAt)
	return db.Classify(err)
}

func (r *repoPG) get(ctx context.Context, query string, id uuid.UUID) (*Event, error) {
	e, err := scanEvent(r.conn(ctx).QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("donation %s", id)
	}
	if err != nil {
		return nil, db.Classify(err)
	}
	return e, nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Event, error) {
	return r.get(ctx, `SELECT `+eventCols+` FROM donation_event WHERE id = $1`, id)
}

func (r *repoPG) LockForUpdate(ctx context.Context, id uuid.UUID) (*Event, error) {
	if db.TxFromContext(ctx) == nil {
		return nil, ErrNoTransaction
	}
	return r.get(ctx, `SELECT `+eventCols+` FROM donation_event WHERE id = $1 FOR UPDATE`, id)
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM donation_event WHERE id = $1`, id)
	if err != nil {
		return db.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("donation %s", id)
	}
	return nil
}

func (r *repoPG) collect(rows pgx.Rows) ([]*Event, error) {
	defer rows.Close()
	var items []*Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, db.Classify(err)
		}
		items = append(items, e)
	}
	return items, db.Classify(rows.Err())
}

func (r *repoPG) List(ctx context.Context, p ListParams) ([]*Event, int, error) {
	q := r.conn(ctx)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM donation_event WHERE`+eventFilter,
		p.DonorID, p.PatientID, p.UnitID).Scan(&total); err != nil {
		return nil, 0, db.Classify(err)
	}

	var limit interface{}
	if p.Limit > 0 {
		limit = p.Limit
	}
	rows, err := q.Query(ctx, `SELECT `+eventCols+` FROM donation_event WHERE`+eventFilter+`
		ORDER BY donation_date DESC, created_at DESC LIMIT $4 OFFSET $5`,
		p.DonorID, p.PatientID, p.UnitID, limit, p.Offset)
	if err != nil {
		return nil, 0, db.Classify(err)
	}
	items, err := r.collect(rows)
	return items, total, err
}

func (r *repoPG) ListByDonor(ctx context.Context, donorID uuid.UUID) ([]*Event, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+eventCols+` FROM donation_event
		WHERE donor_id = $1 ORDER BY donation_date, created_at`, donorID)
	if err != nil {
		return nil, db.Classify(err)
	}
	return r.collect(rows)
}

func (r *repoPG) ListSince(ctx context.Context, since time.Time) ([]*Event, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+eventCols+` FROM donation_event
		WHERE donation_date >= $1 ORDER BY donation_date`, since)
	if err != nil {
		return nil, db.Classify(err)
	}
	return r.collect(rows)
}

func (r *repoPG) DetachDonor(ctx context.Context, donorID uuid.UUID) (int, error) {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE donation_event SET donor_id = NULL WHERE donor_id = $1`, donorID)
	if err != nil {
		return 0, db.Classify(err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *repoPG) DetachPatient(ctx context.Context, patientID uuid.UUID) (int, error) {
	tag, err := r.conn(ctx).Exec(ctx, `UPDATE donation_event SET patient_id = NULL WHERE patient_id = $1`, patientID)
	if err != nil {
		return 0, db.Classify(err)
	}
	return int(tag.RowsAffected()), nil
}

package audit

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bloodbank/bloodbank/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type logPG struct{ pool *pgxpool.Pool }

func NewLogPG(pool *pgxpool.Pool) Log {
	return &logPG{pool: pool}
}

func (l *logPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return l.pool
}

const recordCols = `id, seq, recorded_at, affected_table, action, unit_id, donation_id, details`

func scanRecord(row pgx.Row) (*Record, error) {
	var r Record
	err := row.Scan(&r.ID, &r.Seq, &r.RecordedAt, &r.AffectedTable, &r.Action, &r.UnitID, &r.DonationID, &r.Details)
	return &r, err
}

func (l *logPG) Append(ctx context.Context, rec *Record) error {
	rec.ID = uuid.New()
	err := l.conn(ctx).QueryRow(ctx, `
		INSERT INTO audit_record (id, affected_table, action, unit_id, donation_id, details)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING seq, recorded_at`,
		rec.ID, rec.AffectedTable, rec.Action, rec.UnitID, rec.DonationID, rec.Details,
	).Scan(&rec.Seq, &rec.RecordedAt)
	return db.Classify(err)
}

func (l *logPG) list(ctx context.Context, query string, args ...interface{}) ([]*Record, error) {
	rows, err := l.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, db.Classify(err)
	}
	defer rows.Close()

	var items []*Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, db.Classify(err)
		}
		items = append(items, r)
	}
	return items, db.Classify(rows.Err())
}

func (l *logPG) Recent(ctx context.Context, limit int) ([]*Record, error) {
	return l.list(ctx, `SELECT `+recordCols+` FROM audit_record ORDER BY seq DESC LIMIT $1`, clampLimit(limit))
}

func (l *logPG) ListByUnit(ctx context.Context, unitID uuid.UUID, limit int) ([]*Record, error) {
	return l.list(ctx, `SELECT `+recordCols+` FROM audit_record WHERE unit_id = $1 ORDER BY seq DESC LIMIT $2`,
		unitID, clampLimit(limit))
}

func (l *logPG) CountByUnit(ctx context.Context, unitID uuid.UUID) (int, error) {
	var n int
	err := l.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM audit_record WHERE unit_id = $1`, unitID).Scan(&n)
	return n, db.Classify(err)
}

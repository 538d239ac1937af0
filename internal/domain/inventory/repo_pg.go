package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"

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

const bankCols = `id, name, location, kind, created_at`

const unitCols = `id, kind, subtype, condition, quantity, bank_id, created_at, updated_at`

func scanBank(row pgx.Row) (*Bank, error) {
	var b Bank
	if err := row.Scan(&b.ID, &b.Name, &b.Location, &b.Kind, &b.CreatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func scanUnit(row pgx.Row) (*Unit, error) {
	var u Unit
	if err := row.Scan(&u.ID, &u.Kind, &u.Subtype, &u.Condition, &u.Quantity, &u.BankID, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.Wrap(apperr.CodeNotFound, err, format, args...)
	}
	return db.Classify(err)
}

func (r *repoPG) CreateBank(ctx context.Context, b *Bank) error {
	b.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO bank (id, name, location, kind)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		b.ID, b.Name, b.Location, b.Kind).Scan(&b.CreatedAt)
	return db.Classify(err)
}

func (r *repoPG) GetBank(ctx context.Context, id uuid.UUID) (*Bank, error) {
	b, err := scanBank(r.conn(ctx).QueryRow(ctx, `SELECT `+bankCols+` FROM bank WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "bank %s", id)
	}
	return b, nil
}

func (r *repoPG) ListBanks(ctx context.Context) ([]*Bank, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+bankCols+` FROM bank ORDER BY kind, name`)
	if err != nil {
		return nil, db.Classify(err)
	}
	defer rows.Close()
	var items []*Bank
	for rows.Next() {
		b, err := scanBank(rows)
		if err != nil {
			return nil, db.Classify(err)
		}
		items = append(items, b)
	}
	return items, db.Classify(rows.Err())
}

func (r *repoPG) Create(ctx context.Context, u *Unit) error {
	if u.Quantity < 0 || u.Quantity > MaxQuantity {
		return apperr.InvalidArgument("quantity must be between 0 and %d", MaxQuantity)
	}
	u.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO inventory_unit (id, kind, subtype, condition, quantity, bank_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		u.ID, u.Kind, u.Subtype, u.Condition, u.Quantity, u.BankID).Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return db.Classify(err)
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Unit, error) {
	u, err := scanUnit(r.conn(ctx).QueryRow(ctx, `SELECT `+unitCols+` FROM inventory_unit WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err, "inventory unit %s", id)
	}
	return u, nil
}

func (r *repoPG) Get(ctx context.Context, key UnitKey) (*Unit, error) {
	u, err := scanUnit(r.conn(ctx).QueryRow(ctx, `
		SELECT `+unitCols+` FROM inventory_unit
		WHERE kind = $1 AND subtype = $2 AND condition = $3 AND bank_id = $4`,
		key.Kind, key.Subtype, key.Condition, key.BankID))
	if err != nil {
		return nil, notFound(err, "inventory unit %s", key)
	}
	return u, nil
}

// FindOrCreate relies on the slot's unique constraint: a concurrent insert of
// the same key turns into DO NOTHING and the follow-up SELECT sees it.
func (r *repoPG) FindOrCreate(ctx context.Context, key UnitKey) (*Unit, bool, error) {
	u, err := scanUnit(r.conn(ctx).QueryRow(ctx, `
		INSERT INTO inventory_unit (id, kind, subtype, condition, quantity, bank_id)
		VALUES ($1, $2, $3, $4, 0, $5)
		ON CONFLICT (kind, subtype, condition, bank_id) DO NOTHING
		RETURNING `+unitCols,
		uuid.New(), key.Kind, key.Subtype, key.Condition, key.BankID))
	if err == nil {
		return u, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, db.Classify(err)
	}
	u, err = r.Get(ctx, key)
	return u, false, err
}

func (r *repoPG) List(ctx context.Context, f Filter) ([]*Unit, error) {
	var where []string
	var args []interface{}
	add := func(clause string, v interface{}) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.Kind != "" {
		add("kind = $%d", f.Kind)
	}
	if f.Subtype != "" {
		add("lower(subtype) = lower($%d)", f.Subtype)
	}
	if f.BankID != uuid.Nil {
		add("bank_id = $%d", f.BankID)
	}
	if f.InStockOnly {
		where = append(where, "quantity > 0")
	}

	q := `SELECT ` + unitCols + ` FROM inventory_unit`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	q += ` ORDER BY kind, subtype, condition, bank_id`

	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, db.Classify(err)
	}
	defer rows.Close()
	var items []*Unit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, db.Classify(err)
		}
		items = append(items, u)
	}
	return items, db.Classify(rows.Err())
}

func (r *repoPG) LockForUpdate(ctx context.Context, id uuid.UUID) (*Unit, error) {
	tx := db.TxFromContext(ctx)
	if tx == nil {
		return nil, ErrNoTransaction
	}
	u, err := scanUnit(tx.QueryRow(ctx, `SELECT `+unitCols+` FROM inventory_unit WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		return nil, notFound(err, "inventory unit %s", id)
	}
	return u, nil
}

// AdjustQuantity is a guarded update: the WHERE clause refuses to drive the
// quantity negative, so the check and the write are one statement.
func (r *repoPG) AdjustQuantity(ctx context.Context, id uuid.UUID, delta int) (*Unit, error) {
	tx := db.TxFromContext(ctx)
	if tx == nil {
		return nil, ErrNoTransaction
	}
	if delta > MaxQuantity || delta < -MaxQuantity {
		return nil, apperr.InvalidArgument("quantity change %d is out of range", delta)
	}
	u, err := scanUnit(tx.QueryRow(ctx, `
		UPDATE inventory_unit SET quantity = quantity + $2, updated_at = NOW()
		WHERE id = $1 AND quantity + $2 >= 0
		RETURNING `+unitCols, id, delta))
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, db.Classify(err)
	}

	var available int
	if err := tx.QueryRow(ctx, `SELECT quantity FROM inventory_unit WHERE id = $1`, id).Scan(&available); err != nil {
		return nil, notFound(err, "inventory unit %s", id)
	}
	return nil, apperr.InsufficientStock(available, -delta)
}

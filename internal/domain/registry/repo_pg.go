package registry

import (
	"context"
	"errors"

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

func connFor(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

// pageArgs turns a ListParams into LIMIT/OFFSET arguments; LIMIT NULL means
// no limit in PostgreSQL.
func pageArgs(p ListParams) (interface{}, int) {
	if p.Limit <= 0 {
		return nil, p.Offset
	}
	return p.Limit, p.Offset
}

// -- Donor --

type donorRepoPG struct{ pool *pgxpool.Pool }

func NewDonorRepoPG(pool *pgxpool.Pool) DonorRepository {
	return &donorRepoPG{pool: pool}
}

const donorCols = `id, name, age, gender, blood_group, address, contact, disease_history, created_at`

func scanDonor(row pgx.Row) (*Donor, error) {
	var d Donor
	err := row.Scan(&d.ID, &d.Name, &d.Age, &d.Gender, &d.BloodGroup, &d.Address, &d.Contact, &d.DiseaseHistory, &d.CreatedAt)
	return &d, err
}

func (r *donorRepoPG) Create(ctx context.Context, d *Donor) error {
	d.ID = uuid.New()
	err := connFor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO donor (id, name, age, gender, blood_group, address, contact, disease_history)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		d.ID, d.Name, d.Age, d.Gender, d.BloodGroup, d.Address, d.Contact, d.DiseaseHistory).Scan(&d.CreatedAt)
	return db.Classify(err)
}

func (r *donorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Donor, error) {
	d, err := scanDonor(connFor(ctx, r.pool).QueryRow(ctx, `SELECT `+donorCols+` FROM donor WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("donor %s", id)
	}
	if err != nil {
		return nil, db.Classify(err)
	}
	return d, nil
}

func (r *donorRepoPG) List(ctx context.Context, p ListParams) ([]*Donor, int, error) {
	q := connFor(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM donor WHERE $1 = '' OR name ILIKE '%' || $1 || '%'`, p.Name).Scan(&total); err != nil {
		return nil, 0, db.Classify(err)
	}
	limit, offset := pageArgs(p)
	rows, err := q.Query(ctx, `
		SELECT `+donorCols+` FROM donor
		WHERE $1 = '' OR name ILIKE '%' || $1 || '%'
		ORDER BY name, id LIMIT $2 OFFSET $3`, p.Name, limit, offset)
	if err != nil {
		return nil, 0, db.Classify(err)
	}
	defer rows.Close()
	var items []*Donor
	for rows.Next() {
		d, err := scanDonor(rows)
		if err != nil {
			return nil, 0, db.Classify(err)
		}
		items = append(items, d)
	}
	return items, total, db.Classify(rows.Err())
}

func (r *donorRepoPG) Update(ctx context.Context, d *Donor) error {
	err := connFor(ctx, r.pool).QueryRow(ctx, `
		UPDATE donor SET name = $2, age = $3, gender = $4, blood_group = $5,
			address = $6, contact = $7, disease_history = $8
		WHERE id = $1
		RETURNING created_at`,
		d.ID, d.Name, d.Age, d.Gender, d.BloodGroup, d.Address, d.Contact, d.DiseaseHistory).Scan(&d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("donor %s", d.ID)
	}
	return db.Classify(err)
}

// Delete removes the donor; donation_event.donor_id is cleared by the
// ON DELETE SET NULL foreign key.
func (r *donorRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := connFor(ctx, r.pool).Exec(ctx, `DELETE FROM donor WHERE id = $1`, id)
	if err != nil {
		return db.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("donor %s", id)
	}
	return nil
}

func (r *donorRepoPG) LockForShare(ctx context.Context, id uuid.UUID) (*Donor, error) {
	d, err := scanDonor(connFor(ctx, r.pool).QueryRow(ctx, `SELECT `+donorCols+` FROM donor WHERE id = $1 FOR KEY SHARE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("donor %s", id)
	}
	if err != nil {
		return nil, db.Classify(err)
	}
	return d, nil
}

// -- Patient --

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

const patientCols = `id, name, age, gender, blood_group, address, contact, intake_date, created_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.Name, &p.Age, &p.Gender, &p.BloodGroup, &p.Address, &p.Contact, &p.IntakeDate, &p.CreatedAt)
	return &p, err
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	err := connFor(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO patient (id, name, age, gender, blood_group, address, contact, intake_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at`,
		p.ID, p.Name, p.Age, p.Gender, p.BloodGroup, p.Address, p.Contact, p.IntakeDate).Scan(&p.CreatedAt)
	return db.Classify(err)
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := scanPatient(connFor(ctx, r.pool).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("patient %s", id)
	}
	if err != nil {
		return nil, db.Classify(err)
	}
	return p, nil
}

func (r *patientRepoPG) List(ctx context.Context, lp ListParams) ([]*Patient, int, error) {
	q := connFor(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM patient WHERE $1 = '' OR name ILIKE '%' || $1 || '%'`, lp.Name).Scan(&total); err != nil {
		return nil, 0, db.Classify(err)
	}
	limit, offset := pageArgs(lp)
	rows, err := q.Query(ctx, `
		SELECT `+patientCols+` FROM patient
		WHERE $1 = '' OR name ILIKE '%' || $1 || '%'
		ORDER BY intake_date, id LIMIT $2 OFFSET $3`, lp.Name, limit, offset)
	if err != nil {
		return nil, 0, db.Classify(err)
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, db.Classify(err)
		}
		items = append(items, p)
	}
	return items, total, db.Classify(rows.Err())
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	err := connFor(ctx, r.pool).QueryRow(ctx, `
		UPDATE patient SET name = $2, age = $3, gender = $4, blood_group = $5,
			address = $6, contact = $7, intake_date = $8
		WHERE id = $1
		RETURNING created_at`,
		p.ID, p.Name, p.Age, p.Gender, p.BloodGroup, p.Address, p.Contact, p.IntakeDate).Scan(&p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("patient %s", p.ID)
	}
	return db.Classify(err)
}

func (r *patientRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := connFor(ctx, r.pool).Exec(ctx, `DELETE FROM patient WHERE id = $1`, id)
	if err != nil {
		return db.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("patient %s", id)
	}
	return nil
}

func (r *patientRepoPG) LockForShare(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := scanPatient(connFor(ctx, r.pool).QueryRow(ctx, `SELECT `+patientCols+` FROM patient WHERE id = $1 FOR KEY SHARE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("patient %s", id)
	}
	if err != nil {
		return nil, db.Classify(err)
	}
	return p, nil
}

package registry

import (
	"context"

	"github.com/google/uuid"
)

type DonorRepository interface {
	Create(ctx context.Context, d *Donor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Donor, error)
	List(ctx context.Context, p ListParams) ([]*Donor, int, error)
	// Update replaces every mutable field of the donor with id d.ID and fills
	// in CreatedAt.
	Update(ctx context.Context, d *Donor) error
	Delete(ctx context.Context, id uuid.UUID) error
	// LockForShare reads the donor and keeps it from being deleted until the
	// enclosing transaction ends.
	LockForShare(ctx context.Context, id uuid.UUID) (*Donor, error)
}

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	List(ctx context.Context, p ListParams) ([]*Patient, int, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id uuid.UUID) error
	LockForShare(ctx context.Context, id uuid.UUID) (*Patient, error)
}

// References clears donation links to a donor or patient that is being
// deleted. Donation events keep their quantities and dates; only the party
// reference becomes empty. Both methods run inside the deleting transaction.
type References interface {
	DetachDonor(ctx context.Context, donorID uuid.UUID) (int, error)
	DetachPatient(ctx context.Context, patientID uuid.UUID) (int, error)
}

type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

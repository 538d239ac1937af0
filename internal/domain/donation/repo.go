package donation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNoTransaction is returned by LockForUpdate outside a transaction.
var ErrNoTransaction = errors.New("donation: locking an event requires a transaction")

type Repository interface {
	Create(ctx context.Context, e *Event) error
	GetByID(ctx context.Context, id uuid.UUID) (*Event, error)
	// LockForUpdate reads the event and holds its lock until the enclosing
	// transaction ends.
	LockForUpdate(ctx context.Context, id uuid.UUID) (*Event, error)
	Delete(ctx context.Context, id uuid.UUID) error
	// List returns matching events newest first, with the total match count.
	List(ctx context.Context, p ListParams) ([]*Event, int, error)
	// ListByDonor returns every event for a donor, oldest first.
	ListByDonor(ctx context.Context, donorID uuid.UUID) ([]*Event, error)
	// ListSince returns events dated at or after since.
	ListSince(ctx context.Context, since time.Time) ([]*Event, error)
	// DetachDonor and DetachPatient clear the party reference on every event
	// that names it and report how many events were changed.
	DetachDonor(ctx context.Context, donorID uuid.UUID) (int, error)
	DetachPatient(ctx context.Context, patientID uuid.UUID) (int, error)
}

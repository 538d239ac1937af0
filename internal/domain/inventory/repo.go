package inventory

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrNoTransaction is returned by mutating calls made outside a transaction.
var ErrNoTransaction = errors.New("inventory: quantity changes require a transaction")

type Repository interface {
	CreateBank(ctx context.Context, b *Bank) error
	GetBank(ctx context.Context, id uuid.UUID) (*Bank, error)
	ListBanks(ctx context.Context) ([]*Bank, error)

	// Create inserts a new slot with the unit's quantity. An existing slot
	// with the same key is INVALID_ARGUMENT.
	Create(ctx context.Context, u *Unit) error
	GetByID(ctx context.Context, id uuid.UUID) (*Unit, error)
	Get(ctx context.Context, key UnitKey) (*Unit, error)
	// FindOrCreate returns the slot for key, creating it with quantity 0 when
	// absent. created reports which happened.
	FindOrCreate(ctx context.Context, key UnitKey) (u *Unit, created bool, err error)
	List(ctx context.Context, f Filter) ([]*Unit, error)

	// LockForUpdate reads the unit and holds its exclusive lock until the
	// enclosing transaction ends.
	LockForUpdate(ctx context.Context, id uuid.UUID) (*Unit, error)
	// AdjustQuantity applies delta and returns the updated unit. It fails with
	// INSUFFICIENT_STOCK if the result would be negative and NOT_FOUND if the
	// unit does not exist.
	AdjustQuantity(ctx context.Context, id uuid.UUID, delta int) (*Unit, error)
}

package audit

import (
	"context"

	"github.com/google/uuid"
)

// Log is the audit trail. Records are never updated or deleted.
type Log interface {
	// Append writes rec inside the transaction carried by ctx, if any.
	Append(ctx context.Context, rec *Record) error
	// Recent returns committed records, newest first.
	Recent(ctx context.Context, limit int) ([]*Record, error)
	ListByUnit(ctx context.Context, unitID uuid.UUID, limit int) ([]*Record, error)
	CountByUnit(ctx context.Context, unitID uuid.UUID) (int, error)
}

package audit

import (
	"time"

	"github.com/google/uuid"
)

type Action string

const (
	ActionInsert Action = "INSERT"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// Tables named in AffectedTable.
const (
	TableDonationEvent = "donation_event"
	TableInventoryUnit = "inventory_unit"
)

// DefaultRecentLimit caps Recent when the caller asks for more or for none.
const DefaultRecentLimit = 100

// Record is one entry in the append-only audit trail. Seq is assigned when the
// record is committed and orders the trail.
type Record struct {
	ID            uuid.UUID  `json:"id"`
	Seq           int64      `json:"seq"`
	RecordedAt    time.Time  `json:"recorded_at"`
	AffectedTable string     `json:"affected_table"`
	Action        Action     `json:"action"`
	UnitID        *uuid.UUID `json:"unit_id,omitempty"`
	DonationID    *uuid.UUID `json:"donation_id,omitempty"`
	Details       string     `json:"details"`
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > DefaultRecentLimit {
		return DefaultRecentLimit
	}
	return limit
}

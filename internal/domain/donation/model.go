package donation

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/bloodbank/bloodbank/internal/domain/inventory"
	"github.com/bloodbank/bloodbank/internal/platform/apperr"
)

// Target is the inventory unit a donation draws from: either a blood unit or
// an organ unit, never both.
type Target struct {
	kind   inventory.Kind
	unitID uuid.UUID
}

func BloodTarget(unitID uuid.UUID) Target { return Target{kind: inventory.KindBlood, unitID: unitID} }

func OrganTarget(unitID uuid.UUID) Target { return Target{kind: inventory.KindOrgan, unitID: unitID} }

// TargetFromIDs builds a Target from a pair of nullable references. Exactly one
// must be set.
func TargetFromIDs(bloodUnitID, organUnitID *uuid.UUID) (Target, error) {
	switch {
	case bloodUnitID != nil && organUnitID == nil:
		return BloodTarget(*bloodUnitID), nil
	case organUnitID != nil && bloodUnitID == nil:
		return OrganTarget(*organUnitID), nil
	case bloodUnitID != nil:
		return Target{}, apperr.New(apperr.CodeAmbiguousTarget, "both blood_unit_id and organ_unit_id are set")
	default:
		return Target{}, apperr.New(apperr.CodeAmbiguousTarget, "one of blood_unit_id or organ_unit_id is required")
	}
}

func (t Target) Kind() inventory.Kind { return t.kind }

func (t Target) UnitID() uuid.UUID { return t.unitID }

func (t Target) IsZero() bool { return t.unitID == uuid.Nil }

// IDs splits the target back into the two nullable column values.
func (t Target) IDs() (bloodUnitID, organUnitID *uuid.UUID) {
	id := t.unitID
	if t.kind == inventory.KindOrgan {
		return nil, &id
	}
	return &id, nil
}

type targetJSON struct {
	Kind   inventory.Kind `json:"kind"`
	UnitID uuid.UUID      `json:"unit_id"`
}

func (t Target) MarshalJSON() ([]byte, error) {
	return json.Marshal(targetJSON{Kind: t.kind, UnitID: t.unitID})
}

func (t *Target) UnmarshalJSON(b []byte) error {
	var v targetJSON
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	if _, err := inventory.ParseKind(string(v.Kind)); err != nil {
		return err
	}
	t.kind, t.unitID = v.Kind, v.UnitID
	return nil
}

// Event is a committed donation. It is never edited; cancelling it deletes it
// and restores the stock it took.
type Event struct {
	ID        uuid.UUID  `json:"id"`
	Date      time.Time  `json:"date"`
	Quantity  int        `json:"quantity"`
	DonorID   *uuid.UUID `json:"donor_id,omitempty"`
	PatientID *uuid.UUID `json:"patient_id,omitempty"`
	Target    Target     `json:"target"`
	BankID    uuid.UUID  `json:"bank_id"`
	Notes     string     `json:"notes,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// Request is a donation as submitted. A zero Date means now.
type Request struct {
	Target    Target
	Quantity  int
	DonorID   *uuid.UUID
	PatientID *uuid.UUID
	Notes     string
	Date      time.Time
}

// State is the stage a donation attempt has reached.
type State string

const (
	StateReceived   State = "received"
	StateValidating State = "validating"
	StateAdmitted   State = "admitted"
	StateCommitted  State = "committed"
	StateRejected   State = "rejected"
)

// ListParams filters donation listings; nil fields match everything.
type ListParams struct {
	DonorID   *uuid.UUID
	PatientID *uuid.UUID
	UnitID    *uuid.UUID
	Limit     int
	Offset    int
}

func (p ListParams) match(e *Event) bool {
	if p.DonorID != nil && (e.DonorID == nil || *e.DonorID != *p.DonorID) {
		return false
	}
	if p.PatientID != nil && (e.PatientID == nil || *e.PatientID != *p.PatientID) {
		return false
	}
	if p.UnitID != nil && e.Target.UnitID() != *p.UnitID {
		return false
	}
	return true
}

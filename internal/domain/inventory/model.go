package inventory

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bloodbank/bloodbank/internal/platform/apperr"
)

// Kind distinguishes blood from organ inventory.
type Kind string

const (
	KindBlood Kind = "blood"
	KindOrgan Kind = "organ"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindBlood:
		return KindBlood, nil
	case KindOrgan:
		return KindOrgan, nil
	}
	return "", apperr.InvalidArgument("unknown inventory kind %q", s)
}

// BloodGroup is one of the eight ABO/Rh groups.
type BloodGroup string

const (
	OPos  BloodGroup = "O+"
	ONeg  BloodGroup = "O-"
	APos  BloodGroup = "A+"
	ANeg  BloodGroup = "A-"
	BPos  BloodGroup = "B+"
	BNeg  BloodGroup = "B-"
	ABPos BloodGroup = "AB+"
	ABNeg BloodGroup = "AB-"
)

// BloodGroups lists every group in display order.
var BloodGroups = []BloodGroup{APos, ANeg, BPos, BNeg, ABPos, ABNeg, OPos, ONeg}

func ParseBloodGroup(s string) (BloodGroup, error) {
	g := BloodGroup(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range BloodGroups {
		if g == known {
			return g, nil
		}
	}
	return "", apperr.InvalidArgument("unknown blood group %q", s)
}

// OrganType names a transplantable organ or tissue.
type OrganType string

const (
	OrganHeart    OrganType = "Heart"
	OrganLiver    OrganType = "Liver"
	OrganKidney   OrganType = "Kidney"
	OrganLung     OrganType = "Lung"
	OrganPancreas OrganType = "Pancreas"
	OrganCornea   OrganType = "Cornea"
	OrganBone     OrganType = "Bone"
)

var OrganTypes = []OrganType{OrganHeart, OrganLiver, OrganKidney, OrganLung, OrganPancreas, OrganCornea, OrganBone}

// ParseOrganType is case-insensitive and returns the canonical spelling.
func ParseOrganType(s string) (OrganType, error) {
	for _, known := range OrganTypes {
		if strings.EqualFold(strings.TrimSpace(s), string(known)) {
			return known, nil
		}
	}
	return "", apperr.InvalidArgument("unknown organ type %q", s)
}

// Condition grades an organ unit. Blood units carry no condition.
type Condition string

const (
	ConditionExcellent Condition = "Excellent"
	ConditionGood      Condition = "Good"
	ConditionFair      Condition = "Fair"
	ConditionPoor      Condition = "Poor"
)

var Conditions = []Condition{ConditionExcellent, ConditionGood, ConditionFair, ConditionPoor}

func ParseCondition(s string) (Condition, error) {
	for _, known := range Conditions {
		if strings.EqualFold(strings.TrimSpace(s), string(known)) {
			return known, nil
		}
	}
	return "", apperr.InvalidArgument("unknown organ condition %q", s)
}

type BankKind string

const (
	BloodBank BankKind = "blood_bank"
	OrganBank BankKind = "organ_bank"
)

// Holds reports whether a bank of this kind stores units of k.
func (b BankKind) Holds(k Kind) bool {
	return (b == BloodBank && k == KindBlood) || (b == OrganBank && k == KindOrgan)
}

type Bank struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Location  string    `json:"location"`
	Kind      BankKind  `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
}

// MaxQuantity is the largest quantity a unit can hold, matching the INTEGER
// column that stores it.
const MaxQuantity = math.MaxInt32

// Unit is one (kind, subtype, condition, bank) inventory slot. Units are
// never deleted; quantity only changes through the donation coordinator.
type Unit struct {
	ID        uuid.UUID `json:"id"`
	Kind      Kind      `json:"kind"`
	Subtype   string    `json:"subtype"`
	Condition Condition `json:"condition,omitempty"`
	Quantity  int       `json:"quantity"`
	BankID    uuid.UUID `json:"bank_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *Unit) Key() UnitKey {
	return UnitKey{Kind: u.Kind, Subtype: u.Subtype, Condition: u.Condition, BankID: u.BankID}
}

// BloodGroup returns the unit's group; ok is false for organ units.
func (u *Unit) BloodGroup() (BloodGroup, bool) {
	if u.Kind != KindBlood {
		return "", false
	}
	return BloodGroup(u.Subtype), true
}

// UnitKey identifies an inventory slot.
type UnitKey struct {
	Kind      Kind
	Subtype   string
	Condition Condition
	BankID    uuid.UUID
}

func (k UnitKey) String() string {
	if k.Kind == KindBlood {
		return fmt.Sprintf("blood/%s@%s", k.Subtype, k.BankID)
	}
	return fmt.Sprintf("organ/%s/%s@%s", k.Subtype, k.Condition, k.BankID)
}

// BloodKey builds the key for a blood-group slot.
func BloodKey(group string, bankID uuid.UUID) (UnitKey, error) {
	return NewUnitKey(KindBlood, group, "", bankID)
}

// NewUnitKey validates and canonicalises a slot key. Blood slots must not
// carry a condition; organ slots must.
func NewUnitKey(kind Kind, subtype, condition string, bankID uuid.UUID) (UnitKey, error) {
	if bankID == uuid.Nil {
		return UnitKey{}, apperr.InvalidArgument("bank id is required")
	}
	switch kind {
	case KindBlood:
		g, err := ParseBloodGroup(subtype)
		if err != nil {
			return UnitKey{}, err
		}
		if strings.TrimSpace(condition) != "" {
			return UnitKey{}, apperr.InvalidArgument("blood units do not carry a condition")
		}
		return UnitKey{Kind: KindBlood, Subtype: string(g), BankID: bankID}, nil
	case KindOrgan:
		o, err := ParseOrganType(subtype)
		if err != nil {
			return UnitKey{}, err
		}
		c, err := ParseCondition(condition)
		if err != nil {
			return UnitKey{}, err
		}
		return UnitKey{Kind: KindOrgan, Subtype: string(o), Condition: c, BankID: bankID}, nil
	}
	return UnitKey{}, apperr.InvalidArgument("unknown inventory kind %q", kind)
}

// Filter narrows GetInventory. Zero values match everything.
type Filter struct {
	Kind        Kind
	Subtype     string
	BankID      uuid.UUID
	InStockOnly bool
}

func (f Filter) Match(u *Unit) bool {
	if f.Kind != "" && u.Kind != f.Kind {
		return false
	}
	if f.Subtype != "" && !strings.EqualFold(u.Subtype, f.Subtype) {
		return false
	}
	if f.BankID != uuid.Nil && u.BankID != f.BankID {
		return false
	}
	if f.InStockOnly && u.Quantity <= 0 {
		return false
	}
	return true
}

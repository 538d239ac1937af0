// Package scoring holds the pure scoring functions: blood compatibility,
// donor risk, inventory value and patient waiting priority. None of them
// touch storage; callers supply every input.
package scoring

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/bloodbank/bloodbank/internal/domain/inventory"
	"github.com/bloodbank/bloodbank/internal/platform/apperr"
)

const (
	ScoreExact      = 100
	ScoreCompatible = 85
	ScoreNone       = 0
)

// donorsFor lists, per recipient group, the donor groups whose red cells the
// recipient can receive.
var donorsFor = map[inventory.BloodGroup][]inventory.BloodGroup{
	inventory.ONeg:  {inventory.ONeg},
	inventory.OPos:  {inventory.ONeg, inventory.OPos},
	inventory.ANeg:  {inventory.ONeg, inventory.ANeg},
	inventory.APos:  {inventory.ONeg, inventory.OPos, inventory.ANeg, inventory.APos},
	inventory.BNeg:  {inventory.ONeg, inventory.BNeg},
	inventory.BPos:  {inventory.ONeg, inventory.OPos, inventory.BNeg, inventory.BPos},
	inventory.ABNeg: {inventory.ONeg, inventory.ANeg, inventory.BNeg, inventory.ABNeg},
	inventory.ABPos: {
		inventory.ONeg, inventory.OPos, inventory.ANeg, inventory.APos,
		inventory.BNeg, inventory.BPos, inventory.ABNeg, inventory.ABPos,
	},
}

// CanDonate reports whether recipient can receive donor's red cells.
func CanDonate(donor, recipient inventory.BloodGroup) bool {
	for _, g := range donorsFor[recipient] {
		if g == donor {
			return true
		}
	}
	return false
}

// CompatibleDonors returns the donor groups acceptable for recipient.
func CompatibleDonors(recipient inventory.BloodGroup) []inventory.BloodGroup {
	out := make([]inventory.BloodGroup, len(donorsFor[recipient]))
	copy(out, donorsFor[recipient])
	return out
}

// CompatibilityScore rates donor blood for recipient. Identical groups, the
// universal donor O- and the universal recipient AB+ score 100; any other
// compatible pair 85; incompatible pairs 0. The relation is not symmetric.
func CompatibilityScore(donor, recipient inventory.BloodGroup) (int, error) {
	if _, err := inventory.ParseBloodGroup(string(donor)); err != nil {
		return 0, err
	}
	if _, err := inventory.ParseBloodGroup(string(recipient)); err != nil {
		return 0, err
	}
	switch {
	case !CanDonate(donor, recipient):
		return ScoreNone, nil
	case donor == recipient, donor == inventory.ONeg, recipient == inventory.ABPos:
		return ScoreExact, nil
	default:
		return ScoreCompatible, nil
	}
}

type RiskLevel string

const (
	LowRisk      RiskLevel = "LOW_RISK"
	ModerateRisk RiskLevel = "MODERATE_RISK"
	HighRisk     RiskLevel = "HIGH_RISK"
)

var (
	disqualifying = []string{"cancer", "heart", "hiv", "hepatitis"}
	cautionary    = []string{"diabetes", "hypertension", "asthma"}
)

// NoDisease reports whether disease text means "no recorded disease".
func NoDisease(disease string) bool {
	switch strings.ToLower(strings.TrimSpace(disease)) {
	case "", "none", "null", "n/a", "na", "nil":
		return true
	}
	return false
}

// DonorRiskLevel classifies a donor. Ages outside 18..65 or a disqualifying
// disease are HIGH_RISK. Ages over 55, a cautionary condition, or any other
// recorded disease are MODERATE_RISK.
func DonorRiskLevel(age int, disease string) (RiskLevel, error) {
	if age < 0 {
		return "", apperr.InvalidArgument("age must not be negative")
	}
	d := strings.ToLower(strings.TrimSpace(disease))
	hasDisease := !NoDisease(d)

	if age < 18 || age > 65 || (hasDisease && containsAny(d, disqualifying)) {
		return HighRisk, nil
	}
	if age > 55 || hasDisease {
		return ModerateRisk, nil
	}
	return LowRisk, nil
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// Per-unit rates in INR.
var (
	bloodRates = map[inventory.BloodGroup]int64{
		inventory.OPos: 1500, inventory.APos: 1500, inventory.BPos: 1800, inventory.ABPos: 2000,
		inventory.ONeg: 3000, inventory.ANeg: 2500, inventory.BNeg: 2800, inventory.ABNeg: 3500,
	}
	organRates = map[inventory.OrganType]int64{
		inventory.OrganKidney:   500000,
		inventory.OrganLiver:    800000,
		inventory.OrganHeart:    1200000,
		inventory.OrganLung:     1000000,
		inventory.OrganPancreas: 600000,
		inventory.OrganCornea:   50000,
		inventory.OrganBone:     30000,
	}
)

// UnitRate returns the INR value of a single unit of subtype.
func UnitRate(kind inventory.Kind, subtype string) (decimal.Decimal, error) {
	switch kind {
	case inventory.KindBlood:
		g, err := inventory.ParseBloodGroup(subtype)
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromInt(bloodRates[g]), nil
	case inventory.KindOrgan:
		o, err := inventory.ParseOrganType(subtype)
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromInt(organRates[o]), nil
	}
	return decimal.Zero, apperr.InvalidArgument("unknown inventory kind %q", kind)
}

// InventoryValue is quantity × the subtype's unit rate, in INR.
func InventoryValue(kind inventory.Kind, quantity int, subtype string) (decimal.Decimal, error) {
	if quantity < 0 {
		return decimal.Zero, apperr.InvalidArgument("quantity must not be negative")
	}
	rate, err := UnitRate(kind, subtype)
	if err != nil {
		return decimal.Zero, err
	}
	return rate.Mul(decimal.NewFromInt(int64(quantity))), nil
}

var rarity = map[inventory.BloodGroup]int{
	inventory.OPos: 0, inventory.APos: 2, inventory.BPos: 6, inventory.ONeg: 8,
	inventory.ANeg: 10, inventory.ABPos: 12, inventory.BNeg: 15, inventory.ABNeg: 20,
}

const (
	priorityBase    = 10
	maxWaitingBonus = 50
	minPriority     = 1
	maxPriority     = 100
)

func scarcity(units int) int {
	switch {
	case units == 0:
		return 30
	case units < 5:
		return 20
	case units < 10:
		return 10
	case units < 20:
		return 5
	}
	return 0
}

// PatientPriority ranks a waiting patient in [1,100]. It grows with days
// waiting (one point per three days, capped at 50) and with the rarity of
// the patient's group, and shrinks as compatible stock rises.
func PatientPriority(daysWaiting int, group inventory.BloodGroup, compatibleUnits int) (int, error) {
	if daysWaiting < 0 {
		return 0, apperr.InvalidArgument("days waiting must not be negative")
	}
	if compatibleUnits < 0 {
		return 0, apperr.InvalidArgument("compatible units must not be negative")
	}
	if _, err := inventory.ParseBloodGroup(string(group)); err != nil {
		return 0, err
	}

	waiting := daysWaiting / 3
	if waiting > maxWaitingBonus {
		waiting = maxWaitingBonus
	}
	p := priorityBase + waiting + rarity[group] + scarcity(compatibleUnits)
	if p < minPriority {
		return minPriority, nil
	}
	if p > maxPriority {
		return maxPriority, nil
	}
	return p, nil
}

// CompatibleUnits sums the quantity of blood units recipient can receive.
func CompatibleUnits(recipient inventory.BloodGroup, units []*inventory.Unit) int {
	accepted := CompatibleDonors(recipient)
	total := 0
	for _, u := range units {
		g, ok := u.BloodGroup()
		if !ok {
			continue
		}
		for _, d := range accepted {
			if d == g {
				total += u.Quantity
				break
			}
		}
	}
	return total
}

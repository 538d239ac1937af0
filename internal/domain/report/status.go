package report

import "github.com/bloodbank/bloodbank/internal/domain/inventory"

// Blood thresholds are in units; organ thresholds are in organs.
const (
	bloodCritical = 10
	bloodLow      = 20
	organLow      = 3
)

// StatusOf classifies a unit's stock level.
func StatusOf(u *inventory.Unit) StockStatus {
	if u.Kind == inventory.KindOrgan {
		switch {
		case u.Quantity == 0:
			return StatusCritical
		case u.Quantity < organLow:
			return StatusLow
		}
		return StatusGood
	}
	switch {
	case u.Quantity < bloodCritical:
		return StatusCritical
	case u.Quantity < bloodLow:
		return StatusLow
	}
	return StatusGood
}

// RecommendedAction is the operator action for a unit in status s.
func RecommendedAction(s StockStatus, subtype string) string {
	switch s {
	case StatusCritical:
		return "Urgent: arrange donation drive for " + subtype
	case StatusLow:
		return "Schedule restock of " + subtype
	}
	return "Stock level adequate"
}

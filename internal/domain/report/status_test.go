package report

import (
	"testing"

	"github.com/bloodbank/bloodbank/internal/domain/inventory"
)

func TestStatusOf(t *testing.T) {
	tests := []struct {
		kind inventory.Kind
		qty  int
		want StockStatus
	}{
		{inventory.KindBlood, 0, StatusCritical},
		{inventory.KindBlood, 9, StatusCritical},
		{inventory.KindBlood, 10, StatusLow},
		{inventory.KindBlood, 19, StatusLow},
		{inventory.KindBlood, 20, StatusGood},
		{inventory.KindOrgan, 0, StatusCritical},
		{inventory.KindOrgan, 1, StatusLow},
		{inventory.KindOrgan, 2, StatusLow},
		{inventory.KindOrgan, 3, StatusGood},
	}
	for _, tt := range tests {
		if got := StatusOf(&inventory.Unit{Kind: tt.kind, Quantity: tt.qty}); got != tt.want {
			t.Errorf("StatusOf(%s, %d) = %s, want %s", tt.kind, tt.qty, got, tt.want)
		}
	}
}

func TestRecommendedAction(t *testing.T) {
	if got := RecommendedAction(StatusCritical, "O-"); got != "Urgent: arrange donation drive for O-" {
		t.Errorf("unexpected critical action %q", got)
	}
	if got := RecommendedAction(StatusLow, "Kidney"); got != "Schedule restock of Kidney" {
		t.Errorf("unexpected low action %q", got)
	}
	if got := RecommendedAction(StatusGood, "A+"); got != "Stock level adequate" {
		t.Errorf("unexpected good action %q", got)
	}
}

package report

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/bloodbank/bloodbank/internal/domain/donation"
	"github.com/bloodbank/bloodbank/internal/domain/inventory"
	"github.com/bloodbank/bloodbank/internal/domain/registry"
	"github.com/bloodbank/bloodbank/internal/domain/scoring"
)

// CompatibilityRow is one unit a patient of the requested group can receive,
// paired with a registered donor of the unit's group when there is one.
type CompatibilityRow struct {
	Unit      *inventory.Unit   `json:"unit"`
	Donor     *registry.Donor   `json:"donor,omitempty"`
	Score     int               `json:"score"`
	DonorRisk scoring.RiskLevel `json:"donor_risk,omitempty"`
	Value     decimal.Decimal   `json:"value"`
}

type StockStatus string

const (
	StatusCritical StockStatus = "Critical"
	StatusLow      StockStatus = "Low"
	StatusGood     StockStatus = "Good"
)

type InventoryRow struct {
	Unit              *inventory.Unit `json:"unit"`
	Status            StockStatus     `json:"status"`
	RecommendedAction string          `json:"recommended_action"`
	Value             decimal.Decimal `json:"value"`
}

type DonorSummary struct {
	Donations     int               `json:"donations"`
	TotalQuantity int               `json:"total_quantity"`
	FirstDonation *time.Time        `json:"first_donation,omitempty"`
	LastDonation  *time.Time        `json:"last_donation,omitempty"`
	DaysSinceLast *int              `json:"days_since_last,omitempty"`
	RiskLevel     scoring.RiskLevel `json:"risk_level"`
}

type DonorHistory struct {
	Donor     *registry.Donor   `json:"donor"`
	Donations []*donation.Event `json:"donations"`
	Summary   DonorSummary      `json:"summary"`
}

type PatientPriority struct {
	Patient         *registry.Patient `json:"patient"`
	DaysWaiting     int               `json:"days_waiting"`
	CompatibleUnits int               `json:"compatible_units"`
	Priority        int               `json:"priority"`
}

type BankStatus struct {
	Bank          *inventory.Bank `json:"bank"`
	Units         int             `json:"units"`
	TotalQuantity int             `json:"total_quantity"`
	CriticalSlots int             `json:"critical_slots"`
	LowSlots      int             `json:"low_slots"`
	Value         decimal.Decimal `json:"value"`
}

type Trend string

const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
	TrendFlat Trend = "flat"
)

// DonationTrends compares the last 30 days with the 30 days before.
type DonationTrends struct {
	CurrentCount     int   `json:"current_count"`
	CurrentQuantity  int   `json:"current_quantity"`
	PreviousCount    int   `json:"previous_count"`
	PreviousQuantity int   `json:"previous_quantity"`
	Direction        Trend `json:"direction"`
}

type Overview struct {
	Inventory        []InventoryRow    `json:"inventory"`
	TotalValue       decimal.Decimal   `json:"total_value"`
	Trends           DonationTrends    `json:"trends"`
	CriticalPatients []PatientPriority `json:"critical_patients"`
}

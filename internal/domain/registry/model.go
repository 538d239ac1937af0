package registry

import (
	"time"

	"github.com/google/uuid"

	"github.com/bloodbank/bloodbank/internal/domain/inventory"
)

type Donor struct {
	ID             uuid.UUID            `json:"id"`
	Name           string               `json:"name"`
	Age            int                  `json:"age"`
	Gender         string               `json:"gender"`
	BloodGroup     inventory.BloodGroup `json:"blood_group"`
	Address        string               `json:"address,omitempty"`
	Contact        string               `json:"contact,omitempty"`
	DiseaseHistory *string              `json:"disease_history,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
}

// Disease returns the disease history, or "" when none is recorded.
func (d *Donor) Disease() string {
	if d.DiseaseHistory == nil {
		return ""
	}
	return *d.DiseaseHistory
}

type Patient struct {
	ID         uuid.UUID            `json:"id"`
	Name       string               `json:"name"`
	Age        int                  `json:"age"`
	Gender     string               `json:"gender"`
	BloodGroup inventory.BloodGroup `json:"blood_group"`
	Address    string               `json:"address,omitempty"`
	Contact    string               `json:"contact,omitempty"`
	IntakeDate time.Time            `json:"intake_date"`
	CreatedAt  time.Time            `json:"created_at"`
}

// DaysWaiting counts whole days since intake, never negative.
func (p *Patient) DaysWaiting(now time.Time) int {
	d := int(now.Sub(p.IntakeDate).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}

// ListParams filters registry listings. Name matches case-insensitively as a
// substring. Limit 0 returns every row.
type ListParams struct {
	Name   string
	Limit  int
	Offset int
}

var validGenders = map[string]bool{"Male": true, "Female": true, "Other": true}

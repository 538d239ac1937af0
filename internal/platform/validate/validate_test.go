package validate

import (
	"errors"
	"strings"
	"testing"

	"github.com/bloodbank/bloodbank/internal/platform/apperr"
)

type donorInput struct {
	Name       string `json:"name" validate:"required"`
	Age        int    `json:"age" validate:"gte=0,lte=130"`
	BloodGroup string `json:"blood_group" validate:"required,oneof=A+ A- B+ B- AB+ AB- O+ O-"`
}

func TestValidate_OK(t *testing.T) {
	if err := New().Validate(&donorInput{Name: "Asha", Age: 30, BloodGroup: "O-"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_ReportsJSONFieldNames(t *testing.T) {
	err := New().Validate(&donorInput{Age: -1, BloodGroup: "C+"})
	if !errors.Is(err, apperr.ErrInvalidArgument) {
		t.Fatalf("expected INVALID_ARGUMENT, got %v", err)
	}
	msg := err.Error()
	for _, want := range []string{"name is required", "age must be at least 0", "blood_group must be one of"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in %q", want, msg)
		}
	}
}

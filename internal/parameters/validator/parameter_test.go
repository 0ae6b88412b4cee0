package validator

import (
	"errors"
	"testing"

	parameterserrors "staybid/internal/parameters/errors"
	"staybid/pkg/model"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		param   string
		value   string
		want    float64
		wantErr error
	}{
		{"integer", model.ParamDurationDays, "7", 7, nil},
		{"trimmed", model.ParamLeadTimeDays, " 3 ", 3, nil},
		{"factor", model.ParamStartPriceFactor, "0.65", 0.65, nil},
		{"zero fee", model.ParamServiceFeeFactor, "0", 0, nil},
		{"integer as decimal", model.ParamDurationDays, "2.5", 0, parameterserrors.ErrInvalidValue},
		{"below range", model.ParamDurationDays, "0", 0, parameterserrors.ErrInvalidValue},
		{"above range", model.ParamBidIncrementFactor, "1.5", 0, parameterserrors.ErrInvalidValue},
		{"not a number", model.ParamStartPriceFactor, "abc", 0, parameterserrors.ErrInvalidValue},
		{"nan", model.ParamStartPriceFactor, "NaN", 0, parameterserrors.ErrInvalidValue},
		{"unknown", "MaxGuests", "4", 0, parameterserrors.ErrUnknownParameter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.param, tt.value)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Parse() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Parse() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRulesCoverDefaults(t *testing.T) {
	for _, entry := range model.DefaultParameterEntries() {
		if _, err := Parse(entry.Name, entry.Value); err != nil {
			t.Errorf("default %s=%s rejected: %v", entry.Name, entry.Value, err)
		}
	}
}

func TestValidateRequest(t *testing.T) {
	v := NewParameterValidator()
	if err := v.ValidateRequest(&UpdateRequest{Value: "5"}); err != nil {
		t.Errorf("ValidateRequest() unexpected error: %v", err)
	}
	if err := v.ValidateRequest(&UpdateRequest{}); !errors.Is(err, parameterserrors.ErrInvalidValue) {
		t.Errorf("ValidateRequest() error = %v, want ErrInvalidValue", err)
	}
}

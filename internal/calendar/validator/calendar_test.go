package validator

import (
	"errors"
	"testing"
)

func TestValidate_RangeRequest(t *testing.T) {
	v := NewCalendarValidator()

	tests := []struct {
		name      string
		req       RangeRequest
		wantField string
	}{
		{"valid", RangeRequest{UnitUID: "u-1", Start: "2025-01-10", End: "2025-01-12"}, ""},
		{"maintenance", RangeRequest{UnitUID: "u-1", Start: "2025-01-10", End: "2025-01-12", Reason: "maintenance"}, ""},
		{"auction reason", RangeRequest{UnitUID: "u-1", Start: "2025-01-10", End: "2025-01-12", Reason: "auction"}, "Reason"},
		{"missing end", RangeRequest{UnitUID: "u-1", Start: "2025-01-10"}, "End"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Validate(&tt.req)
			if tt.wantField == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			var verrs ValidationErrors
			if !errors.As(err, &verrs) || verrs[0].Field != tt.wantField {
				t.Fatalf("Validate() error = %v, want failure on %s", err, tt.wantField)
			}
		})
	}
}

package validator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	messages := make([]string, 0, len(v))
	for _, err := range v {
		messages = append(messages, err.Field+": "+err.Message)
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

// RangeRequest blocks or unblocks [Start, End) on a unit.
type RangeRequest struct {
	UnitUID string `json:"uid" validate:"required,max=64"`
	Start   string `json:"start" validate:"required,datetime=2006-01-02"`
	End     string `json:"end" validate:"required,datetime=2006-01-02"`
	Reason  string `json:"reason" validate:"omitempty,oneof=manual maintenance"`
}

type CalendarValidator struct {
	validate *validator.Validate
}

func NewCalendarValidator() *CalendarValidator {
	return &CalendarValidator{validate: validator.New()}
}

func (v *CalendarValidator) Validate(req any) error {
	err := v.validate.Struct(req)
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}
	out := make(ValidationErrors, 0, len(validationErrs))
	for _, fe := range validationErrs {
		message := fe.Error()
		switch fe.Tag() {
		case "required":
			message = fe.Field() + " is required"
		case "datetime":
			message = fe.Field() + " must be a date in YYYY-MM-DD form"
		case "oneof":
			message = fe.Field() + " must be one of: " + fe.Param()
		}
		out = append(out, ValidationError{Field: fe.Field(), Message: message})
	}
	return out
}

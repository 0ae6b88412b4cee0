package validator

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	parameterserrors "staybid/internal/parameters/errors"
	"staybid/pkg/model"

	"github.com/go-playground/validator/v10"
)

type Kind int

const (
	KindInteger Kind = iota
	KindFactor
)

// Rule bounds the accepted values of one parameter, inclusive.
type Rule struct {
	Kind Kind
	Min  float64
	Max  float64
}

var Rules = map[string]Rule{
	model.ParamLeadTimeDays:       {Kind: KindInteger, Min: 0, Max: 365},
	model.ParamDurationDays:       {Kind: KindInteger, Min: 1, Max: 60},
	model.ParamStartPriceFactor:   {Kind: KindFactor, Min: 0.01, Max: 10},
	model.ParamBidIncrementFactor: {Kind: KindFactor, Min: 0.001, Max: 1},
	model.ParamServiceFeeFactor:   {Kind: KindFactor, Min: 0, Max: 1},
	model.ParamPaymentDeadline:    {Kind: KindInteger, Min: 1, Max: 1440},
	model.ParamPriceRoundingStep:  {Kind: KindInteger, Min: 1, Max: 1_000_000_000},
	model.ParamMinBidIncrement:    {Kind: KindInteger, Min: 1, Max: 1_000_000_000_000},
}

type UpdateRequest struct {
	Value string `json:"value" validate:"required,max=32"`
}

type ParameterValidator struct {
	validate *validator.Validate
}

func NewParameterValidator() *ParameterValidator {
	return &ParameterValidator{validate: validator.New()}
}

func (v *ParameterValidator) ValidateRequest(req *UpdateRequest) error {
	if err := v.validate.Struct(req); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) && len(validationErrs) > 0 {
			fe := validationErrs[0]
			return fmt.Errorf("%w: %s failed on %s", parameterserrors.ErrInvalidValue, strings.ToLower(fe.Field()), fe.Tag())
		}
		return err
	}
	return nil
}

// Parse checks value against the rule for name and returns it as a number.
func Parse(name, value string) (float64, error) {
	rule, ok := Rules[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", parameterserrors.ErrUnknownParameter, name)
	}

	value = strings.TrimSpace(value)
	var n float64
	switch rule.Kind {
	case KindInteger:
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %s must be an integer", parameterserrors.ErrInvalidValue, name)
		}
		n = float64(i)
	case KindFactor:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("%w: %s must be a decimal number", parameterserrors.ErrInvalidValue, name)
		}
		n = f
	}

	if n < rule.Min || n > rule.Max {
		return 0, fmt.Errorf("%w: %s must be between %s and %s", parameterserrors.ErrInvalidValue, name,
			strconv.FormatFloat(rule.Min, 'f', -1, 64), strconv.FormatFloat(rule.Max, 'f', -1, 64))
	}
	return n, nil
}

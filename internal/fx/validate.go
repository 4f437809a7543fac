package fx

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"golang.org/x/text/currency"

	"github.com/vyrodovalexey/avafx/internal/config"
)

func newRequestValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("currency_code", func(fl validator.FieldLevel) bool {
		return config.ValidCurrencyCode(fl.Field().String())
	})

	return v
}

// describeValidation flattens validator errors into one readable error
// wrapping ErrInvalidRequest.
func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if _, rest, ok := strings.Cut(field, "."); ok {
			field = rest
		}
		msgs = append(msgs, field+" "+reason(fe))
	}
	return fmt.Errorf("%w: %s", ErrInvalidRequest, strings.Join(msgs, "; "))
}

func reason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "currency_code":
		return fmt.Sprintf("%q is not an ISO 4217 currency code", fe.Value())
	case "numeric":
		return fmt.Sprintf("%q is not numeric", fe.Value())
	case "gt":
		return "must be greater than " + fe.Param()
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

// normalizeCurrency trims code and upper-cases known alphabetic codes.
// Anything else is returned trimmed and left for validation to reject.
func normalizeCurrency(code string) string {
	code = strings.TrimSpace(code)
	if len(code) != 3 {
		return code
	}
	if unit, err := currency.ParseISO(code); err == nil {
		return unit.String()
	}
	return code
}

package retention

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"casino-platform/internal/audit"
)

var ErrInvalidPolicy = errors.New("invalid retention policy")

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("audit_event_type", func(fl validator.FieldLevel) bool {
		return audit.EventType(fl.Field().String()).Valid()
	})
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationError flattens validator output into one ErrInvalidPolicy.
func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fe.Field()+" is required")
		case "audit_event_type":
			parts = append(parts, fmt.Sprintf("%s %q is not a known event type", fe.Field(), fe.Value()))
		case "min", "max":
			parts = append(parts, fmt.Sprintf("%s must be between 1 and %d", fe.Field(), MaxRetentionDays))
		default:
			parts = append(parts, fe.Field()+" failed "+fe.Tag())
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidPolicy, strings.Join(parts, "; "))
}

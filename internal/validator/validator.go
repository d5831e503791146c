package validator

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	global      *validator.Validate
	phoneRegex  = regexp.MustCompile(`^\+?[0-9\s\-\(\)]{7,20}$`)
	expiryRegex = regexp.MustCompile(`^(0[1-9]|1[0-2])/\d{2}$`)
)

const (
	ErrInvalidFormat      = "Invalid format"
	ErrFieldRequired      = "Field is required"
	ErrFieldExceedsMaxLen = "Field exceeds maximum length"
	ErrFieldBelowMinLen   = "Field is below minimum length"
	ErrFieldBelowMinVal   = "Field is below minimum value"
	ErrUnknownValidation  = "Unknown validation error"
)

// Errors maps a JSON field path (e.g. "card.cvv") to a message.
type Errors map[string]string

func (e Errors) Error() string {
	parts := make([]string, 0, len(e))
	for field, msg := range e {
		parts = append(parts, field+": "+msg)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func init() {
	SetValidator(New())
}

func New() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report JSON names so messages line up with the request body.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})
	_ = v.RegisterValidation("phone", validatePhone)
	_ = v.RegisterValidation("cardexpiry", validateCardExpiry)
	_ = v.RegisterValidation("future", validateFutureDate)
	return v
}

func SetValidator(v *validator.Validate) {
	global = v
}

func Validator() *validator.Validate {
	return global
}

func validatePhone(fl validator.FieldLevel) bool {
	return phoneRegex.MatchString(fl.Field().String())
}

func validateCardExpiry(fl validator.FieldLevel) bool {
	return expiryRegex.MatchString(fl.Field().String())
}

func validateFutureDate(fl validator.FieldLevel) bool {
	t, ok := fl.Field().Interface().(time.Time)
	return ok && t.After(time.Now())
}

// Validate returns nil or an Errors value listing every failing field.
func Validate(ctx context.Context, structure any) error {
	return parseValidationErrors(Validator().StructCtx(ctx, structure))
}

func parseValidationErrors(err error) error {
	if err == nil {
		return nil
	}
	var vErrors validator.ValidationErrors
	if !errors.As(err, &vErrors) {
		return err
	}
	out := make(Errors, len(vErrors))
	for _, ve := range vErrors {
		field := fieldPath(ve.Namespace())
		if _, seen := out[field]; !seen {
			out[field] = message(ve)
		}
	}
	return out
}

// fieldPath drops the root struct name and any embedded struct hops
// that share their parent's JSON object.
func fieldPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	kept := parts[:0]
	for _, p := range parts {
		if p == "AttendeeDetails" {
			continue
		}
		kept = append(kept, p)
	}
	return strings.Join(kept, ".")
}

func message(ve validator.FieldError) string {
	switch ve.Tag() {
	case "required":
		return ErrFieldRequired
	case "email":
		return "Must be a valid email address"
	case "phone":
		return "Must be a valid phone number"
	case "cardexpiry":
		return "Expiry must be in MM/YY format"
	case "future":
		return "Date must be in the future"
	case "numeric":
		return "Must contain digits only"
	case "len":
		return fmt.Sprintf("Must be exactly %s characters", ve.Param())
	case "max":
		return fmt.Sprintf("%s (%s)", ErrFieldExceedsMaxLen, ve.Param())
	case "min":
		return fmt.Sprintf("%s (%s)", ErrFieldBelowMinLen, ve.Param())
	case "gt", "gte":
		return ErrFieldBelowMinVal
	case "oneof":
		return fmt.Sprintf("Must be one of: %s", ve.Param())
	default:
		return ErrUnknownValidation
	}
}

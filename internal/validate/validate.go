// Package validate checks operation inputs with go-playground/validator and
// reports the first failure as an apperr validation error.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/roach88/warranty/internal/apperr"
	"github.com/roach88/warranty/internal/dates"
)

// validate is the shared validator instance. Field names in messages come
// from the json tag.
var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = validate.RegisterValidation("notblank", notBlank)
	_ = validate.RegisterValidation("date", isDate)
}

// notBlank rejects strings that are empty after trimming whitespace.
func notBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// isDate accepts the date formats understood by dates.Parse.
func isDate(fl validator.FieldLevel) bool {
	_, err := dates.Parse(fl.Field().String())
	return err == nil
}

// Struct validates s and returns a KindValidation error naming the first
// offending field.
func Struct(op string, s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return apperr.Validation(op, "%s", describe(verrs[0]))
	}
	return apperr.Validation(op, "%v", err)
}

func describe(fe validator.FieldError) string {
	field := strings.ReplaceAll(fe.Field(), "_", " ")
	switch fe.Tag() {
	case "required", "notblank":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return fmt.Sprintf("%s must be a valid email address", field)
	case "date":
		return fmt.Sprintf("%s must be a date in YYYY-MM-DD or DD-MM-YYYY format", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "eqfield":
		return fmt.Sprintf("%s does not match", field)
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// Package validation checks service requests with go-playground/validator
// and reports failures as model validation errors.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/pilacorp/go-credential-trust/credential/common/model"
)

var rules = map[string]validator.Func{
	"notblank": func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	},
	"did": func(fl validator.FieldLevel) bool {
		return model.IsDID(fl.Field().String())
	},
}

var defaultValidator = mustValidator(rules)

func mustValidator(rules map[string]validator.Func) *validator.Validate {
	v, err := newValidator(rules)
	if err != nil {
		panic(err)
	}
	return v
}

func newValidator(rules map[string]validator.Func) (*validator.Validate, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return nil, fmt.Errorf("validation: failed to register rule %q: %w", tag, err)
		}
	}
	return v, nil
}

// Validate validates a request struct. The first violation is returned as
// a KindValidation error naming the offending field.
func Validate(req interface{}) error {
	err := defaultValidator.Struct(req)
	if err == nil {
		return nil
	}
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) || len(validationErrs) == 0 {
		return model.Validation("", "invalid request: %v", err)
	}
	fe := validationErrs[0]
	field := fe.Field()
	if field == "" {
		field = fe.StructField()
	}
	return model.Validation(field, "%s", message(fe))
}

func message(fe validator.FieldError) string {
	switch fe.ActualTag() {
	case "required":
		return "is required"
	case "url", "uri":
		return "must be a valid URL"
	case "did":
		return "must be a DID (did:<method>:<id>)"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "notblank":
		return "must not be blank"
	case "min":
		return fmt.Sprintf("must have at least %s entries", fe.Param())
	default:
		return "is invalid"
	}
}

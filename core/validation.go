package core

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var airportCode = regexp.MustCompile(`^[A-Z]{3}$`)

// Validator wraps the go-playground validator with the rules used by the auth inputs
type Validator struct {
	validator *validator.Validate
}

// NewValidator creates a validator that reports fields by their JSON names
func NewValidator() *Validator {
	validate := validator.New()

	_ = validate.RegisterValidation("airport", func(fl validator.FieldLevel) bool {
		return airportCode.MatchString(fl.Field().String())
	})

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	return &Validator{validator: validate}
}

// Validate validates a struct and returns a *ValidationError on failure
func (v *Validator) Validate(i any) error {
	err := v.validator.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return NewValidationError(verrs)
	}
	return err
}

// FieldError is a single failed field, named as it appears on the wire.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries field errors in struct declaration order.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	messages := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		messages = append(messages, fmt.Sprintf("%s: %s", f.Field, f.Message))
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, ", "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// First returns the first failed field, or a zero FieldError.
func (e *ValidationError) First() FieldError {
	if len(e.Fields) == 0 {
		return FieldError{}
	}
	return e.Fields[0]
}

// NewFieldError builds a single-field validation error for checks done outside struct tags.
func NewFieldError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// NewValidationError creates a ValidationError from validator.ValidationErrors
func NewValidationError(errs validator.ValidationErrors) *ValidationError {
	out := &ValidationError{Fields: make([]FieldError, 0, len(errs))}

	for _, err := range errs {
		field := err.Field()
		var msg string

		switch err.Tag() {
		case "required":
			msg = fmt.Sprintf("%s is required", field)
		case "email":
			msg = fmt.Sprintf("%s must be a valid email address", field)
		case "min":
			if err.Kind() == reflect.String {
				msg = fmt.Sprintf("%s must be at least %s characters long", field, err.Param())
			} else {
				msg = fmt.Sprintf("%s must be at least %s", field, err.Param())
			}
		case "max":
			switch err.Kind() {
			case reflect.String:
				msg = fmt.Sprintf("%s must be at most %s characters long", field, err.Param())
			case reflect.Slice:
				msg = fmt.Sprintf("%s must contain at most %s items", field, err.Param())
			default:
				msg = fmt.Sprintf("%s must be at most %s", field, err.Param())
			}
		case "oneof":
			msg = fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(err.Param(), " ", ", "))
		case "airport":
			msg = fmt.Sprintf("%s must be a three-letter airport code", field)
		default:
			msg = fmt.Sprintf("%s is invalid", field)
		}

		out.Fields = append(out.Fields, FieldError{Field: field, Message: msg})
	}

	return out
}

package dtox

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/samber/lo"

	"github.com/Conversia-AI/craftable-projection/errx"
)

// ValidationRule checks one field of a source value before it is mapped.
// An empty FieldName hands the whole source value to Validator.
type ValidationRule struct {
	FieldName string
	Validator func(value any) error
	Message   string
}

// ValidationError is one failed rule
type ValidationError struct {
	Field   string
	Message string
	Cause   error
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Message
	}
	return fmt.Sprintf("validation error for field %s: %s", e.Field, e.Message)
}

// ValidationErrors holds every failed rule for one value
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	return fmt.Sprintf("%d validation errors occurred", len(e))
}

// ToErrx converts the failures to a DTOX_VALIDATION_FAILED error. The first
// failure's cause, if any, becomes the error's cause.
func (e ValidationErrors) ToErrx() *errx.Error {
	if len(e) == 0 {
		return nil
	}

	fields := lo.Map(e, func(v ValidationError, _ int) string {
		if v.Field == "" {
			return v.Message
		}
		return v.Field + ": " + v.Message
	})

	var xerr *errx.Error
	if first, ok := lo.Find(e, func(v ValidationError) bool { return v.Cause != nil }); ok {
		xerr = ErrorRegistry.NewWithCause(ErrValidationFailed, first.Cause)
	} else {
		xerr = ErrorRegistry.New(ErrValidationFailed)
	}
	return xerr.WithDetail("fields", fields)
}

// Validate applies rules to src and returns a DTOX_VALIDATION_FAILED error
// listing every failure
func Validate(src any, rules []ValidationRule) error {
	if len(rules) == 0 {
		return nil
	}

	val := reflect.ValueOf(src)
	if val.Kind() == reflect.Ptr {
		if val.IsNil() {
			return ValidationErrors{{Message: "value is nil"}}.ToErrx()
		}
		val = val.Elem()
	}

	var failures ValidationErrors
	for _, rule := range rules {
		var value any
		if rule.FieldName == "" {
			value = val.Interface()
		} else {
			if val.Kind() != reflect.Struct {
				continue
			}
			fieldVal := val.FieldByName(rule.FieldName)
			if !fieldVal.IsValid() || !fieldVal.CanInterface() {
				continue
			}
			value = fieldVal.Interface()
		}

		if err := rule.Validator(value); err != nil {
			message := rule.Message
			if message == "" {
				message = err.Error()
			}
			failures = append(failures, ValidationError{Field: rule.FieldName, Message: message, Cause: err})
		}
	}

	if len(failures) > 0 {
		return failures.ToErrx()
	}
	return nil
}

// WithRules validates every source value before it is mapped
func (m *Mapper[S, T]) WithRules(rules []ValidationRule) *Mapper[S, T] {
	m.rules = append(m.rules, rules...)
	return m
}

// Required rejects empty strings, collections, nil pointers and zero numbers
func Required(value any) error {
	v := reflect.ValueOf(value)

	switch v.Kind() {
	case reflect.Invalid:
		return errors.New("field is required")
	case reflect.String:
		if v.String() == "" {
			return errors.New("field is required")
		}
	case reflect.Slice, reflect.Map:
		if v.Len() == 0 {
			return errors.New("field is required")
		}
	case reflect.Array:
		if v.IsZero() {
			return errors.New("field is required")
		}
	case reflect.Ptr, reflect.Interface:
		if v.IsNil() {
			return errors.New("field is required")
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if v.Int() == 0 {
			return errors.New("field is required")
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if v.Uint() == 0 {
			return errors.New("field is required")
		}
	case reflect.Float32, reflect.Float64:
		if v.Float() == 0 {
			return errors.New("field is required")
		}
	case reflect.Bool:
		return nil
	default:
		return errors.New("cannot check if field is required")
	}

	return nil
}

// MinLength checks that a string has at least min bytes
func MinLength(min int) func(any) error {
	return func(value any) error {
		s, ok := value.(string)
		if !ok {
			return errors.New("value is not a string")
		}
		if len(s) < min {
			return fmt.Errorf("must be at least %d characters", min)
		}
		return nil
	}
}

// MaxLength checks that a string has at most max bytes
func MaxLength(max int) func(any) error {
	return func(value any) error {
		s, ok := value.(string)
		if !ok {
			return errors.New("value is not a string")
		}
		if len(s) > max {
			return fmt.Errorf("must be at most %d characters", max)
		}
		return nil
	}
}

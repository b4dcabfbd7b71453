// Package errx provides a structured error type with codes, categories, HTTP
// status hints and arbitrary details.
//
// Every package declares its own catalogue through a Registry:
//
//	var ErrorRegistry = errx.NewRegistry("DTOX")
//
//	var ErrConfiguration = ErrorRegistry.Register("CONFIGURATION", errx.TypeValidation, 422, "Mapping configuration is invalid")
//
//	return ErrorRegistry.New(ErrConfiguration).WithDetail("field", "Category")
//
// Callers test for a specific failure with IsCode, which walks the wrap chain.
package errx

import (
	"errors"
	"fmt"
	"strings"
)

// Type categorizes errors so that transports can react without knowing codes
type Type string

const (
	TypeValidation    Type = "VALIDATION"
	TypeBadRequest    Type = "BAD_REQUEST"
	TypeNotFound      Type = "NOT_FOUND"
	TypeConflict      Type = "CONFLICT"
	TypeAuthorization Type = "AUTHORIZATION"
	TypeInternal      Type = "INTERNAL"
	TypeSystem        Type = "SYSTEM"
	TypeExternal      Type = "EXTERNAL"
	TypeTimeout       Type = "TIMEOUT"
	TypeUnavailable   Type = "UNAVAILABLE"
	TypeRateLimit     Type = "RATE_LIMIT"
	TypeUnsupported   Type = "UNSUPPORTED"
)

// Code is a stable, registry-prefixed error identifier
type Code string

// Error is the error type returned by every package in this module
type Error struct {
	Code       Code           `json:"code"`
	Type       Type           `json:"type"`
	Message    string         `json:"message"`
	HTTPStatus int            `json:"-"`
	Details    map[string]any `json:"details,omitempty"`
	Cause      error          `json:"-"`
}

// New creates an uncatalogued error
func New(message string, errType Type) *Error {
	return &Error{
		Code:    "ERROR",
		Type:    errType,
		Message: message,
	}
}

// Wrap wraps err with a message and type. A nil err yields nil.
func Wrap(err error, message string, errType Type) *Error {
	if err == nil {
		return nil
	}

	var xerr *Error
	code := Code("WRAPPED_ERROR")
	if errors.As(err, &xerr) {
		code = xerr.Code
	}

	return &Error{
		Code:    code,
		Type:    errType,
		Message: message,
		Cause:   err,
	}
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(string(e.Code))
	b.WriteString("] ")
	b.WriteString(e.Message)

	if len(e.Details) > 0 {
		keys := sortedKeys(e.Details)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s=%v", k, e.Details[k]))
		}
		b.WriteString(" (")
		b.WriteString(strings.Join(parts, ", "))
		b.WriteString(")")
	}

	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}

	return b.String()
}

// Unwrap returns the cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error carrying the same code
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetail adds a single detail and returns the same error
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithDetails merges details into the error
func (e *Error) WithDetails(details map[string]any) *Error {
	for k, v := range details {
		e.WithDetail(k, v)
	}
	return e
}

// WithCause sets the underlying cause
func (e *Error) WithCause(err error) *Error {
	e.Cause = err
	return e
}

// IsCode reports whether any error in err's chain carries code
func IsCode(err error, code Code) bool {
	for err != nil {
		var xerr *Error
		if !errors.As(err, &xerr) {
			return false
		}
		if xerr.Code == code {
			return true
		}
		err = xerr.Cause
	}
	return false
}

// IsType reports whether the outermost *Error in err's chain has the given type
func IsType(err error, errType Type) bool {
	var xerr *Error
	if errors.As(err, &xerr) {
		return xerr.Type == errType
	}
	return false
}

// Detail returns a detail from the first *Error in the chain that carries it
func Detail(err error, key string) (any, bool) {
	for err != nil {
		var xerr *Error
		if !errors.As(err, &xerr) {
			return nil, false
		}
		if v, ok := xerr.Details[key]; ok {
			return v, true
		}
		err = xerr.Cause
	}
	return nil, false
}

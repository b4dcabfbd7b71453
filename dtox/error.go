package dtox

import (
	"net/http"

	"github.com/Conversia-AI/craftable-projection/errx"
)

// ErrorRegistry holds all error definitions for the dtox package
var ErrorRegistry = errx.NewRegistry("DTOX")

// Error codes definition
var (
	// Registration errors
	ErrConfiguration       = ErrorRegistry.Register("CONFIGURATION", errx.TypeValidation, http.StatusUnprocessableEntity, "Mapping configuration is invalid")
	ErrUnregisteredMapping = ErrorRegistry.Register("UNREGISTERED_MAPPING", errx.TypeNotFound, http.StatusNotFound, "No mapping registered for type pair")

	// Mapping errors
	ErrValidationFailed = ErrorRegistry.Register("VALIDATION_FAILED", errx.TypeValidation, http.StatusUnprocessableEntity, "Source value failed validation")
	ErrTypeConversion   = ErrorRegistry.Register("TYPE_CONVERSION", errx.TypeInternal, http.StatusInternalServerError, "Type conversion failed")

	// Batch operation errors
	ErrBatchConversion = ErrorRegistry.Register("BATCH_CONVERSION", errx.TypeInternal, http.StatusInternalServerError, "Batch conversion failed")
)

func IsConfigurationError(err error) bool {
	return errx.IsCode(err, ErrConfiguration)
}

func IsUnregisteredMapping(err error) bool {
	return errx.IsCode(err, ErrUnregisteredMapping)
}

func IsValidationFailed(err error) bool {
	return errx.IsCode(err, ErrValidationFailed)
}

func configurationError(p Pair, reason string) *errx.Error {
	return ErrorRegistry.New(ErrConfiguration).
		WithDetail("pair", p.String()).
		WithDetail("reason", reason)
}

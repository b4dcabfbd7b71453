package harness

import (
	"net/http"

	"github.com/Conversia-AI/craftable-projection/errx"
)

var ErrorRegistry = errx.NewRegistry("HARNESS")

var (
	ErrUnknownBackend  = ErrorRegistry.Register("UNKNOWN_BACKEND", errx.TypeValidation, http.StatusBadRequest, "Unknown or misconfigured backend")
	ErrUnknownScenario = ErrorRegistry.Register("UNKNOWN_SCENARIO", errx.TypeNotFound, http.StatusNotFound, "Unknown scenario")
	ErrUnexpectedShape = ErrorRegistry.Register("UNEXPECTED_SHAPE", errx.TypeInternal, http.StatusInternalServerError, "Projection does not have the expected shape")
	ErrRunFailed       = ErrorRegistry.Register("RUN_FAILED", errx.TypeConflict, http.StatusConflict, "One or more scenarios failed")
)

func IsUnknownScenario(err error) bool {
	return errx.IsCode(err, ErrUnknownScenario)
}

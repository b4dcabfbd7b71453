package projectx

import (
	"net/http"

	"github.com/Conversia-AI/craftable-projection/errx"
)

// ErrorRegistry holds all error definitions for the projectx package
var ErrorRegistry = errx.NewRegistry("PROJECTX")

var (
	ErrProjectionMismatch = ErrorRegistry.Register("PROJECTION_MISMATCH", errx.TypeConflict, http.StatusConflict, "Strategies produced different projections")
	ErrUnknownKind        = ErrorRegistry.Register("UNKNOWN_KIND", errx.TypeBadRequest, http.StatusBadRequest, "Unknown projection strategy")
	ErrNoStrategies       = ErrorRegistry.Register("NO_STRATEGIES", errx.TypeBadRequest, http.StatusBadRequest, "At least one strategy is required")
	ErrMissingEngine      = ErrorRegistry.Register("MISSING_ENGINE", errx.TypeValidation, http.StatusUnprocessableEntity, "In-process items need a pipeline engine")
	ErrUnexpectedCount    = ErrorRegistry.Register("UNEXPECTED_COUNT", errx.TypeInternal, http.StatusInternalServerError, "Projection returned an unexpected number of documents")
	ErrStrategyFailed     = ErrorRegistry.Register("STRATEGY_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Strategy failed")
)

func IsProjectionMismatch(err error) bool {
	return errx.IsCode(err, ErrProjectionMismatch)
}

package storex

import "github.com/Conversia-AI/craftable-projection/errx"

// Error registry for storex
var (
	StoreErrors = errx.NewRegistry("STORE")

	// Common errors
	ErrInvalidQuery     = StoreErrors.Register("INVALID_QUERY", errx.TypeBadRequest, 400, "Invalid query")
	ErrConnectionFailed = StoreErrors.Register("CONNECTION_FAILED", errx.TypeUnavailable, 503, "Database connection failed")
	ErrCreateFailed     = StoreErrors.Register("CREATE_FAILED", errx.TypeInternal, 500, "Failed to create record")
	ErrDuplicateID      = StoreErrors.Register("DUPLICATE_ID", errx.TypeConflict, 409, "A record with this ID already exists")
	ErrFindFailed       = StoreErrors.Register("FIND_FAILED", errx.TypeInternal, 500, "Find operation failed")
	ErrCountFailed      = StoreErrors.Register("COUNT_FAILED", errx.TypeInternal, 500, "Failed to count records")
	ErrDecodeFailed     = StoreErrors.Register("DECODE_FAILED", errx.TypeInternal, 500, "Failed to decode document")
	ErrAggregateFailed  = StoreErrors.Register("AGGREGATE_FAILED", errx.TypeInternal, 500, "Aggregation failed")
	ErrUnsupportedStage = StoreErrors.Register("UNSUPPORTED_STAGE", errx.TypeUnsupported, 501, "Pipeline stage or operator is not supported")
)

// Helper functions
func IsConnectionFailed(err error) bool {
	return errx.IsCode(err, ErrConnectionFailed)
}

func IsInvalidQuery(err error) bool {
	return errx.IsCode(err, ErrInvalidQuery)
}

func IsDuplicateID(err error) bool {
	return errx.IsCode(err, ErrDuplicateID)
}

func IsUnsupportedStage(err error) bool {
	return errx.IsCode(err, ErrUnsupportedStage)
}

package scoring

import "errors"

var (
	// ErrDataUnavailable means the reference population could not be loaded.
	ErrDataUnavailable = errors.New("reference population unavailable")

	// ErrSchemaMismatch means a weighted column is absent from every
	// population record. Per-cell nulls never produce it.
	ErrSchemaMismatch = errors.New("reference population schema mismatch")
)

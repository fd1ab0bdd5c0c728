package domain

import "errors"

var (
	// ErrInvalidInput reports a query point with a non-finite or out-of-range coordinate.
	ErrInvalidInput = errors.New("invalid input")

	// ErrMissingColumns reports a hazard table without its coordinate or label columns.
	ErrMissingColumns = errors.New("missing columns")

	// ErrNotLoaded reports a query made before any hazard collections were loaded.
	ErrNotLoaded = errors.New("hazard collections not loaded")
)

package model

import "errors"

// Sentinel errors shared by every stage of the background model. Callers
// match them with errors.Is; producers wrap them with context.
var (
	// ErrOutOfRange indicates a query time outside the available attitude or
	// geometry history. Extrapolating attitude gives wrong geometry, so there
	// is no fallback value.
	ErrOutOfRange = errors.New("time outside covered range")
	// ErrMissingResponse indicates a component was built without the
	// precomputed responses it needs.
	ErrMissingResponse = errors.New("missing precomputed response")
	// ErrMissingGeometry indicates a component was built without the
	// geometry samples or template it needs.
	ErrMissingGeometry = errors.New("missing geometry")
	// ErrInconsistentGrid indicates mismatched energy grids, detector sets or
	// time bins between parts of one model instance.
	ErrInconsistentGrid = errors.New("inconsistent grid")
	// ErrInvalidTimeBins indicates a malformed time bin sequence.
	ErrInvalidTimeBins = errors.New("invalid time bins")
	// ErrInvalidEnergyGrid indicates malformed energy bin edges.
	ErrInvalidEnergyGrid = errors.New("invalid energy grid")
	// ErrInvalidParameters indicates a parameter vector of the wrong length
	// or with values outside the component's domain.
	ErrInvalidParameters = errors.New("invalid parameters")
	// ErrNonFinite indicates NaN or Inf reached a predicted rate tensor.
	ErrNonFinite = errors.New("non-finite predicted rate")
	// ErrUnknownDetector indicates a detector name not in the catalogue.
	ErrUnknownDetector = errors.New("unknown detector")
)

package services

import "errors"

var (
	// ErrModelNotFound means no fitted model exists for a make/model at any level.
	ErrModelNotFound = errors.New("price model not found")

	// ErrInvalidModel means a model's coefficients or its output are not finite.
	ErrInvalidModel = errors.New("invalid price model")

	// ErrInvalidVehicle means the target or evaluation input breaks a data
	// invariant (negative mileage or price, year after the current year).
	ErrInvalidVehicle = errors.New("invalid vehicle input")

	// ErrInsufficientData is the terminal "not enough data" outcome of Analyze.
	ErrInsufficientData = errors.New("insufficient data")
)

// InsufficientDataError explains why an analysis could not be produced.
type InsufficientDataError struct {
	Reason string
}

func (e *InsufficientDataError) Error() string {
	return "insufficient data: " + e.Reason
}

// Is lets errors.Is(err, ErrInsufficientData) match.
func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}

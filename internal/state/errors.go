package state

import (
	"errors"
	"fmt"
	"math"
)

// #region sentinels
var (
	// ErrValidation marks out-of-range inputs rejected at a component boundary.
	ErrValidation = errors.New("validation failed")

	// ErrNoSitesRemaining is returned when planning is requested past the last site.
	ErrNoSitesRemaining = errors.New("no sites remaining")

	// ErrMissionComplete is returned when stepping a finished mission.
	ErrMissionComplete = errors.New("mission complete")
)

// #endregion sentinels

// #region validation-error
// ValidationError describes a single rejected input.
type ValidationError struct {
	Op    string
	Field string
	Value float64
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: invalid %s: %v", e.Op, e.Field, e.Value)
}

// Unwrap lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// CheckUnit returns a ValidationError unless v lies in [0,1].
func CheckUnit(op, field string, v float64) error {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return &ValidationError{Op: op, Field: field, Value: v}
	}
	return nil
}

// CheckAction returns a ValidationError unless a is 0 or 1.
func CheckAction(op, field string, a Action) error {
	if !a.Valid() {
		return &ValidationError{Op: op, Field: field, Value: float64(a)}
	}
	return nil
}

// CheckNonNegative returns a ValidationError for negative health or time.
func CheckNonNegative(op, field string, v int) error {
	if v < 0 {
		return &ValidationError{Op: op, Field: field, Value: float64(v)}
	}
	return nil
}

// #endregion validation-error

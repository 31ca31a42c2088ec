package anomaly

import (
	"errors"
	"fmt"
)

var (
	// ErrInsufficientData is returned when a series is too short to compute a baseline.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrInvalidParameter is returned for out-of-range detection parameters.
	ErrInvalidParameter = errors.New("invalid parameter")
	// ErrInvalidSeries is returned when a series is unsorted, has duplicate
	// timestamps or negative volumes.
	ErrInvalidSeries = errors.New("invalid series")
)

// ParamError describes a rejected detection parameter.
type ParamError struct {
	Name   string
	Value  interface{}
	Reason string
}

// Error implements the error interface
func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid parameter %s=%v: %s", e.Name, e.Value, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidParameter
func (e *ParamError) Unwrap() error {
	return ErrInvalidParameter
}

// ValidationError describes the first problem found in a series.
type ValidationError struct {
	Index   int
	Field   string
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("point %d: %s: %s", e.Index, e.Field, e.Message)
}

// Unwrap lets errors.Is match ErrInvalidSeries
func (e *ValidationError) Unwrap() error {
	return ErrInvalidSeries
}

func insufficientData(n int) error {
	return fmt.Errorf("%w: series has %d points, need at least %d", ErrInsufficientData, n, MinSeriesLength)
}

package services

import "errors"

var (
	// ErrAnalysisNotFound is returned by Get for an unknown or evicted report ID.
	ErrAnalysisNotFound = errors.New("analysis not found")
	// ErrNoSeries is returned when a request names neither a symbol nor points.
	ErrNoSeries = errors.New("no symbol or series supplied")
	// ErrNoProvider is returned when a symbol is requested but no provider is configured.
	ErrNoProvider = errors.New("no market data provider configured")
)

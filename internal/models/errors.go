package models

import "errors"

var (
	// ErrInsufficientData is returned when history is empty or has fewer
	// usable rows than requested clusters.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrNoGoldenCandidates is returned when no batch is both high quality
	// and energy efficient.
	ErrNoGoldenCandidates = errors.New("no golden batch candidates")
	// ErrTrainingData is returned when a required column or label is absent.
	ErrTrainingData = errors.New("invalid training data")
	// ErrInvalidSignature is returned for a missing, zero or non-finite std.
	ErrInvalidSignature = errors.New("invalid golden signature")
	// ErrUnknownRiskCode is returned when a risk model emits a class outside 0..2.
	ErrUnknownRiskCode = errors.New("unknown risk code")
	// ErrInvalidReading is returned for a NaN or infinite reading, or one
	// whose z-score overflows.
	ErrInvalidReading = errors.New("invalid batch reading")
	// ErrArtifactLoad is returned for a missing or corrupt artifact file.
	ErrArtifactLoad = errors.New("artifact load failed")
)

package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the pipeline. Callers classify with
// errors.Is; everything else is wrapped with context via fmt.Errorf.
var (
	// ErrInvalidInput covers malformed or unusable caller input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrConfiguration covers invalid engine configuration (e.g. all-zero
	// weights). Raised at construction or reload, never mid-assessment.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrEmptyQuery means normalization removed every token from the name.
	ErrEmptyQuery = fmt.Errorf("%w: name is empty after normalization", ErrInvalidInput)

	// ErrReferenceDataUnavailable means a reference dataset is not loaded.
	// Non-fatal: the external-factors category degrades to unavailable.
	ErrReferenceDataUnavailable = errors.New("reference data unavailable")
)

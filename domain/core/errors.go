package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Configuration errors, raised before any worker starts
	ErrEmptyCohort       = errors.New("cohort has no subjects")
	ErrFeatureNotFound   = errors.New("feature not found")
	ErrZeroVariance      = errors.New("study feature has zero variance")
	ErrCohortTooSmall    = errors.New("cohort too small for the selected model")
	ErrInvalidAtlas      = errors.New("invalid atlas")
	ErrDimensionMismatch = errors.New("dimension mismatch")
	ErrInvalidSelection  = errors.New("invalid cohort selection")

	// Run control
	ErrAborted = errors.New("analysis aborted")
)

// Error constructors with context
func NewFeatureNotFoundError(name string) error {
	return fmt.Errorf("%w: %q", ErrFeatureNotFound, name)
}

func NewDimensionMismatchError(what string, got, want int) error {
	return fmt.Errorf("%w: %s has %d values, expected %d", ErrDimensionMismatch, what, got, want)
}

func NewSelectionError(condition string, reason string) error {
	return fmt.Errorf("%w: %q %s", ErrInvalidSelection, condition, reason)
}

// Error checking helpers
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrEmptyCohort) ||
		errors.Is(err, ErrFeatureNotFound) ||
		errors.Is(err, ErrZeroVariance) ||
		errors.Is(err, ErrCohortTooSmall) ||
		errors.Is(err, ErrInvalidAtlas) ||
		errors.Is(err, ErrDimensionMismatch) ||
		errors.Is(err, ErrInvalidSelection)
}

func IsAborted(err error) bool {
	return errors.Is(err, ErrAborted)
}

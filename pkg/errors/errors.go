// Package errors provides common domain error types for notetakerd.
//
// This package defines sentinel errors for common domain conditions like "not found"
// or "forbidden" that can be used across all packages. Using typed errors enables
// consistent error handling patterns with errors.Is() checks.
//
// Usage:
//
//	import nterrors "github.com/otherjamesbrown/notetakerd/pkg/errors"
//
//	// Return a domain error
//	return nil, nterrors.ErrNotFound
//
//	// Check for domain errors
//	if nterrors.IsNotFound(err) {
//	    // handle not found case
//	}
package errors

import "errors"

// Domain errors - common sentinel errors for domain conditions.
var (
	// ErrNotFound indicates the requested resource was not found.
	ErrNotFound = errors.New("not found")

	// ErrForbidden indicates the caller does not own the resource.
	ErrForbidden = errors.New("forbidden")

	// ErrConfiguration indicates a required secret or config value is missing.
	// It is raised lazily at first use, never at startup.
	ErrConfiguration = errors.New("configuration error")

	// ErrInvalidState indicates the operation is not valid for the current state.
	ErrInvalidState = errors.New("invalid state")
)

// IsNotFound reports whether any error in err's chain is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsForbidden reports whether any error in err's chain is ErrForbidden.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsConfiguration reports whether any error in err's chain is ErrConfiguration.
func IsConfiguration(err error) bool {
	return errors.Is(err, ErrConfiguration)
}

// IsInvalidState reports whether any error in err's chain is ErrInvalidState.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}

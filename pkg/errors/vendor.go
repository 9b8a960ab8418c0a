package errors

import (
	"errors"
	"fmt"
)

// VendorError is returned when an external bot provider responds with a
// non-2xx status. It carries the HTTP status and response body so the caller
// can log them; the next scheduler tick is the implicit retry.
type VendorError struct {
	// Provider identifies which vendor produced the error ("recall", "meeting_baas").
	Provider string

	// StatusCode is the HTTP status returned by the vendor.
	StatusCode int

	// Body is the raw response body, for logging.
	Body string
}

// Error implements the error interface.
func (e *VendorError) Error() string {
	return fmt.Sprintf("%s API error: %d %s", e.Provider, e.StatusCode, e.Body)
}

// IsVendor reports whether any error in err's chain is a *VendorError.
func IsVendor(err error) bool {
	var ve *VendorError
	return errors.As(err, &ve)
}

// AsVendor returns the *VendorError in err's chain, if any.
func AsVendor(err error) (*VendorError, bool) {
	var ve *VendorError
	ok := errors.As(err, &ve)
	return ve, ok
}

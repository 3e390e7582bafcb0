package audible

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when the API does not know the requested product.
var ErrNotFound = errors.New("product not found")

// NetworkError represents transport failures and unexpected API responses, including 5xx
// responses, connection timeouts and rate limiting.
type NetworkError struct {
	Operation  string // The operation that failed (e.g., "license_request")
	StatusCode int    // HTTP status code, if applicable (0 for non-HTTP errors)
	APIMessage string // Error message from the API or network layer
	Err        error  // Underlying error, if any
}

func (e *NetworkError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("network error during %s (HTTP %d): %s", e.Operation, e.StatusCode, e.APIMessage)
	}

	return fmt.Sprintf("network error during %s: %s", e.Operation, e.APIMessage)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// AuthenticationError represents 401 Unauthorized and 403 Forbidden responses.
// Re-importing the account usually fixes it.
type AuthenticationError struct {
	Operation  string
	StatusCode int
	Err        error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication failed during %s (HTTP %d)", e.Operation, e.StatusCode)
}

func (e *AuthenticationError) Unwrap() error {
	return e.Err
}

// LicenseDeniedError is returned when the API answers but refuses to grant a license.
type LicenseDeniedError struct {
	ASIN   string
	Status string // status_code reported by the API
	Reason string
}

func (e *LicenseDeniedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("license for %s denied (%s): %s", e.ASIN, e.Status, e.Reason)
	}

	return fmt.Sprintf("license for %s denied (%s)", e.ASIN, e.Status)
}

package provider

import (
	"errors"
	"fmt"

	"github.com/callbook/callbook/pkg/connection"
)

// ErrEventNotFound is returned when the vendor reports no event for the
// requested identifier.
var ErrEventNotFound = errors.New("calendar event not found")

// APIError carries a non-success vendor response through to the caller.
// No automatic retry happens at this layer.
type APIError struct {
	Provider   connection.Provider
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Message)
}

// CapabilityError is returned when an operation is attempted against a vendor
// that does not implement it. Silent degradation would let a caller believe a
// booking succeeded when it did not.
type CapabilityError struct {
	Provider  connection.Provider
	Operation string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("provider %s does not support %s", e.Provider, e.Operation)
}

// TokenRefreshError wraps a failed refresh-token exchange.
type TokenRefreshError struct {
	Provider connection.Provider
	Err      error
}

func (e *TokenRefreshError) Error() string {
	return fmt.Sprintf("failed to refresh %s token: %v", e.Provider, e.Err)
}

func (e *TokenRefreshError) Unwrap() error {
	return e.Err
}

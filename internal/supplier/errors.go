package supplier

import (
	"errors"
	"fmt"
)

var (
	// ErrTokenExchange is returned when the client-credentials grant fails.
	ErrTokenExchange = errors.New("supplier: token exchange failed")

	// ErrProvisioning is returned when an order cannot be placed or the
	// response carries no usable artifact.
	ErrProvisioning = errors.New("supplier: provisioning failed")

	// ErrMissingCredentials is returned by NewClient when client id or secret is empty.
	ErrMissingCredentials = errors.New("supplier: missing client credentials")
)

// APIError wraps a non-2xx supplier response.
type APIError struct {
	Operation  string // "token" or "create_order"
	StatusCode int
	Message    string // supplier meta.message, or the raw body
	kind       error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("supplier %s failed (status %d): %s", e.Operation, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.kind
}

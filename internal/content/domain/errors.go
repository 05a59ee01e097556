// Package domain defines the errors and value types exchanged with the content servers.
package domain

import (
	"fmt"

	"github.com/allisson/cecsync/internal/errors"
)

// Content server errors.
var (
	// ErrTransport indicates the request never produced an HTTP response.
	ErrTransport = errors.Wrap(errors.ErrUnavailable, "content server unreachable")

	// ErrNotConfigured indicates a server URL was not configured.
	ErrNotConfigured = errors.Wrap(errors.ErrInvalidInput, "content server not configured")

	// ErrUnexpectedResponse indicates a 2xx response whose body lacks a required field.
	ErrUnexpectedResponse = errors.New("unexpected content server response")
)

// APIError is a non-2xx answer from a content server.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("content server returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("content server returned status %d: %s", e.StatusCode, e.Detail)
}

// DeleteError reports a rejected item deletion with the server's message.
type DeleteError struct {
	ItemID  string
	Message string
	Err     error
}

func (e *DeleteError) Error() string {
	return fmt.Sprintf("failed to delete item %s: %s", e.ItemID, e.Message)
}

func (e *DeleteError) Unwrap() error {
	return e.Err
}

package domain

import (
	"github.com/allisson/cecsync/internal/errors"
)

// Event ingestion and queue errors.
var (
	// ErrAuthRejected indicates the webhook Basic credentials did not match the configuration.
	ErrAuthRejected = errors.Wrap(errors.ErrUnauthorized, "webhook credentials rejected")

	// ErrMalformedEvent indicates the payload lacks an action name or entity id.
	ErrMalformedEvent = errors.Wrap(errors.ErrInvalidInput, "malformed event")

	// ErrUnsupportedAction indicates the webhook event name is not one the server handles.
	ErrUnsupportedAction = errors.Wrap(errors.ErrInvalidInput, "unsupported action")

	// ErrEventNotFound indicates no queued event matches the given id and state.
	ErrEventNotFound = errors.Wrap(errors.ErrNotFound, "event not found")

	// ErrCorruptQueue indicates the persisted queue document could not be decoded.
	ErrCorruptQueue = errors.New("corrupt queue document")
)

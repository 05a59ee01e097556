package domain

import (
	"github.com/allisson/cecsync/internal/errors"
)

// Job errors.
var (
	// ErrSubmit indicates the submit call failed before a job id was obtained.
	ErrSubmit = errors.New("job submit failed")

	// ErrTransient indicates a transport failure while polling job status.
	ErrTransient = errors.Wrap(errors.ErrUnavailable, "job status request failed")

	// ErrJobFailed indicates the server reported the job as failed.
	ErrJobFailed = errors.New("job failed")

	// ErrTimedOut indicates the poll budget ran out before a terminal status.
	ErrTimedOut = errors.New("job timed out")
)

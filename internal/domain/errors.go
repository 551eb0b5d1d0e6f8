package domain

import "errors"

// Error taxonomy for queue operations. Callers match with errors.Is.
var (
	// ErrNotFound: an id does not resolve to a task or device.
	ErrNotFound = errors.New("not found")

	// ErrInvalidRequest: malformed enqueue input, rejected before any state
	// change (unknown device, empty kind list).
	ErrInvalidRequest = errors.New("invalid request")

	// ErrInvalidState: an operation attempted against a task whose current
	// status forbids it. The task is left unchanged.
	ErrInvalidState = errors.New("invalid task state")
)

package analyses

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrInvalid  = errors.New("invalid request")
	ErrNoJobs   = errors.New("no jobs provided")
	// ErrTerminal signals that a status update targeted a job that already
	// completed or failed. Terminal results are never overwritten.
	ErrTerminal = errors.New("analysis already terminal")
)

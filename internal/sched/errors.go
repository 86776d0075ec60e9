package sched

import "errors"

var (
	// ErrConfig rejects a malformed registration. It is fatal to that call
	// only, never to the process.
	ErrConfig = errors.New("invalid job registration")

	// ErrUnknownJob means a firing named a job with no registration. The
	// caller logs and carries on.
	ErrUnknownJob = errors.New("unknown job")
)

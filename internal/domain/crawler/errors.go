package crawler

import "errors"

var (
	// ErrBackpressure means the task queue is full.
	ErrBackpressure = errors.New("task queue is full")
	ErrJobNotFound = errors.New("job not found")
	ErrJobGone     = errors.New("job no longer tracked")
	ErrJobTimeout  = errors.New("job timed out")
)

package service

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotStarted   = errors.New("service not started")
)

// JobError carries the failure reason of a crawl.
type JobError struct {
	Message string
}

func (e *JobError) Error() string { return e.Message }

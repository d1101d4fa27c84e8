package queue

import "errors"

var (
	ErrNotFound          = errors.New("queue: not found")
	ErrQueueClosed       = errors.New("queue is not accepting entries")
	ErrInvalidTransition = errors.New("queue: invalid status transition")
	ErrStaleEntry        = errors.New("queue: entry changed since it was read")
	ErrInvalidPhone      = errors.New("invalid phone number, must be 10 digits starting with 0")
	ErrStudentNotFound   = errors.New("student id not found in our records")
	ErrNobodyWaiting     = errors.New("no one is waiting")
	ErrAlreadyLast       = errors.New("entry is already last")
	ErrSlugTaken         = errors.New("slug already in use")
)

package services

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrDuplicateEmail     = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("token expired")
	ErrUserNotFound       = errors.New("user not found")

	ErrUnknownJob = errors.New("unknown job")
	ErrNotFound   = errors.New("not found")

	ErrNotPDF = errors.New("only .pdf uploads are accepted")
)

// EnqueueError means the job store could not accept new work.
type EnqueueError struct {
	JobType string
	Err     error
}

func (e *EnqueueError) Error() string {
	return fmt.Sprintf("enqueue %s: %v", e.JobType, e.Err)
}

func (e *EnqueueError) Unwrap() error { return e.Err }

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

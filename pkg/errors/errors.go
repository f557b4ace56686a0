// Package errors defines the failure taxonomy of the indexing and extraction
// pipeline. Sentinels identify the failure class; AppError attaches a message
// and the underlying cause while still matching both through errors.Is.
package errors

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrConnection           = errors.New("store connection failed")
	ErrCollectionResolution = errors.New("collection resolution failed")
	ErrResourceWrite        = errors.New("resource write failed")
	ErrUnreadableFile       = errors.New("unreadable file")
	ErrQueryExecution       = errors.New("query execution failed")
	ErrCollectionNotFound   = errors.New("collection not found")
	ErrCollectionExists     = errors.New("collection already exists")
	ErrInvalidInput         = errors.New("invalid input")
	ErrUnknownDriver        = errors.New("unknown store driver")
)

// Process exit codes reported by the CLI.
const (
	ExitOK                   = 0
	ExitFailure              = 1
	ExitInvalidInput         = 2
	ExitConnection           = 3
	ExitCollectionResolution = 4
	ExitQueryExecution       = 5
)

type AppError struct {
	Err     error
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.Err.Error(), e.Message, e.Cause)
}

func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func New(sentinel error, message string) *AppError {
	return &AppError{
		Err:     sentinel,
		Message: message,
	}
}

func Newf(sentinel error, format string, args ...any) *AppError {
	return &AppError{
		Err:     sentinel,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap classifies cause under sentinel. A nil cause yields nil.
func Wrap(sentinel error, cause error, format string, args ...any) error {
	if cause == nil {
		return nil
	}
	return &AppError{
		Err:     sentinel,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// IsFatal reports whether a failure raised by one unit of work (a file, a
// sub-collection) must terminate the whole operation. Lost connections,
// query failures and cancellation are fatal. Resource writes, unreadable
// files and collection resolution below the top level only cost their own
// unit. Unclassified errors are fatal.
func IsFatal(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return true
	case errors.Is(err, ErrConnection), errors.Is(err, ErrQueryExecution), errors.Is(err, ErrUnknownDriver):
		return true
	case errors.Is(err, ErrResourceWrite), errors.Is(err, ErrUnreadableFile),
		errors.Is(err, ErrCollectionResolution), errors.Is(err, ErrCollectionNotFound),
		errors.Is(err, ErrCollectionExists), errors.Is(err, ErrInvalidInput):
		return false
	default:
		return true
	}
}

func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, ErrUnknownDriver):
		return ExitInvalidInput
	case errors.Is(err, ErrConnection):
		return ExitConnection
	case errors.Is(err, ErrCollectionResolution), errors.Is(err, ErrCollectionNotFound):
		return ExitCollectionResolution
	case errors.Is(err, ErrQueryExecution):
		return ExitQueryExecution
	default:
		return ExitFailure
	}
}

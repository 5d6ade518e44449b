package errors

import (
	"errors"
	"fmt"
)

var (
	ErrConfig        = errors.New("invalid configuration")
	ErrSourceIO      = errors.New("document source unreadable")
	ErrCorruptIndex  = errors.New("corrupt index")
	ErrTermNotFound  = errors.New("term not found")
	ErrInvalidQuery  = errors.New("invalid query")
	ErrIndexNotFound = errors.New("index directory not found")
	ErrInvalidTerm   = errors.New("invalid term")
)

// Exit codes returned by the command line for each error kind.
const (
	ExitOK       = 0
	ExitFailure  = 1
	ExitConfig   = 2
	ExitSourceIO = 3
)

type AppError struct {
	Err     error
	Message string
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
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

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// Recoverable reports whether a query-phase error should degrade to an empty
// or partial result instead of aborting the caller.
func Recoverable(err error) bool {
	return errors.Is(err, ErrTermNotFound) ||
		errors.Is(err, ErrCorruptIndex) ||
		errors.Is(err, ErrInvalidQuery)
}

func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	switch {
	case errors.Is(err, ErrConfig):
		return ExitConfig
	case errors.Is(err, ErrSourceIO):
		return ExitSourceIO
	default:
		return ExitFailure
	}
}

package ledger

import (
	"errors"
	"fmt"
)

// Error kinds. Every rejected operation returns an *Error whose Kind is one of
// these, so callers classify with errors.Is(err, ledger.ErrNotFound).
var (
	ErrNotFound         = errors.New("not found")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrInvalidState     = errors.New("invalid state")
	ErrInvalidInput     = errors.New("invalid input")
	ErrAlreadyProcessed = errors.New("already processed")
)

type Error struct {
	Kind error
	Op   string
	Msg  string
}

func (e *Error) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

func notFound(op, format string, args ...any) error {
	return newError(ErrNotFound, op, format, args...)
}

func unauthorized(op, format string, args ...any) error {
	return newError(ErrUnauthorized, op, format, args...)
}

func invalidState(op, format string, args ...any) error {
	return newError(ErrInvalidState, op, format, args...)
}

func invalidInput(op, format string, args ...any) error {
	return newError(ErrInvalidInput, op, format, args...)
}

func alreadyProcessed(op, format string, args ...any) error {
	return newError(ErrAlreadyProcessed, op, format, args...)
}

// KindOf returns the error kind of err, or nil when err is not a ledger rejection.
func KindOf(err error) error {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return nil
}

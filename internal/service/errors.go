package service

import (
	"errors"
	"fmt"

	"github.com/noteduco342/om-relay/internal/repository"
)

// Sentinel error kinds. Callers test with errors.Is; the HTTP layer maps
// them to status codes.
var (
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
)

// Error carries a client-facing message and one of the sentinel kinds.
type Error struct {
	Kind error
	Msg  string
}

func (e *Error) Error() string { return e.Msg }
func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, format string, args ...interface{}) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func notFoundf(format string, args ...interface{}) error {
	return newError(ErrNotFound, format, args...)
}

func forbiddenf(format string, args ...interface{}) error {
	return newError(ErrForbidden, format, args...)
}

func invalidf(format string, args ...interface{}) error {
	return newError(ErrInvalidInput, format, args...)
}

func conflictf(format string, args ...interface{}) error {
	return newError(ErrConflict, format, args...)
}

// lookup maps a repository miss to ErrNotFound with a description.
func lookup(err error, what string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return notFoundf("%s not found", what)
	}
	return err
}

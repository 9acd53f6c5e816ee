package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/cooperativa/registro/internal/schema"
)

// Common errors returned by store operations.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, store.ErrNotFound) {
//	    // the row does not exist
//	}
var (
	// ErrNotFound is returned when a row addressed by id does not exist.
	ErrNotFound = errors.New("row not found")

	// ErrConstraint is returned when the store rejects a row, for example
	// a NOT NULL or UNIQUE violation.
	ErrConstraint = errors.New("constraint violation")

	// ErrInvalid is returned for requests the store cannot express: an
	// unknown table or column, or an unusable value.
	ErrInvalid = errors.New("invalid request")

	// ErrUnavailable is returned when the store cannot be reached or the
	// operation failed for a reason unrelated to the data.
	ErrUnavailable = errors.New("store unavailable")
)

// Kind classifies a store failure.
type Kind int

const (
	KindUnavailable Kind = iota
	KindNotFound
	KindConstraint
	KindInvalid
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindConstraint:
		return "constraint"
	case KindInvalid:
		return "invalid"
	default:
		return "unavailable"
	}
}

// Error is the error returned by every Store method.
type Error struct {
	Op    string
	Table schema.Table
	Kind  Kind
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Table, e.Kind)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Table, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrConstraint:
		return e.Kind == KindConstraint
	case ErrInvalid:
		return e.Kind == KindInvalid
	case ErrUnavailable:
		return e.Kind == KindUnavailable
	}
	return false
}

// KindOf returns the kind of a store error, or KindUnavailable for other
// errors.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindUnavailable
}

func newError(op string, table schema.Table, kind Kind, err error) *Error {
	return &Error{Op: op, Table: table, Kind: kind, Err: err}
}

// wrapError classifies a driver error.
func wrapError(op string, table schema.Table, err error) error {
	if err == nil {
		return nil
	}
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	kind := KindUnavailable
	if strings.Contains(strings.ToLower(err.Error()), "constraint") {
		kind = KindConstraint
	}
	return newError(op, table, kind, err)
}

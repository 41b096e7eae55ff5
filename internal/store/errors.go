package store

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/xabbuh/studip-experience-api-plugin/internal/xapi"
)

// ErrorKind classifies store errors for callers.
type ErrorKind string

const (
	// KindNotFound: no statement of the requested kind exists. Expected and
	// recoverable; HTTP collaborators map it to 404.
	KindNotFound ErrorKind = "NOT_FOUND"

	// KindDataIntegrity: stored rows violate an invariant. Fatal; logged
	// before it is returned.
	KindDataIntegrity ErrorKind = "DATA_INTEGRITY"

	// KindStoreUnavailable: the database could not be reached or a read or
	// write failed. The driver error is wrapped unchanged.
	KindStoreUnavailable ErrorKind = "STORE_UNAVAILABLE"

	// KindUnsupported: a filter asks for something the store does not implement.
	KindUnsupported ErrorKind = "UNSUPPORTED"

	// KindInvalid: the statement or filter cannot be persisted or applied as given.
	KindInvalid ErrorKind = "INVALID"

	// KindConflict: a statement with the same id already exists.
	KindConflict ErrorKind = "CONFLICT"
)

// Sentinels for errors.Is. An *Error matches the sentinel of its kind.
var (
	ErrNotFound         = errors.New("statement not found")
	ErrDataIntegrity    = errors.New("data integrity violation")
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrUnsupported      = errors.New("unsupported")
	ErrInvalid          = errors.New("invalid input")
	ErrConflict         = errors.New("statement conflict")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindNotFound:
		return ErrNotFound
	case KindDataIntegrity:
		return ErrDataIntegrity
	case KindStoreUnavailable:
		return ErrStoreUnavailable
	case KindUnsupported:
		return ErrUnsupported
	case KindInvalid:
		return ErrInvalid
	case KindConflict:
		return ErrConflict
	default:
		return nil
	}
}

// Error is the error type returned by Store and Repository operations.
type Error struct {
	// Kind classifies the error.
	Kind ErrorKind

	// Op names the failing operation, e.g. "load actor".
	Op string

	// StatementID is the statement being saved or looked up, when known.
	StatementID xapi.StatementID

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.StatementID != "" {
		msg += fmt.Sprintf(" (statement=%s)", e.StatementID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	return target != nil && target == e.Kind.sentinel()
}

func newError(kind ErrorKind, op string, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...), Err: err}
}

func errNotFound(op string, format string, args ...any) *Error {
	return newError(KindNotFound, op, nil, format, args...)
}

func errIntegrity(op string, format string, args ...any) *Error {
	return newError(KindDataIntegrity, op, nil, format, args...)
}

func errInvalid(op string, format string, args ...any) *Error {
	return newError(KindInvalid, op, nil, format, args...)
}

// errUnavailable wraps a driver error.
func errUnavailable(op string, err error) *Error {
	return &Error{Kind: KindStoreUnavailable, Op: op, Err: err}
}

// classify returns err as an *Error, wrapping unclassified errors as
// StoreUnavailable, and fills in the statement id when missing.
func classify(op string, id xapi.StatementID, err error) *Error {
	var se *Error
	if !errors.As(err, &se) {
		se = errUnavailable(op, err)
	}
	if se.StatementID == "" {
		se.StatementID = id
	}
	return se
}

// KindOf returns the kind of err, or "" when err is not a store error.
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// IsNotFound returns true if err is a NotFound store error.
// Uses errors.As to handle wrapped errors.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsDataIntegrity returns true if err is a DataIntegrity store error.
func IsDataIntegrity(err error) bool { return KindOf(err) == KindDataIntegrity }

// IsStoreUnavailable returns true if err is a StoreUnavailable store error.
func IsStoreUnavailable(err error) bool { return KindOf(err) == KindStoreUnavailable }

// IsUnsupported returns true if err is an Unsupported store error.
func IsUnsupported(err error) bool { return KindOf(err) == KindUnsupported }

// IsInvalid returns true if err is an Invalid store error.
func IsInvalid(err error) bool { return KindOf(err) == KindInvalid }

// IsConflict returns true if err is a Conflict store error.
func IsConflict(err error) bool { return KindOf(err) == KindConflict }

// pgUniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const pgUniqueViolation = "23505"

// isUniqueViolation reports whether err carries a driver error for a
// violated unique constraint.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pgUniqueViolation
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals that neither the index nor the system of record holds the entity.
	ErrNotFound = errors.New("not found")
	// ErrSystemOfRecord signals a failure of the authoritative store.
	ErrSystemOfRecord = errors.New("system of record error")
	// ErrIndexUnavailable signals a failed search index call (triggers fallback).
	ErrIndexUnavailable = errors.New("search index unavailable")
	// ErrIndexWriteFailed signals a failed post-commit index mirror.
	ErrIndexWriteFailed = errors.New("search index write failed")
	// ErrScopeUnresolvable signals that the access scope of a subject could not be computed.
	ErrScopeUnresolvable = errors.New("access scope unresolvable")
	// ErrUnknownEntity signals an entity type missing from the catalog.
	ErrUnknownEntity = errors.New("unknown entity type")
	// ErrInvalidPayload signals a write payload rejected before or by the store.
	ErrInvalidPayload = errors.New("invalid payload")
	// ErrConflict signals a uniqueness violation in the store.
	ErrConflict = errors.New("conflict")
	// ErrForbidden signals an operation the subject may not perform.
	ErrForbidden = errors.New("forbidden")
	// ErrUnsupportedClause signals a clause the executor cannot express.
	ErrUnsupportedClause = errors.New("unsupported clause")
)

// ClauseError wraps ErrUnsupportedClause with the offending field.
type ClauseError struct {
	Field  string
	Reason string
}

func (e *ClauseError) Error() string {
	return fmt.Sprintf("%s: field %q: %s", ErrUnsupportedClause.Error(), e.Field, e.Reason)
}

func (e *ClauseError) Unwrap() error { return ErrUnsupportedClause }

// NewClauseError creates an unsupported clause error.
func NewClauseError(field, reason string) error {
	return &ClauseError{Field: field, Reason: reason}
}

// Package errs provides the unified error type used across all of fieldsync.
//
// Every subsystem (database drivers, the upsert engine, config loading)
// wraps its native errors into *errs.Error before returning them to callers.
// Callers use the Is* predicates to handle errors without importing
// driver-specific packages.
//
// Usage:
//
//	// In a driver — wrap native errors:
//	return errs.Wrap(errs.ErrKindTxFailed, "commit failed", pgErr)
//
//	// In a caller — check error kind:
//	if errs.IsMissingKey(err) {
//	    log.Error("batch contains records without a primary key")
//	}
package errs

import (
	"errors"
	"fmt"
)

// ErrKind categorises an error without exposing subsystem-specific codes.
// All backends (Postgres, MySQL) map their native errors to one of these
// kinds, giving callers a single consistent API.
type ErrKind int

const (
	ErrKindUnknown          ErrKind = iota
	ErrKindNotFound                 // no rows, no table
	ErrKindConnectionFailed         // cannot reach or authenticate to the backend
	ErrKindTimeout                  // context deadline / cancellation
	ErrKindQueryFailed              // SQL syntax or runtime execution error
	ErrKindInvalidInput             // bad arguments from the caller
	ErrKindSchemaConflict           // batch value incompatible with a stored column type
	ErrKindMissingKey               // record has no usable primary-key value
	ErrKindTxFailed                 // batch transaction failed; nothing was applied
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindNotFound:
		return "not_found"
	case ErrKindConnectionFailed:
		return "connection_failed"
	case ErrKindTimeout:
		return "timeout"
	case ErrKindQueryFailed:
		return "query_failed"
	case ErrKindInvalidInput:
		return "invalid_input"
	case ErrKindSchemaConflict:
		return "schema_conflict"
	case ErrKindMissingKey:
		return "missing_key"
	case ErrKindTxFailed:
		return "tx_failed"
	default:
		return "unknown"
	}
}

// Error is the single error type returned by all fieldsync subsystems.
// Drivers and the engine produce it; callers inspect it via the Is*
// predicates below.
type Error struct {
	Kind    ErrKind
	Message string
	Cause   error // original driver-level error, preserved for logging
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Newf creates an *Error with a formatted message and no cause.
func Newf(kind ErrKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an *Error with the given kind, message, and an underlying cause.
func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// --- Predicates ---

// IsNotFound reports whether err represents a "not found" result
// (no rows, unknown table, …).
func IsNotFound(err error) bool {
	return KindOf(err) == ErrKindNotFound
}

// IsTimeout reports whether err was caused by a deadline or context cancellation.
func IsTimeout(err error) bool {
	return KindOf(err) == ErrKindTimeout
}

// IsConnectionFailed reports whether err is a connectivity or auth failure.
func IsConnectionFailed(err error) bool {
	return KindOf(err) == ErrKindConnectionFailed
}

// IsQueryFailed reports whether err is a backend operation failure.
func IsQueryFailed(err error) bool {
	return KindOf(err) == ErrKindQueryFailed
}

// IsInvalidInput reports whether err was caused by bad input from the caller.
func IsInvalidInput(err error) bool {
	return KindOf(err) == ErrKindInvalidInput
}

// IsSchemaConflict reports whether err means the batch implied a column type
// incompatible with data already stored in the table.
func IsSchemaConflict(err error) bool {
	return KindOf(err) == ErrKindSchemaConflict
}

// IsMissingKey reports whether err means a record carried no usable
// primary-key value and no synthesis policy was configured.
func IsMissingKey(err error) bool {
	return KindOf(err) == ErrKindMissingKey
}

// IsTxFailed reports whether err means the batch transaction was rolled back.
// Nothing from the batch is visible in the table when this is returned.
func IsTxFailed(err error) bool {
	return KindOf(err) == ErrKindTxFailed
}

// KindOf extracts the ErrKind from any error in the chain.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}

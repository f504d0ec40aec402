package kylan

import (
	"errors"
	"fmt"
)

// Kind is a stable category for programmatic error handling.
// Callers should branch on Kind rather than matching error strings.
type Kind string

const (
	KindInvalidIdentity           Kind = "InvalidIdentity"
	KindInvalidAmount             Kind = "InvalidAmount"
	KindInvalidRateParameters     Kind = "InvalidRateParameters"
	KindCertificateViolation      Kind = "CertificateViolation"
	KindLedgerRecordUninitialized Kind = "LedgerRecordUninitialized"
	KindStateViolation            Kind = "StateViolation"
	KindInsufficientLedgerBalance Kind = "InsufficientLedgerBalance"
	KindAlreadyInitialized        Kind = "AlreadyInitialized"
	KindNotFound                  Kind = "NotFound"
	KindOverflow                  Kind = "Overflow"
	// KindSubmission is any rejection by the ledger that has no more specific kind.
	KindSubmission Kind = "Submission"
	KindInternal   Kind = "Internal"
)

// Error is the structured error returned by this module.
//
// Code is set when the condition was reported by the ledger and carries the
// program's numeric error code. Message is for humans; do not match on it.
type Error struct {
	Kind    Kind
	Code    uint32
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Code != 0 {
		return fmt.Sprintf("%s (%d): %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewError returns an error of the given kind.
func NewError(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError returns an error of the given kind wrapping cause.
func WrapError(kind Kind, cause error, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// IsKind reports whether err is (or wraps) an *Error with the given Kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}

// KindOf returns the Kind of a structured error, or "" if err is not one.
func KindOf(err error) Kind {
	var e *Error
	if !errors.As(err, &e) {
		return ""
	}
	return e.Kind
}

// CodeOf returns the ledger error code carried by err, or 0.
func CodeOf(err error) uint32 {
	var e *Error
	if !errors.As(err, &e) {
		return 0
	}
	return e.Code
}

// Package faults defines the error taxonomy shared by the acquisition
// workflow and the rotation state model. Every failure that crosses a
// package boundary carries a stable Kind so callers can branch on the
// class of failure without string matching.
package faults

import (
	"context"
	"errors"
	"fmt"
)

// Kind is a stable identifier for a class of failure.
type Kind string

const (
	// KindAuth means no valid credential could be obtained.
	KindAuth Kind = "auth"

	// KindTransport means a network or remote-API failure.
	KindTransport Kind = "transport"

	// KindTimeout means a bounded wait was exhausted (e.g. the poll loop).
	KindTimeout Kind = "timeout"

	// KindEmptySelection means zero items were selected, or zero
	// downloads succeeded after attempting all items.
	KindEmptySelection Kind = "empty_selection"

	// KindPersistence means a durable store read or write failed.
	KindPersistence Kind = "persistence"

	// KindValidation means the caller supplied an out-of-range parameter.
	KindValidation Kind = "validation"

	// KindCanceled means the caller canceled the operation.
	KindCanceled Kind = "canceled"

	// KindUnknown is the fallback for unclassified failures.
	KindUnknown Kind = "unknown"
)

// Error wraps a cause with a taxonomy kind.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a classified error without a cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates a classified error with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an existing error. Returns nil when cause is nil.
func Wrap(kind Kind, message string, cause error) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the kind from an error chain.
// Context cancellation maps to KindCanceled, deadline expiry to
// KindTimeout; anything else unclassified is KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindUnknown
}

// Is reports whether err carries the given kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}

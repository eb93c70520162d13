// Package apperrors provides the structured error taxonomy used across the
// connector framework. There is no HTTP surface to own status codes, so
// errors carry a Kind instead.
package apperrors

import (
	"errors"
	"fmt"
)

// Kind identifies the category of a framework error, per the error
// handling design: each kind has its own recovery semantics enforced by
// the caller (retry, surface, fall back to rules, abort).
type Kind string

const (
	KindConfig         Kind = "ConfigError"
	KindConnection     Kind = "ConnectionError"
	KindAuth           Kind = "AuthError"
	KindRateLimit      Kind = "RateLimit"
	KindTimeout        Kind = "Timeout"
	KindProtocol       Kind = "ProtocolError"
	KindValidation     Kind = "ValidationError"
	KindClassification Kind = "ClassificationError"
	KindPrivacy        Kind = "PrivacyViolation"
)

// Error is a structured framework error.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]interface{}
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// WithDetail attaches a key/value pair of contextual information and
// returns the receiver for chaining.
func (e *Error) WithDetail(key string, value interface{}) *Error {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// New creates an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap creates an Error of the given kind wrapping an underlying error.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Config(message string) *Error { return New(KindConfig, message) }

func Connection(message string, err error) *Error {
	return Wrap(KindConnection, message, err)
}

func Auth(message string) *Error { return New(KindAuth, message) }

func RateLimit(message string) *Error { return New(KindRateLimit, message) }

func Timeout(operation string) *Error {
	return New(KindTimeout, "operation timed out").WithDetail("operation", operation)
}

func Protocol(message string) *Error { return New(KindProtocol, message) }

func Validation(field, reason string) *Error {
	return New(KindValidation, "validation failed").
		WithDetail("field", field).
		WithDetail("reason", reason)
}

func Classification(message string, err error) *Error {
	return Wrap(KindClassification, message, err)
}

func Privacy(message string) *Error { return New(KindPrivacy, message) }

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind == kind
	}
	return false
}

// As extracts an *Error from err's chain, if present.
func As(err error) (*Error, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

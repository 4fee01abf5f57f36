package model

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an Error.
type Kind int

const (
	KindValidation Kind = iota + 1
	KindFormat
	KindNotFound
	KindVerificationMethodNotFound
	KindSignatureInvalid
	KindExpired
	KindRevoked
	KindSuspended
	KindStatusIndeterminate
	KindHolderBinding
	KindIssuanceFailed
)

var kindNames = map[Kind]string{
	KindValidation:                 "validation error",
	KindFormat:                     "format error",
	KindNotFound:                   "not found",
	KindVerificationMethodNotFound: "verification method not found",
	KindSignatureInvalid:           "signature invalid",
	KindExpired:                    "credential expired",
	KindRevoked:                    "credential revoked",
	KindSuspended:                  "credential suspended",
	KindStatusIndeterminate:        "status indeterminate",
	KindHolderBinding:              "holder binding error",
	KindIssuanceFailed:             "issuance failed",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Sentinels for errors.Is. Matching is by Kind only.
var (
	ErrValidation                 = &Error{Kind: KindValidation}
	ErrFormat                     = &Error{Kind: KindFormat}
	ErrNotFound                   = &Error{Kind: KindNotFound}
	ErrVerificationMethodNotFound = &Error{Kind: KindVerificationMethodNotFound}
	ErrSignatureInvalid           = &Error{Kind: KindSignatureInvalid}
	ErrExpired                    = &Error{Kind: KindExpired}
	ErrRevoked                    = &Error{Kind: KindRevoked}
	ErrSuspended                  = &Error{Kind: KindSuspended}
	ErrStatusIndeterminate        = &Error{Kind: KindStatusIndeterminate}
	ErrHolderBinding              = &Error{Kind: KindHolderBinding}
	ErrIssuanceFailed             = &Error{Kind: KindIssuanceFailed}
)

// Error is the error type returned by the trust engine. Field names the
// offending attribute when the failure is attributable to one.
type Error struct {
	Kind    Kind
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Field != "" {
		b.WriteString(": ")
		b.WriteString(e.Field)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same Kind. A missing
// verification method also matches ErrNotFound.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind == e.Kind {
		return true
	}
	return e.Kind == KindVerificationMethodNotFound && t.Kind == KindNotFound
}

// NewError creates an Error of the given kind.
func NewError(kind Kind, field, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Field: field, Message: fmt.Sprintf(format, args...)}
}

// WrapError wraps err with the given kind.
func WrapError(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// Validation is shorthand for a KindValidation error on field.
func Validation(field, format string, args ...interface{}) *Error {
	return NewError(KindValidation, field, format, args...)
}

// Format is shorthand for a KindFormat error on field.
func Format(field, format string, args ...interface{}) *Error {
	return NewError(KindFormat, field, format, args...)
}

// KindOf returns the Kind of the first *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

package domain

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindNotFound
	KindForbidden
	KindInvalid
	KindInvalidState
	KindUpstream
	KindSignatureInvalid
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindForbidden:
		return "forbidden"
	case KindInvalid:
		return "invalid"
	case KindInvalidState:
		return "invalid_state"
	case KindUpstream:
		return "upstream"
	case KindSignatureInvalid:
		return "signature_invalid"
	default:
		return "internal"
	}
}

// Error is a classified failure. Message is safe to return to clients.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s(%s): %s: %v", e.Kind, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s(%s): %s", e.Kind, e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func NotFound(code, message string) error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

func Forbidden(code, message string) error {
	return &Error{Kind: KindForbidden, Code: code, Message: message}
}

func Invalid(code, message string) error {
	return &Error{Kind: KindInvalid, Code: code, Message: message}
}

func InvalidState(code, message string) error {
	return &Error{Kind: KindInvalidState, Code: code, Message: message}
}

func Upstream(code, message string, err error) error {
	return &Error{Kind: KindUpstream, Code: code, Message: message, Err: err}
}

func SignatureInvalid(message string) error {
	return &Error{Kind: KindSignatureInvalid, Code: "signature_invalid", Message: message}
}

// KindOf returns the classification of err, KindInternal when unclassified.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// CodeOf returns the machine code of a classified error.
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

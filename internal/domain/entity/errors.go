package entity

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure so the boundary layer can translate it.
type ErrorKind string

const (
	KindValidation ErrorKind = "validation"
	KindSizeLimit  ErrorKind = "size_limit"
	KindNotFound   ErrorKind = "not_found"
	KindDecode     ErrorKind = "decode"
	KindConflict   ErrorKind = "conflict"
	KindCanceled   ErrorKind = "canceled"
	KindInternal   ErrorKind = "internal"
)

// Error is the structured failure raised by ingestion, sampling and lookup.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrValidation = &Error{Kind: KindValidation}
	ErrSizeLimit  = &Error{Kind: KindSizeLimit}
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrDecode     = &Error{Kind: KindDecode}
	ErrConflict   = &Error{Kind: KindConflict}
	ErrCanceled   = &Error{Kind: KindCanceled}
)

func NewError(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// KindOf reports the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsPermanent reports whether retrying the same request cannot succeed.
func IsPermanent(err error) bool {
	switch KindOf(err) {
	case KindValidation, KindSizeLimit, KindNotFound, KindDecode, KindConflict, KindCanceled:
		return true
	}
	return false
}

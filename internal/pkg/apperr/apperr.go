package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies failures by where they surface and how callers react.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindParse         Kind = "parse"
	KindPersistence   Kind = "persistence"
	KindConfig        Kind = "config"
	KindDataIntegrity Kind = "data_integrity"
	KindNetwork       Kind = "network"
)

// Sentinels usable with errors.Is.
var (
	ErrValidation    = &Error{Kind: KindValidation}
	ErrParse         = &Error{Kind: KindParse}
	ErrPersistence   = &Error{Kind: KindPersistence}
	ErrConfig        = &Error{Kind: KindConfig}
	ErrDataIntegrity = &Error{Kind: KindDataIntegrity}
	ErrNetwork       = &Error{Kind: KindNetwork}
)

// Error is a classified application error.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind) + " error"
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func newf(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

func Validation(format string, args ...any) error {
	return newf(KindValidation, nil, format, args...)
}

func Parse(err error, format string, args ...any) error {
	return newf(KindParse, err, format, args...)
}

func Persistence(err error, format string, args ...any) error {
	return newf(KindPersistence, err, format, args...)
}

func Config(format string, args ...any) error {
	return newf(KindConfig, nil, format, args...)
}

func DataIntegrity(format string, args ...any) error {
	return newf(KindDataIntegrity, nil, format, args...)
}

func Network(err error, format string, args ...any) error {
	return newf(KindNetwork, err, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Message returns the user-facing message of a classified error without the
// wrapped cause, falling back to err.Error().
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	if err == nil {
		return ""
	}
	return err.Error()
}

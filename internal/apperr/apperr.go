// Package apperr carries the expected failure kinds of the booking service
// and their mapping onto HTTP statuses and gRPC codes.
package apperr

import (
	"errors"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUserNotFound
	KindInvalidDate
	KindPastDate
	KindConflict
	KindUnauthenticated
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindUserNotFound:
		return "user_not_found"
	case KindInvalidDate:
		return "invalid_date"
	case KindPastDate:
		return "past_date"
	case KindConflict:
		return "conflict"
	case KindUnauthenticated:
		return "unauthenticated"
	default:
		return "internal"
	}
}

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrValidation      = &Error{Kind: KindValidation, Msg: "validation failed"}
	ErrUserNotFound    = &Error{Kind: KindUserNotFound, Msg: "user not found"}
	ErrInvalidDate     = &Error{Kind: KindInvalidDate, Msg: "invalid date"}
	ErrPastDate        = &Error{Kind: KindPastDate, Msg: "cannot schedule a past date"}
	ErrConflict        = &Error{Kind: KindConflict, Msg: "there is another booking at the same time"}
	ErrUnauthenticated = &Error{Kind: KindUnauthenticated, Msg: "unauthenticated"}
)

func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

func Validation(msg string) error { return New(KindValidation, msg) }

// Internal wraps an unexpected failure; its message never reaches clients.
func Internal(err error) error {
	return &Error{Kind: KindInternal, Msg: "internal error", Err: err}
}

// KindOf reports the kind of err. Plain errors are internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Message is the client-safe text for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Msg
	}
	return "internal error"
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation, KindInvalidDate, KindPastDate:
		return http.StatusBadRequest
	case KindUserNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func GRPCCode(err error) codes.Code {
	switch KindOf(err) {
	case KindValidation, KindInvalidDate:
		return codes.InvalidArgument
	case KindPastDate:
		return codes.FailedPrecondition
	case KindUserNotFound:
		return codes.NotFound
	case KindConflict:
		return codes.AlreadyExists
	case KindUnauthenticated:
		return codes.Unauthenticated
	default:
		return codes.Internal
	}
}

// GRPCStatus converts err into a status error carrying the client-safe message.
func GRPCStatus(err error) error {
	if err == nil {
		return nil
	}
	return status.Error(GRPCCode(err), Message(err))
}

package errors

import (
	"errors"
	"net/http"

	"google.golang.org/api/googleapi"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrPermissionDenied = errors.New("permission denied")
	ErrAuthExpired      = errors.New("authorization expired")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrInvalidPath      = &wrapError{underlying: ErrInvalidArgument, msg: "invalid path"}
	ErrAPIError         = errors.New("api error")
	ErrIOError          = errors.New("io error")
	ErrNotSupported     = errors.New("not supported")
)

type wrapError struct {
	underlying error
	msg        string
	cause      error
}

var _ error = (*wrapError)(nil)

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// New returns an error that matches both kind and cause with errors.Is.
func New(kind error, msg string, cause error) error {
	return &wrapError{
		underlying: kind,
		msg:        msg,
		cause:      cause,
	}
}

func NewAPIError(msg string, cause error) error {
	return New(ErrAPIError, msg, cause)
}

func NewIOError(msg string, cause error) error {
	return New(ErrIOError, msg, cause)
}

// FromStatus classifies a failed HTTP exchange by its status code.
func FromStatus(code int, msg string, cause error) error {
	switch code {
	case http.StatusBadRequest:
		return New(ErrInvalidArgument, msg, cause)
	case http.StatusUnauthorized:
		return New(ErrAuthExpired, msg, cause)
	case http.StatusForbidden:
		return New(ErrPermissionDenied, msg, cause)
	case http.StatusNotFound:
		return New(ErrNotFound, msg, cause)
	case http.StatusConflict:
		return New(ErrAlreadyExists, msg, cause)
	default:
		return NewAPIError(msg, cause)
	}
}

// FromAPI classifies err by the status code of a *googleapi.Error in its chain.
// Errors without a status code are reported as ErrAPIError.
func FromAPI(msg string, err error) error {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return FromStatus(gErr.Code, msg, err)
	}
	return NewAPIError(msg, err)
}

func (err *wrapError) Error() string {
	if err == nil {
		return "(*wrapError)(nil)"
	}
	message := err.underlying.Error() + ": " + err.msg
	if err.cause != nil {
		message += ": " + err.cause.Error()
	}
	return message
}

func (err *wrapError) Unwrap() []error {
	if err.cause == nil {
		return []error{err.underlying}
	}
	return []error{err.underlying, err.cause}
}

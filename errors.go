package boxfs

import (
	boxerrors "github.com/Jumpaku/go-boxfs/errors"
)

var (
	ErrNotFound         = boxerrors.ErrNotFound
	ErrAlreadyExists    = boxerrors.ErrAlreadyExists
	ErrPermissionDenied = boxerrors.ErrPermissionDenied
	ErrAuthExpired      = boxerrors.ErrAuthExpired
	ErrInvalidArgument  = boxerrors.ErrInvalidArgument
	ErrInvalidPath      = boxerrors.ErrInvalidPath
	ErrAPIError         = boxerrors.ErrAPIError
	ErrIOError          = boxerrors.ErrIOError
	ErrNotSupported     = boxerrors.ErrNotSupported
)

func newNotFoundError(msg string, cause error) error {
	return boxerrors.New(ErrNotFound, msg, cause)
}

func newIOError(msg string, cause error) error {
	return boxerrors.NewIOError(msg, cause)
}

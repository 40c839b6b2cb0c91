package boxfs

// This file is part of the package tests (package boxfs) and provides
// helpers that allow tests in the external package to access internal
// package constructs. Helpers are exported so `boxfs_test` can call them
// via the module import path.

// NewNotFoundError constructs a not-found error using package-internal constructor.
func NewNotFoundError(msg string, cause error) error {
	return newNotFoundError(msg, cause)
}

// NewIOError constructs an io-wrapped error using package-internal constructor.
func NewIOError(msg string, cause error) error {
	return newIOError(msg, cause)
}

// ChunkThreshold returns the size from which uploads are sent in chunks.
func (s *BoxFS) ChunkThreshold() int64 {
	return s.chunkThreshold()
}

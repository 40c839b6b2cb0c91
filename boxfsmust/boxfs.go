// Package boxfsmust wraps the boxfs package with panic-based error handling.
//
// It provides the same path-based operations as the root-level boxfs
// package, but instead of returning errors, all exported methods panic on failure.
// It is meant for scripts and tests where any failure is fatal.
package boxfsmust

import (
	"context"
	"time"

	boxfs "github.com/Jumpaku/go-boxfs"
	"github.com/Jumpaku/go-boxfs/remote"
)

// BoxFS provides path-based operations on a remote storage service.
//
// All methods of BoxFS panic on error instead of returning an error value.
type BoxFS struct {
	boxFS *boxfs.BoxFS
}

// New opens a session over client like boxfs.New.
//
// It panics if the root folder cannot be found or the authorization cannot be restricted.
func New(ctx context.Context, client remote.Client, opts ...boxfs.Option) *BoxFS {
	return &BoxFS{boxFS: must(boxfs.New(ctx, client, opts...))}
}

// Wrap returns a panicking facade over s.
func Wrap(s *boxfs.BoxFS) *BoxFS {
	return &BoxFS{boxFS: s}
}

// Unwrap returns the underlying error-returning session.
func (s *BoxFS) Unwrap() *boxfs.BoxFS {
	return s.boxFS
}

// Exists reports whether anything is found at path.
//
// It panics on failures other than a missing object.
func (s *BoxFS) Exists(ctx context.Context, path string) bool {
	return must(s.boxFS.Exists(ctx, path))
}

// Mkdir creates a folder at path, and its missing parents if createParents is set.
//
// It panics if a parent is missing and createParents is not set
// (the underlying error would be ErrNotFound).
func (s *BoxFS) Mkdir(ctx context.Context, path string, createParents bool) {
	check(s.boxFS.Mkdir(ctx, path, createParents))
}

// MakeDirs creates a folder at path together with its missing parents.
//
// It panics if the folder exists and existOK is not set
// (the underlying error would be ErrAlreadyExists).
func (s *BoxFS) MakeDirs(ctx context.Context, path string, existOK bool) {
	check(s.boxFS.MakeDirs(ctx, path, existOK))
}

// RmFile deletes the file at path.
//
// It panics if the file does not exist or the deletion is rejected.
func (s *BoxFS) RmFile(ctx context.Context, path string, etag string) {
	check(s.boxFS.RmFile(ctx, path, etag))
}

// Rmdir deletes the folder at path with its contents.
func (s *BoxFS) Rmdir(ctx context.Context, path string, etag string) {
	check(s.boxFS.Rmdir(ctx, path, etag))
}

// Ls lists the folder at path.
func (s *BoxFS) Ls(ctx context.Context, path string, refresh bool) []boxfs.Entry {
	return must(s.boxFS.Ls(ctx, path, refresh))
}

// LsNames lists the paths inside the folder at path.
func (s *BoxFS) LsNames(ctx context.Context, path string, refresh bool) []boxfs.Path {
	return must(s.boxFS.LsNames(ctx, path, refresh))
}

// CpFile copies src to dest.
//
// It panics if dest already exists (the underlying error would be ErrAlreadyExists).
func (s *BoxFS) CpFile(ctx context.Context, src, dest string) {
	check(s.boxFS.CpFile(ctx, src, dest))
}

func (s *BoxFS) Info(ctx context.Context, path string) boxfs.Entry {
	return must(s.boxFS.Info(ctx, path))
}

func (s *BoxFS) Created(ctx context.Context, path string) time.Time {
	return must(s.boxFS.Created(ctx, path))
}

func (s *BoxFS) Modified(ctx context.Context, path string) time.Time {
	return must(s.boxFS.Modified(ctx, path))
}

// Sign returns a download URL for the file at path.
func (s *BoxFS) Sign(ctx context.Context, path string) string {
	return must(s.boxFS.Sign(ctx, path))
}

// ReadFile reads the whole file at path.
func (s *BoxFS) ReadFile(ctx context.Context, path string) []byte {
	return must(s.boxFS.ReadFile(ctx, path))
}

// WriteFile creates or replaces the file at path with data.
func (s *BoxFS) WriteFile(ctx context.Context, path string, data []byte) *remote.Item {
	return must(s.boxFS.WriteFile(ctx, path, data))
}

// Touch creates an empty file at path unless one exists.
func (s *BoxFS) Touch(ctx context.Context, path string) {
	check(s.boxFS.Touch(ctx, path))
}

func (s *BoxFS) Resolve(ctx context.Context, path string) remote.ObjectID {
	return must(s.boxFS.Resolve(ctx, path))
}

// check panics with err unless it is nil.
func check(err error) {
	if err != nil {
		panic(err)
	}
}

func must[T any](v T, err error) T {
	check(err)
	return v
}

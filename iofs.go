package boxfs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"
)

// FS adapts a BoxFS to io/fs.
// Every remote call made through FS uses the context it was created with.
type FS struct {
	ctx context.Context
	fs  *BoxFS
}

// Verify interface implementations at compile time.
var (
	_ fs.FS         = (*FS)(nil)
	_ fs.ReadDirFS  = (*FS)(nil)
	_ fs.StatFS     = (*FS)(nil)
	_ fs.ReadFileFS = (*FS)(nil)
)

// FS returns an io/fs view of the session.
func (s *BoxFS) FS(ctx context.Context) *FS {
	return &FS{ctx: ctx, fs: s}
}

// Open opens the named file or folder.
func (f *FS) Open(name string) (fs.File, error) {
	p, err := f.path("open", name)
	if err != nil {
		return nil, err
	}
	e, err := f.fs.Info(f.ctx, p.String())
	if err != nil {
		return nil, pathError("open", name, err)
	}
	if !e.IsFolder() {
		return &File{ctx: f.ctx, fs: f.fs, entry: e, blockSize: f.fs.blockSize}, nil
	}
	children, err := f.readDir(p)
	if err != nil {
		return nil, pathError("open", name, err)
	}
	return newDir(e, children), nil
}

// ReadDir reads the named folder and returns its entries sorted by name.
func (f *FS) ReadDir(name string) ([]fs.DirEntry, error) {
	p, err := f.path("readdir", name)
	if err != nil {
		return nil, err
	}
	children, err := f.readDir(p)
	if err != nil {
		return nil, pathError("readdir", name, err)
	}
	entries := make([]fs.DirEntry, 0, len(children))
	for _, c := range children {
		entries = append(entries, &DirEntry{entry: c})
	}
	return entries, nil
}

// Stat returns the file info of the named file or folder.
func (f *FS) Stat(name string) (fs.FileInfo, error) {
	p, err := f.path("stat", name)
	if err != nil {
		return nil, err
	}
	e, err := f.fs.Info(f.ctx, p.String())
	if err != nil {
		return nil, pathError("stat", name, err)
	}
	return &FileInfo{entry: e}, nil
}

// ReadFile reads the named file.
func (f *FS) ReadFile(name string) ([]byte, error) {
	p, err := f.path("readfile", name)
	if err != nil {
		return nil, err
	}
	data, err := f.fs.ReadFile(f.ctx, p.String())
	if err != nil {
		return nil, pathError("readfile", name, err)
	}
	return data, nil
}

func (f *FS) path(op, name string) (Path, error) {
	if !fs.ValidPath(name) {
		return Path{}, &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
	}
	return MustParsePath(name), nil
}

func (f *FS) readDir(p Path) ([]Entry, error) {
	e, err := f.fs.Info(f.ctx, p.String())
	if err != nil {
		return nil, err
	}
	if !e.IsFolder() {
		return nil, fmt.Errorf("%q is not a folder: %w", p, ErrInvalidArgument)
	}
	children, err := f.fs.lister.List(f.ctx, e.Path, false)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(children, func(a, b Entry) int {
		return strings.Compare(a.Name, b.Name)
	})
	return children, nil
}

// pathError converts err into a *fs.PathError whose Err matches the io/fs sentinels.
func pathError(op, name string, err error) error {
	var pe *fs.PathError
	if errors.As(err, &pe) {
		return pe
	}
	switch {
	case errors.Is(err, ErrNotFound):
		err = errors.Join(fs.ErrNotExist, err)
	case errors.Is(err, ErrPermissionDenied):
		err = errors.Join(fs.ErrPermission, err)
	case errors.Is(err, ErrAlreadyExists):
		err = errors.Join(fs.ErrExist, err)
	case errors.Is(err, ErrInvalidArgument):
		err = errors.Join(fs.ErrInvalid, err)
	}
	return &fs.PathError{Op: op, Path: name, Err: err}
}

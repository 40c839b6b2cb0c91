// Package boxfs exposes a remote cloud storage service as a filesystem addressed by slash-separated paths.
//
// Paths are translated into remote object IDs by a Resolver that keeps every
// path it observes in a ResolutionCache, so that repeated operations on nearby
// paths need few remote calls. Writes are buffered by an UploadSession and
// uploaded on close, as one stream or in chunks depending on their size.
package boxfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Jumpaku/go-boxfs/remote"
	"github.com/sirupsen/logrus"
)

// BoxFS is a filesystem session rooted at one remote folder.
// It is safe for concurrent use.
type BoxFS struct {
	auth      *auth
	cache     *ResolutionCache
	resolver  *Resolver
	lister    *Lister
	blockSize int64
	tempDir   string
	log       logrus.FieldLogger
}

// New opens a session over client.
//
// The root folder is taken from WithRootID, or found at WithRootPath below the
// service's global root, or is the global root itself. With WithScopes the
// token is restricted to the scopes and the root folder before New returns.
func New(ctx context.Context, client remote.Client, opts ...Option) (*BoxFS, error) {
	o, err := newOptions(opts)
	if err != nil {
		return nil, err
	}
	s := &BoxFS{
		auth:      newAuth(client, o.log),
		cache:     NewResolutionCache(),
		blockSize: o.blockSize,
		tempDir:   o.tempDir,
		log:       o.log,
	}
	s.resolver = &Resolver{
		auth:  s.auth,
		cache: s.cache,
		root:  RootContext{ID: remote.FolderID(client.RootID())},
		log:   o.log,
	}

	rootID, err := s.findRoot(ctx, o)
	if err != nil {
		return nil, err
	}
	if len(o.scopes) > 0 {
		if err := s.auth.restrict(ctx, o.scopes, rootID.ID); err != nil {
			return nil, fmt.Errorf("failed to restrict authorization: %w", err)
		}
	}
	// The root path is computed after restriction since a restricted token
	// may not see the root's ancestors.
	root, err := call(ctx, s.auth, func(c remote.Client) (*remote.Item, error) {
		return c.GetItem(ctx, rootID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get root folder %s: %w", rootID, err)
	}
	if !root.IsFolder() {
		return nil, fmt.Errorf("root %s is not a folder: %w", rootID, ErrInvalidArgument)
	}
	s.resolver.root = RootContext{ID: root.ObjectID(), Path: s.resolver.itemPath(root)}

	s.log = o.log.WithField("root", root.ID)
	s.auth.log = s.log
	s.resolver.log = s.log
	s.lister = newLister(s.resolver, o.listingTTL, s.log)

	for key, obj := range o.pathMap {
		p, err := s.parse(key)
		if err != nil {
			return nil, fmt.Errorf("invalid path map entry: %w", err)
		}
		if obj.Type == 0 {
			obj.Type = remote.TypeFolder
		}
		s.cache.Put(p, obj)
	}
	return s, nil
}

func (s *BoxFS) findRoot(ctx context.Context, o *options) (remote.ObjectID, error) {
	switch {
	case o.rootID != "":
		return remote.FolderID(o.rootID), nil
	case o.rootPath != "":
		p, err := ParsePath(o.rootPath)
		if err != nil {
			return remote.ObjectID{}, fmt.Errorf("invalid root path: %w", err)
		}
		obj, err := s.resolver.ResolveAbsolute(ctx, p)
		if err != nil {
			return remote.ObjectID{}, fmt.Errorf("failed to find root folder %q: %w", p, err)
		}
		return obj, nil
	default:
		return s.resolver.root.ID, nil
	}
}

func (s *BoxFS) chunkThreshold() int64 {
	return 10 * s.blockSize
}

// Root returns the folder the session is rooted at.
func (s *BoxFS) Root() RootContext {
	return s.resolver.root
}

// Cache returns the session's resolution cache.
func (s *BoxFS) Cache() *ResolutionCache {
	return s.cache
}

// parse parses path and strips the root folder's absolute path from it.
// Paths are made relative here and nowhere else.
func (s *BoxFS) parse(path string) (Path, error) {
	p, err := ParsePath(path)
	if err != nil {
		return Path{}, err
	}
	return s.resolver.relative(p), nil
}

// Resolve returns the object at path.
func (s *BoxFS) Resolve(ctx context.Context, path string) (remote.ObjectID, error) {
	p, err := s.parse(path)
	if err != nil {
		return remote.ObjectID{}, err
	}
	return s.resolver.Resolve(ctx, p)
}

// Exists reports whether anything is found at path.
// Failures other than a missing object are returned.
func (s *BoxFS) Exists(ctx context.Context, path string) (bool, error) {
	_, err := s.Resolve(ctx, path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return false, err
	}
}

// Mkdir creates a folder at path. It does nothing if something already exists there.
// Missing parents are created if createParents is set, otherwise Mkdir fails with ErrNotFound.
func (s *BoxFS) Mkdir(ctx context.Context, path string, createParents bool) error {
	p, err := s.parse(path)
	if err != nil {
		return err
	}
	_, err = s.mkdir(ctx, p, createParents)
	return err
}

func (s *BoxFS) mkdir(ctx context.Context, p Path, createParents bool) (remote.ObjectID, error) {
	if obj, err := s.resolver.Resolve(ctx, p); err == nil {
		return obj, nil
	} else if !errors.Is(err, ErrNotFound) {
		return remote.ObjectID{}, err
	}

	// Climb to the closest existing ancestor.
	missing := []Path{p}
	var parent remote.ObjectID
	for q := p.Parent(); ; q = q.Parent() {
		obj, err := s.resolver.Resolve(ctx, q)
		if err == nil {
			parent = obj
			break
		}
		if !errors.Is(err, ErrNotFound) {
			return remote.ObjectID{}, err
		}
		if !createParents {
			return remote.ObjectID{}, fmt.Errorf("parent folder %q does not exist: %w", q, err)
		}
		missing = append(missing, q)
	}

	for i := len(missing) - 1; i >= 0; i-- {
		if !parent.IsFolder() {
			return remote.ObjectID{}, fmt.Errorf("parent of %q is not a folder: %w", missing[i], ErrInvalidArgument)
		}
		folder := missing[i]
		item, err := call(ctx, s.auth, func(c remote.Client) (*remote.Item, error) {
			return c.CreateFolder(ctx, parent.ID, folder.Base())
		})
		if err != nil {
			return remote.ObjectID{}, fmt.Errorf("failed to create folder %q: %w", folder, err)
		}
		parent = item.ObjectID()
		s.cache.Put(folder, parent)
		s.lister.Invalidate(folder.Parent())
		s.log.WithField("path", folder.String()).WithField("id", item.ID).Debug("created folder")
	}
	return parent, nil
}

// MakeDirs creates a folder at path together with its missing parents.
// It fails with ErrAlreadyExists if path exists unless existOK is set.
func (s *BoxFS) MakeDirs(ctx context.Context, path string, existOK bool) error {
	exists, err := s.Exists(ctx, path)
	if err != nil {
		return err
	}
	if exists {
		if !existOK {
			return fmt.Errorf("%q: %w", path, ErrAlreadyExists)
		}
		return nil
	}
	return s.Mkdir(ctx, path, true)
}

// RmFile deletes the file at path. A non-empty etag makes the deletion conditional.
func (s *BoxFS) RmFile(ctx context.Context, path string, etag string) error {
	return s.remove(ctx, path, remote.TypeFile, etag)
}

// Rmdir deletes the folder at path with everything inside it.
// A non-empty etag makes the deletion conditional.
func (s *BoxFS) Rmdir(ctx context.Context, path string, etag string) error {
	return s.remove(ctx, path, remote.TypeFolder, etag)
}

func (s *BoxFS) remove(ctx context.Context, path string, want remote.Type, etag string) error {
	p, err := s.parse(path)
	if err != nil {
		return err
	}
	if p.IsRoot() {
		return fmt.Errorf("cannot remove the root folder: %w", ErrInvalidArgument)
	}
	obj, err := s.resolver.Resolve(ctx, p)
	if err != nil {
		return err
	}
	if obj.Type != want {
		return fmt.Errorf("%q is a %v, not a %v: %w", p, obj.Type, want, ErrInvalidArgument)
	}
	if err := do(ctx, s.auth, func(c remote.Client) error {
		return c.Delete(ctx, obj, etag)
	}); err != nil {
		return fmt.Errorf("failed to remove %q: %w", p, err)
	}
	s.cache.Delete(p)
	s.lister.Invalidate(p.Parent())
	s.lister.InvalidateAll(p)
	return nil
}

// Ls lists the folder at path, or describes the file at path.
// Unless refresh is set a listing kept from an earlier call may be returned.
func (s *BoxFS) Ls(ctx context.Context, path string, refresh bool) ([]Entry, error) {
	p, err := s.parse(path)
	if err != nil {
		return nil, err
	}
	return s.lister.List(ctx, p, refresh)
}

// LsNames is like Ls but returns the paths only.
func (s *BoxFS) LsNames(ctx context.Context, path string, refresh bool) ([]Path, error) {
	entries, err := s.Ls(ctx, path, refresh)
	if err != nil {
		return nil, err
	}
	paths := make([]Path, 0, len(entries))
	for _, e := range entries {
		paths = append(paths, e.Path)
	}
	return paths, nil
}

// CpFile copies the file or folder at src to dest.
// It fails with ErrAlreadyExists if dest exists; existing content is never replaced.
func (s *BoxFS) CpFile(ctx context.Context, src, dest string) error {
	srcPath, err := s.parse(src)
	if err != nil {
		return err
	}
	destPath, err := s.parse(dest)
	if err != nil {
		return err
	}
	if destPath.IsRoot() {
		return fmt.Errorf("cannot copy onto the root folder: %w", ErrAlreadyExists)
	}
	srcObj, err := s.resolver.Resolve(ctx, srcPath)
	if err != nil {
		return err
	}
	parent, err := s.resolver.Resolve(ctx, destPath.Parent())
	if err != nil {
		return fmt.Errorf("failed to resolve destination folder: %w", err)
	}
	if !parent.IsFolder() {
		return fmt.Errorf("parent of %q is not a folder: %w", destPath, ErrInvalidArgument)
	}
	if _, err := s.resolver.Resolve(ctx, destPath); err == nil {
		return fmt.Errorf("%q: %w", destPath, ErrAlreadyExists)
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}
	item, err := call(ctx, s.auth, func(c remote.Client) (*remote.Item, error) {
		return c.Copy(ctx, srcObj, parent.ID, destPath.Base())
	})
	if err != nil {
		return fmt.Errorf("failed to copy %q to %q: %w", srcPath, destPath, err)
	}
	s.cache.Put(destPath, item.ObjectID())
	s.lister.Invalidate(destPath.Parent())
	return nil
}

// Info describes the file or folder at path.
func (s *BoxFS) Info(ctx context.Context, path string) (Entry, error) {
	p, err := s.parse(path)
	if err != nil {
		return Entry{}, err
	}
	obj, err := s.resolver.Resolve(ctx, p)
	if err != nil {
		return Entry{}, err
	}
	item, err := call(ctx, s.auth, func(c remote.Client) (*remote.Item, error) {
		return c.GetItem(ctx, obj)
	})
	if err != nil {
		return Entry{}, fmt.Errorf("failed to get %q: %w", p, err)
	}
	return newEntry(p, item), nil
}

func (s *BoxFS) Created(ctx context.Context, path string) (time.Time, error) {
	e, err := s.Info(ctx, path)
	if err != nil {
		return time.Time{}, err
	}
	return e.CreatedAt, nil
}

func (s *BoxFS) Modified(ctx context.Context, path string) (time.Time, error) {
	e, err := s.Info(ctx, path)
	if err != nil {
		return time.Time{}, err
	}
	return e.ModifiedAt, nil
}

// Sign returns a URL the file at path can be downloaded from without authorization.
func (s *BoxFS) Sign(ctx context.Context, path string) (string, error) {
	obj, err := s.Resolve(ctx, path)
	if err != nil {
		return "", err
	}
	if obj.IsFolder() {
		return "", fmt.Errorf("%q is a folder: %w", path, ErrInvalidArgument)
	}
	return call(ctx, s.auth, func(c remote.Client) (string, error) {
		return c.DownloadURL(ctx, obj.ID)
	})
}

// Open opens the file at path for reading.
// Reads performed through the handle use ctx.
func (s *BoxFS) Open(ctx context.Context, path string) (*File, error) {
	e, err := s.Info(ctx, path)
	if err != nil {
		return nil, err
	}
	if e.IsFolder() {
		return nil, fmt.Errorf("%q is a folder: %w", e.Path, ErrInvalidArgument)
	}
	return &File{ctx: ctx, fs: s, entry: e, blockSize: s.blockSize}, nil
}

// Create opens the file at path for writing. The content is uploaded when the
// returned Writer is closed and replaces the file if it exists.
func (s *BoxFS) Create(ctx context.Context, path string) (*Writer, error) {
	p, err := s.parse(path)
	if err != nil {
		return nil, err
	}
	session, err := s.newUploadSession(ctx, p)
	if err != nil {
		return nil, err
	}
	return &Writer{ctx: ctx, session: session}, nil
}

// ReadFile returns the whole content of the file at path.
func (s *BoxFS) ReadFile(ctx context.Context, path string) ([]byte, error) {
	f, err := s.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data := make([]byte, f.entry.Size)
	if _, err := io.ReadFull(f, data); err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", f.entry.Path, err)
	}
	return data, nil
}

// WriteFile writes data to the file at path, creating or replacing it.
func (s *BoxFS) WriteFile(ctx context.Context, path string, data []byte) (*remote.Item, error) {
	w, err := s.Create(ctx, path)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, errors.Join(err, w.Abort())
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return w.Item(), nil
}

// Touch creates an empty file at path. An existing file is left untouched.
func (s *BoxFS) Touch(ctx context.Context, path string) error {
	exists, err := s.Exists(ctx, path)
	if err != nil || exists {
		return err
	}
	_, err = s.WriteFile(ctx, path, nil)
	return err
}

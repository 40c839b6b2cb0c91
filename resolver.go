package boxfs

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/Jumpaku/go-boxfs/remote"
	"github.com/sirupsen/logrus"
)

// RootContext is the folder a BoxFS is rooted at.
type RootContext struct {
	ID remote.ObjectID
	// Path is the root folder's path below the service's global root,
	// as far as the session's token can see it.
	Path Path
}

// Resolver translates paths into remote object IDs.
//
// Resolution climbs from the path towards the root until it meets a cached
// ancestor, then descends by listing one folder per remaining segment. Every
// listed child is cached on the way down.
type Resolver struct {
	auth  *auth
	cache *ResolutionCache
	root  RootContext
	log   logrus.FieldLogger
}

// Resolve returns the object at p, a path relative to the root.
//
// It fails with ErrNotFound if nothing exists at p. Remote failures other than
// an expired authorization are reported as ErrNotFound too; an expired
// authorization is refreshed and the lookup repeated once.
func (r *Resolver) Resolve(ctx context.Context, p Path) (remote.ObjectID, error) {
	if p.IsRoot() {
		return r.root.ID, nil
	}
	if obj, ok := r.cache.Get(p); ok {
		r.log.WithField("path", p.String()).Debug("resolved from cache")
		return obj, nil
	}
	r.log.WithField("path", p.String()).Debug("resolving remotely")
	obj, err := call(ctx, r.auth, func(c remote.Client) (remote.ObjectID, error) {
		return r.descend(ctx, c, p)
	})
	if err != nil {
		return remote.ObjectID{}, notFoundUnlessAuth(fmt.Sprintf("could not resolve %q", p), err)
	}
	return obj, nil
}

// closestKnown returns the deepest cached ancestor of p, p included.
func (r *Resolver) closestKnown(p Path) (Path, remote.ObjectID) {
	for q := p; !q.IsRoot(); q = q.Parent() {
		if obj, ok := r.cache.Get(q); ok {
			return q, obj
		}
	}
	return Path{}, r.root.ID
}

func (r *Resolver) descend(ctx context.Context, c remote.Client, p Path) (remote.ObjectID, error) {
	current, obj := r.closestKnown(p)
	for _, name := range p.Segments()[current.Depth():] {
		if !obj.IsFolder() {
			return remote.ObjectID{}, newNotFoundError(fmt.Sprintf("%q is not a folder", current), nil)
		}
		items, err := c.ListChildren(ctx, obj.ID)
		if err != nil {
			return remote.ObjectID{}, err
		}
		found := false
		for _, item := range items {
			if !addressable(item.Name) {
				continue
			}
			r.cache.Put(current.Join(item.Name), item.ObjectID())
			if !found && item.Name == name {
				obj, found = item.ObjectID(), true
			}
		}
		if !found {
			return remote.ObjectID{}, newNotFoundError(fmt.Sprintf("%q not found in %q", name, current), nil)
		}
		current = current.Join(name)
	}
	return obj, nil
}

// ResolveAbsolute returns the object at p below the service's global root.
// It neither reads nor fills the cache.
// It fails with ErrPermissionDenied if the global root cannot be read.
func (r *Resolver) ResolveAbsolute(ctx context.Context, p Path) (remote.ObjectID, error) {
	obj, err := call(ctx, r.auth, func(c remote.Client) (remote.ObjectID, error) {
		root, err := c.GetItem(ctx, remote.FolderID(c.RootID()))
		if err != nil {
			if errors.Is(err, ErrPermissionDenied) {
				return remote.ObjectID{}, fmt.Errorf("could not access the global root folder: %w", err)
			}
			return remote.ObjectID{}, err
		}
		obj := root.ObjectID()
		for i, name := range p.Segments() {
			if !obj.IsFolder() {
				return remote.ObjectID{}, newNotFoundError(fmt.Sprintf("%q is not a folder", pathOf(p.Segments()[:i])), nil)
			}
			items, err := c.ListChildren(ctx, obj.ID)
			if err != nil {
				return remote.ObjectID{}, err
			}
			next := -1
			for j, item := range items {
				if item.Name == name {
					next = j
					break
				}
			}
			if next < 0 {
				return remote.ObjectID{}, newNotFoundError(fmt.Sprintf("%q not found", pathOf(p.Segments()[:i+1])), nil)
			}
			obj = items[next].ObjectID()
		}
		return obj, nil
	})
	if err != nil {
		if errors.Is(err, ErrPermissionDenied) {
			return remote.ObjectID{}, err
		}
		return remote.ObjectID{}, notFoundUnlessAuth(fmt.Sprintf("could not resolve absolute path %q", p), err)
	}
	return obj, nil
}

// relative strips the root folder's absolute path from p, if p starts with it.
func (r *Resolver) relative(p Path) Path {
	return p.TrimPrefix(r.root.Path)
}

// pathOf computes the path of item from its ancestry,
// falling back to parent/name when the ancestry is missing or outside the root.
func (r *Resolver) pathOf(item *remote.Item, parent Path) Path {
	if item.PathCollection != nil && !slices.ContainsFunc(item.PathCollection, func(name string) bool { return !addressable(name) }) {
		full := pathOf(append(append([]string{}, item.PathCollection...), item.Name))
		if full != r.root.Path && full.HasPrefix(r.root.Path) {
			return full.TrimPrefix(r.root.Path)
		}
	}
	return parent.Join(item.Name)
}

func (r *Resolver) itemPath(item *remote.Item) Path {
	return pathOf(append(append([]string{}, item.PathCollection...), item.Name))
}

func notFoundUnlessAuth(msg string, err error) error {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrAuthExpired),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", msg, err)
	default:
		return newNotFoundError(msg, err)
	}
}

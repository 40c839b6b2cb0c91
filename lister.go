package boxfs

import (
	"context"
	"fmt"
	"time"

	"github.com/Jumpaku/go-boxfs/remote"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// Lister lists folders and feeds every child it sees into the resolution cache.
type Lister struct {
	resolver *Resolver
	listings *cache.Cache
	log      logrus.FieldLogger
}

func newLister(resolver *Resolver, ttl time.Duration, log logrus.FieldLogger) *Lister {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &Lister{
		resolver: resolver,
		listings: cache.New(ttl, 10*time.Minute),
		log:      log,
	}
}

// List returns the children of the folder at p, or p itself if it is a file.
// p is relative to the root.
//
// Unless refresh is set, a listing kept from an earlier call is returned without
// any remote call.
func (l *Lister) List(ctx context.Context, p Path, refresh bool) ([]Entry, error) {
	if !refresh {
		if cached, ok := l.listings.Get(p.String()); ok {
			l.log.WithField("path", p.String()).Debug("listing from cache")
			entries := cached.([]Entry)
			for _, e := range entries {
				l.resolver.cache.Put(e.Path, e.ObjectID())
			}
			return append([]Entry{}, entries...), nil
		}
	}

	obj, err := l.resolver.Resolve(ctx, p)
	if err != nil {
		return nil, err
	}

	switch obj.Type {
	case remote.TypeFile:
		item, err := call(ctx, l.resolver.auth, func(c remote.Client) (*remote.Item, error) {
			return c.GetItem(ctx, obj)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get %q: %w", p, err)
		}
		return []Entry{newEntry(p, item)}, nil
	case remote.TypeFolder:
		items, err := call(ctx, l.resolver.auth, func(c remote.Client) ([]*remote.Item, error) {
			return c.ListChildren(ctx, obj.ID)
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list %q: %w", p, err)
		}
		entries := make([]Entry, 0, len(items))
		for _, item := range items {
			if !addressable(item.Name) {
				l.log.WithField("path", p.String()).WithField("name", item.Name).Debug("skipping item whose name is not a path segment")
				continue
			}
			childPath := l.resolver.pathOf(item, p)
			l.resolver.cache.Put(childPath, item.ObjectID())
			entries = append(entries, newEntry(childPath, item))
		}
		l.listings.Set(p.String(), entries, cache.DefaultExpiration)
		return append([]Entry{}, entries...), nil
	default:
		return nil, fmt.Errorf("%q has unknown type %v: %w", p, obj.Type, ErrInvalidArgument)
	}
}

// Invalidate drops the kept listing of the folder at p.
func (l *Lister) Invalidate(p Path) {
	l.listings.Delete(p.String())
}

// InvalidateAll drops every kept listing at or below p.
func (l *Lister) InvalidateAll(p Path) {
	for key := range l.listings.Items() {
		if MustParsePath(key).HasPrefix(p) {
			l.listings.Delete(key)
		}
	}
}

package boxfs

import (
	"sync"

	"github.com/Jumpaku/go-boxfs/remote"
)

// ResolutionCache maps paths to the remote objects last seen there, and back.
//
// The cache is partial: a missing path has simply not been observed yet.
// It is safe for concurrent use; concurrent puts of the same path keep the last one.
type ResolutionCache struct {
	mu       sync.RWMutex
	cache    map[Path]remote.ObjectID
	invCache map[string]Path
}

func NewResolutionCache() *ResolutionCache {
	return &ResolutionCache{
		cache:    map[Path]remote.ObjectID{},
		invCache: map[string]Path{},
	}
}

func (c *ResolutionCache) Get(p Path) (obj remote.ObjectID, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	obj, ok = c.cache[p]
	return obj, ok
}

// GetInv returns the path an ID was last seen at.
func (c *ResolutionCache) GetInv(id string) (p Path, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok = c.invCache[id]
	return p, ok
}

func (c *ResolutionCache) Put(p Path, obj remote.ObjectID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c._put(p, obj)
}

// _put without lock
func (c *ResolutionCache) _put(p Path, obj remote.ObjectID) {
	if old, ok := c.cache[p]; ok && old.ID != obj.ID {
		delete(c.invCache, old.ID)
	}
	c.cache[p] = obj
	c.invCache[obj.ID] = p
}

// Delete forgets p and everything below it.
func (c *ResolutionCache) Delete(p Path) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c._delete(p)
}

// DeleteID forgets the path an ID was seen at and everything below it.
func (c *ResolutionCache) DeleteID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if p, ok := c.invCache[id]; ok {
		c._delete(p)
	}
}

// _delete without lock
func (c *ResolutionCache) _delete(p Path) {
	for cached, obj := range c.cache {
		if cached.HasPrefix(p) && !cached.IsRoot() {
			delete(c.cache, cached)
			delete(c.invCache, obj.ID)
		}
	}
}

func (c *ResolutionCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cache)
}

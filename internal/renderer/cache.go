package renderer

import (
	"net/netip"
	"sync"
)

// defaultCacheSize bounds the resolution cache. Forced-IP tables typically
// see a handful of LAN clients, so the bound only matters under address churn.
const defaultCacheSize = 4096

// resolution is a cached Resolve outcome. A nil profile records "no match".
type resolution struct {
	profile *Profile
}

// resolutionCache is a bounded, mutex-guarded map of resolve results.
// Its contents are derived data: dropping any or all entries never changes
// what Resolve returns.
type resolutionCache struct {
	mu    sync.RWMutex
	data  map[netip.Addr]resolution
	limit int
}

func newResolutionCache(limit int) *resolutionCache {
	if limit <= 0 {
		limit = defaultCacheSize
	}
	return &resolutionCache{
		data:  make(map[netip.Addr]resolution),
		limit: limit,
	}
}

func (c *resolutionCache) get(addr netip.Addr) (resolution, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.data[addr]
	return r, ok
}

// set stores a result, clearing the whole map first when it is full.
func (c *resolutionCache) set(addr netip.Addr, r resolution) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.data[addr]; !ok && len(c.data) >= c.limit {
		clear(c.data)
	}
	c.data[addr] = r
}

func (c *resolutionCache) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.data)
}

func (c *resolutionCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

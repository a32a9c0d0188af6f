package geo

import (
	"container/list"
	"math"
	"sync"
	"sync/atomic"

	"github.com/paulmach/orb"
)

// CachedLocator wraps a Locator with an in-memory least-recently-used cache. Incident data
// repeats the same intersections many times, so most lookups hit.
//
// Keys are the exact bit patterns of the coordinates; no rounding is applied,
// so cached answers are always the inner locator's answers.
type CachedLocator struct {
	inner  Locator
	cache  *lookupCache
	hits   atomic.Uint64
	misses atomic.Uint64
}

// NewCachedLocator creates a cache decorator around a locator.
func NewCachedLocator(inner Locator, maxEntries int) *CachedLocator {
	return &CachedLocator{
		inner: inner,
		cache: newLookupCache(maxEntries),
	}
}

func (c *CachedLocator) Locate(p orb.Point) (string, bool) {
	if !validPoint(p) {
		return c.inner.Locate(p)
	}
	key := keyOf(p)
	if res, ok := c.cache.get(key); ok {
		c.hits.Add(1)
		return res.id, res.found
	}
	c.misses.Add(1)
	id, found := c.inner.Locate(p)
	// Not-found answers are cached too: region geometry is immutable.
	c.cache.put(key, lookup{id: id, found: found})
	return id, found
}

// Stats returns the number of cache hits and misses so far.
func (c *CachedLocator) Stats() (hits, misses uint64) {
	return c.hits.Load(), c.misses.Load()
}

type lookup struct {
	id    string
	found bool
}

// pointKey is a point's exact coordinate bits.
type pointKey struct{ x, y uint64 }

func keyOf(p orb.Point) pointKey {
	return pointKey{math.Float64bits(p[0]), math.Float64bits(p[1])}
}

// lookupCache holds the most recent region answers per point, evicting the
// least recently located point once full. Safe for concurrent shards.
type lookupCache struct {
	size  int
	mu    sync.Mutex
	order *list.List // front is most recent; values are *cached
	index map[pointKey]*list.Element
}

type cached struct {
	key    pointKey
	answer lookup
}

func newLookupCache(size int) *lookupCache {
	return &lookupCache{size: size, order: list.New(), index: make(map[pointKey]*list.Element)}
}

func (c *lookupCache) get(k pointKey) (lookup, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.index[k]
	if !ok {
		return lookup{}, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cached).answer, true
}

func (c *lookupCache) put(k pointKey, answer lookup) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.index[k]; ok {
		el.Value.(*cached).answer = answer
		c.order.MoveToFront(el)
		return
	}
	c.index[k] = c.order.PushFront(&cached{key: k, answer: answer})
	for c.order.Len() > c.size {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.index, oldest.Value.(*cached).key)
	}
}

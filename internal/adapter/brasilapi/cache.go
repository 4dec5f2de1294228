package brasilapi

import (
	"context"
	"sync"

	"github.com/opensampa/outage-map/internal/domain"
	"github.com/opensampa/outage-map/internal/observability"
)

// CachedFallback wraps a domain.CEPFallback with an in-memory LRU cache
// keyed by CEP.
type CachedFallback struct {
	inner   domain.CEPFallback
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedFallback creates a cache decorator around a CEP fallback.
func NewCachedFallback(inner domain.CEPFallback, maxEntries int, metrics *observability.Metrics) *CachedFallback {
	return &CachedFallback{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (c *CachedFallback) Lookup(ctx context.Context, cep string) (*domain.FallbackAddress, error) {
	if addr, ok := c.cache.get(cep); ok {
		c.metrics.FallbackCache.WithLabelValues("hit").Inc()
		return addr, nil
	}
	c.metrics.FallbackCache.WithLabelValues("miss").Inc()

	addr, err := c.inner.Lookup(ctx, cep)
	if err != nil {
		return addr, err
	}
	// Only cache results with coordinates so transient "not found"
	// responses can be retried.
	if addr.HasCoordinates() {
		c.cache.put(cep, addr)
	}
	return addr, nil
}

// lruCache is a simple thread-safe LRU cache for fallback addresses.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value *domain.FallbackAddress
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (*domain.FallbackAddress, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value *domain.FallbackAddress) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}

// Package lru provides a fixed-capacity, least-recently-used key/value cache
// that is safe for concurrent use.
package lru

import (
	"container/list"
	"sync"
)

// DefaultCapacity matches the size of the factor table cache the backtests
// were tuned with.
const DefaultCapacity = 500

type entry[K comparable, V any] struct {
	key   K
	value V
}

// Cache is a bounded recency cache. The front of the list is the most
// recently used entry, the back is the next eviction candidate.
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	items    map[K]*list.Element
}

// New creates a cache holding at most capacity entries.
// Capacities below 1 are clamped to 1.
func New[K comparable, V any](capacity int) *Cache[K, V] {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache[K, V]{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[K]*list.Element),
	}
}

// Get returns the value for key and promotes it to most recently used.
// A missing key has no side effect.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*entry[K, V]).value, true
}

// Set stores value under key and promotes it. Inserting a new key into a
// full cache evicts least recently used entries until the new key fits.
func (c *Cache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		elem.Value.(*entry[K, V]).value = value
		c.order.MoveToFront(elem)
		// A shrunk capacity is enforced here as well, never evicting key itself.
		for c.order.Len() > c.capacity {
			c.evictOldest()
		}
		return
	}

	for c.order.Len() >= c.capacity {
		c.evictOldest()
	}
	c.items[key] = c.order.PushFront(&entry[K, V]{key: key, value: value})
}

// Remove drops key from the cache. It reports whether the key was present.
func (c *Cache[K, V]) Remove(key K) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return false
	}
	c.order.Remove(elem)
	delete(c.items, key)
	return true
}

// Len returns the number of cached entries.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// MaxSize returns the current capacity.
func (c *Cache[K, V]) MaxSize() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capacity
}

// SetMaxSize changes the capacity. Shrinking does not evict anything until
// the next Set.
func (c *Cache[K, V]) SetMaxSize(capacity int) {
	if capacity < 1 {
		capacity = 1
	}
	c.mu.Lock()
	c.capacity = capacity
	c.mu.Unlock()
}

// Keys returns the cached keys from most to least recently used.
func (c *Cache[K, V]) Keys() []K {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]K, 0, c.order.Len())
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		keys = append(keys, elem.Value.(*entry[K, V]).key)
	}
	return keys
}

// Purge empties the cache.
func (c *Cache[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.items = make(map[K]*list.Element)
}

func (c *Cache[K, V]) evictOldest() {
	oldest := c.order.Back()
	if oldest == nil {
		return
	}
	c.order.Remove(oldest)
	delete(c.items, oldest.Value.(*entry[K, V]).key)
}

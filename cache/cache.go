package cache

import (
	"container/list"
	"fmt"
	"sync"
	"time"
)

// entry is the per-key record stored in the recency list.
type entry[V any] struct {
	key        string
	value      V
	insertedAt time.Time
	lastAccess time.Time
}

// Cache memoizes values by key with a TTL and an LRU size cap.
// Expiry is lazy: stale entries are dropped when a Get touches them.
// Both Get hits and Set writes refresh an entry's recency, and eviction
// order is fully determined by the operation sequence.
type Cache[V any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	ll      *list.List // front = most recently used
	items   map[string]*list.Element
}

// New creates a cache holding at most maxSize entries, each valid for
// ttl after its insertion or refresh. maxSize = 0 stores nothing and
// ttl = 0 expires entries immediately; negative values are a
// construction-time error.
func New[V any](maxSize int, ttl time.Duration) (*Cache[V], error) {
	if maxSize < 0 {
		return nil, fmt.Errorf("cache: max size must not be negative, got %d", maxSize)
	}
	if ttl < 0 {
		return nil, fmt.Errorf("cache: ttl must not be negative, got %s", ttl)
	}
	return &Cache[V]{
		maxSize: maxSize,
		ttl:     ttl,
		ll:      list.New(),
		items:   make(map[string]*list.Element),
	}, nil
}

// Get returns the value for key if present and younger than the TTL at
// the given time. An entry whose age has reached the TTL is removed and
// reported as absent.
func (c *Cache[V]) Get(key string, now time.Time) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.items[key]
	if !ok {
		return zero, false
	}
	e := el.Value.(*entry[V])
	if now.Sub(e.insertedAt) >= c.ttl {
		c.removeElement(el)
		return zero, false
	}
	e.lastAccess = now
	c.ll.MoveToFront(el)
	return e.value, true
}

// Set inserts or replaces the entry for key, stamping it with now.
// Inserting a new key at capacity evicts the least-recently-used entry
// first.
func (c *Cache[V]) Set(key string, value V, now time.Time) {
	if c.maxSize == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[V])
		e.value = value
		e.insertedAt = now
		e.lastAccess = now
		c.ll.MoveToFront(el)
		return
	}

	if c.ll.Len() >= c.maxSize {
		if oldest := c.ll.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}

	el := c.ll.PushFront(&entry[V]{
		key:        key,
		value:      value,
		insertedAt: now,
		lastAccess: now,
	})
	c.items[key] = el
}

// Delete removes key unconditionally. Deleting an absent key is a no-op.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.removeElement(el)
	}
}

// Len reports the number of stored entries, counting ones that have
// expired but not yet been touched by a Get.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Clear drops every entry.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll.Init()
	c.items = make(map[string]*list.Element)
}

func (c *Cache[V]) removeElement(el *list.Element) {
	e := el.Value.(*entry[V])
	c.ll.Remove(el)
	delete(c.items, e.key)
}

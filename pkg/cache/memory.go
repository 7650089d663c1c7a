package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// Memory is a bounded in-process cache with LRU eviction. When the cache is
// full the least recently used entry is evicted, which bounds memory during
// very large dependency traversals where the same packages are revisited
// many times.
//
// Memory is safe for concurrent use.
type Memory struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front = most recently used
	entries  map[string]*list.Element
}

type memEntry struct {
	key       string
	data      []byte
	expiresAt time.Time
}

// DefaultMemoryCapacity bounds the in-process cache when no explicit
// capacity is configured.
const DefaultMemoryCapacity = 1024

// NewMemory creates an in-process LRU cache holding at most capacity entries.
// A capacity of zero or less uses [DefaultMemoryCapacity].
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &Memory{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
	}
}

// Get retrieves a value and marks it as recently used.
func (c *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	e := el.Value.(*memEntry)
	if !e.expiresAt.IsZero() && time.Now().After(e.expiresAt) {
		c.order.Remove(el)
		delete(c.entries, key)
		return nil, false, nil
	}
	c.order.MoveToFront(el)
	return e.data, true, nil
}

// Set stores a value, evicting the least recently used entry when full.
func (c *Memory) Set(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}

	if el, ok := c.entries[key]; ok {
		e := el.Value.(*memEntry)
		e.data = data
		e.expiresAt = expires
		c.order.MoveToFront(el)
		return nil
	}

	c.entries[key] = c.order.PushFront(&memEntry{key: key, data: data, expiresAt: expires})
	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*memEntry).key)
	}
	return nil
}

// Delete removes a value from the cache.
func (c *Memory) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.order.Remove(el)
		delete(c.entries, key)
	}
	return nil
}

// Len returns the number of live entries.
func (c *Memory) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Close does nothing for a memory cache.
func (c *Memory) Close() error { return nil }

var _ Cache = (*Memory)(nil)

package cache

import (
	"context"
	"sync"
	"time"
)

var _ Cache[int] = (*LRUCache[int])(nil)

// entry is a node of the recency ring. The ring's sentinel has no key.
type entry[T any] struct {
	key        string
	value      T
	expires    time.Time
	prev, next *entry[T]
}

// LRUCache is a size-bounded cache whose entries expire ttl after their last
// Set. Expired entries are dropped on Get or by CleanExpired.
type LRUCache[T any] struct {
	mu    sync.Mutex
	limit int
	ttl   time.Duration
	now   func() time.Time
	index map[string]*entry[T]
	// ring.next is the most recently used entry, ring.prev the least.
	ring entry[T]
}

func NewLRUCache[T any](maxSize int, ttl time.Duration) *LRUCache[T] {
	c := &LRUCache[T]{
		limit: max(maxSize, 1),
		ttl:   ttl,
		now:   time.Now,
		index: make(map[string]*entry[T]),
	}
	c.ring.next, c.ring.prev = &c.ring, &c.ring
	return c
}

func (c *LRUCache[T]) unlink(e *entry[T]) {
	e.prev.next, e.next.prev = e.next, e.prev
	e.prev, e.next = nil, nil
}

func (c *LRUCache[T]) pushFront(e *entry[T]) {
	e.prev, e.next = &c.ring, c.ring.next
	c.ring.next.prev = e
	c.ring.next = e
}

func (c *LRUCache[T]) drop(e *entry[T]) {
	c.unlink(e)
	delete(c.index, e.key)
}

func (c *LRUCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.index[key]
	if !ok {
		var zero T
		return zero, false
	}
	if c.now().After(e.expires) {
		c.drop(e)
		var zero T
		return zero, false
	}
	c.unlink(e)
	c.pushFront(e)
	return e.value, true
}

// Set stores value and resets its expiry. The least recently used entry is
// evicted once the cache is over its limit.
func (c *LRUCache[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := c.now().Add(c.ttl)
	if e, ok := c.index[key]; ok {
		e.value, e.expires = value, expires
		c.unlink(e)
		c.pushFront(e)
		return
	}
	e := &entry[T]{key: key, value: value, expires: expires}
	c.index[key] = e
	c.pushFront(e)
	if len(c.index) > c.limit {
		c.drop(c.ring.prev)
	}
}

func (c *LRUCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.index[key]; ok {
		c.drop(e)
	}
}

// CleanExpired removes every expired entry and reports how many went.
func (c *LRUCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for e := c.ring.prev; e != &c.ring; {
		older := e.prev
		if now.After(e.expires) {
			c.drop(e)
			removed++
		}
		e = older
	}
	return removed
}

func (c *LRUCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

// LocalStore is the in-process Store used when no Redis URL is configured.
type LocalStore struct {
	lru *LRUCache[string]
}

var _ Store = (*LocalStore)(nil)

func NewLocalStore(maxSize int, ttl time.Duration) *LocalStore {
	return &LocalStore{lru: NewLRUCache[string](maxSize, ttl)}
}

func (s *LocalStore) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := s.lru.Get(key)
	return v, ok, nil
}

func (s *LocalStore) Set(_ context.Context, key, value string) error {
	s.lru.Set(key, value)
	return nil
}

func (s *LocalStore) CleanExpired() int { return s.lru.CleanExpired() }

func (s *LocalStore) Close() error { return nil }

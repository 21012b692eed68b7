package cache

import (
	"sync"
	"time"
)

// LRUCache holds at most capacity entries, each living for ttl after its
// last Set. When full, the entry read or written least recently goes first.
type LRUCache[T any] struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	now      func() time.Time
	index    map[string]*entry[T]
	// head is a sentinel: head.next is the most recent entry, head.prev the
	// eviction candidate.
	head     entry[T]
}

type entry[T any] struct {
	key        string
	value      T
	expires    time.Time
	prev, next *entry[T]
}

// NewLRUCache returns an empty cache. A capacity below one is raised to one.
func NewLRUCache[T any](capacity int, ttl time.Duration) *LRUCache[T] {
	c := &LRUCache[T]{
		capacity: max(capacity, 1),
		ttl:      ttl,
		now:      time.Now,
		index:    make(map[string]*entry[T]),
	}
	c.head.prev, c.head.next = &c.head, &c.head
	return c
}

// WithClock replaces the time source. Intended for tests.
func (c *LRUCache[T]) WithClock(now func() time.Time) *LRUCache[T] {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
	return c
}

// Get returns the live value stored under key and marks it as recently used.
func (c *LRUCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.index[key]
	if !ok {
		var zero T
		return zero, false
	}
	if c.expired(e, c.now()) {
		c.drop(e)
		var zero T
		return zero, false
	}
	c.touch(e)
	return e.value, true
}

// Set stores value under key, restarting its ttl.
func (c *LRUCache[T]) Set(key string, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := c.now().Add(c.ttl)
	if e, ok := c.index[key]; ok {
		e.value, e.expires = value, expires
		c.touch(e)
		return
	}

	e := &entry[T]{key: key, value: value, expires: expires}
	c.index[key] = e
	c.link(e)
	if len(c.index) > c.capacity {
		c.drop(c.head.prev)
	}
}

func (c *LRUCache[T]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.index[key]; ok {
		c.drop(e)
	}
}

// CleanExpired drops every expired entry and reports how many went.
func (c *LRUCache[T]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for e := c.head.next; e != &c.head; {
		next := e.next
		if c.expired(e, now) {
			c.drop(e)
			removed++
		}
		e = next
	}
	return removed
}

func (c *LRUCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

func (c *LRUCache[T]) expired(e *entry[T], now time.Time) bool {
	return now.After(e.expires)
}

func (c *LRUCache[T]) link(e *entry[T]) {
	e.prev, e.next = &c.head, c.head.next
	c.head.next.prev = e
	c.head.next = e
}

func (c *LRUCache[T]) unlink(e *entry[T]) {
	e.prev.next, e.next.prev = e.next, e.prev
	e.prev, e.next = nil, nil
}

func (c *LRUCache[T]) touch(e *entry[T]) {
	c.unlink(e)
	c.link(e)
}

func (c *LRUCache[T]) drop(e *entry[T]) {
	c.unlink(e)
	delete(c.index, e.key)
}

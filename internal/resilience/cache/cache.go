package cache

import (
	"container/list"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"
)

// Key derives the cache key for a prompt sent under the given operation.
func Key(operation, prompt string) string {
	sum := sha256.Sum256([]byte(operation + "\x00" + prompt))
	return fmt.Sprintf("%x", sum[:])
}

// Stats reports cache performance counters.
type Stats struct {
	Entries   int   `json:"entries"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}

type entry struct {
	key      string
	value    string
	storedAt time.Time
}

// Cache is a bounded response store. Entries expire lazily on read once older
// than ttl; when full, the oldest inserted entry is evicted.
type Cache struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	now      func() time.Time

	order   *list.List
	entries map[string]*list.Element

	hits      int64
	misses    int64
	evictions int64
}

// New creates a cache. A non-positive capacity disables storage.
func New(ttl time.Duration, capacity int) *Cache {
	return &Cache{
		ttl:      ttl,
		capacity: capacity,
		now:      time.Now,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
	}
}

// Get returns the stored value when present and fresh.
func (c *Cache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		c.misses++
		return "", false
	}

	e := el.Value.(*entry)
	if c.ttl > 0 && c.now().Sub(e.storedAt) > c.ttl {
		c.order.Remove(el)
		delete(c.entries, key)
		c.misses++
		return "", false
	}

	c.hits++
	return e.value, true
}

// Put stores value under key. Writing an existing key counts as a fresh
// insertion; concurrent writers to one key resolve as last write wins.
func (c *Cache) Put(key, value string) {
	if c.capacity <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		c.order.Remove(el)
		delete(c.entries, key)
	}

	c.entries[key] = c.order.PushBack(&entry{key: key, value: value, storedAt: c.now()})

	for c.order.Len() > c.capacity {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*entry).key)
		c.evictions++
	}
}

// Len returns the number of stored entries, expired ones included until read.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Clear drops every entry and keeps the counters.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.entries = make(map[string]*list.Element)
}

func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Entries:   c.order.Len(),
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}

// Package embedding provides text-to-vector providers and the shared LRU
// cache that fronts them.
package embedding

import (
	"container/list"
	"sync"
)

type lruEntry struct {
	hash string
	vec  []float32
}

// Cache is a bounded map from content hash to embedding vector, evicting the
// least-recently-used entry once at capacity. It sits in front of every
// embedding provider as one shared component rather than being duplicated
// per-provider.
type Cache struct {
	maxSize int

	mu    sync.Mutex
	index map[string]*list.Element
	order *list.List // MRU at back, LRU at front
}

// NewCache constructs a Cache with the given capacity. A non-positive size
// still functions but evicts on every insert.
func NewCache(maxSize int) *Cache {
	if maxSize <= 0 {
		maxSize = 1
	}
	return &Cache{
		maxSize: maxSize,
		index:   make(map[string]*list.Element, maxSize),
		order:   list.New(),
	}
}

// Get returns the cached vector for hash, promoting it to most-recently-used.
func (c *Cache) Get(hash string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.index[hash]
	if !ok {
		return nil, false
	}
	c.order.MoveToBack(elem)
	return elem.Value.(*lruEntry).vec, true
}

// Set inserts or replaces the vector cached under hash. Empty vectors are
// ignored. On replace, the entry moves to MRU without changing the cache
// size; on insert at capacity, the LRU entry is evicted first.
func (c *Cache) Set(hash string, vec []float32) {
	if len(vec) == 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.index[hash]; ok {
		elem.Value.(*lruEntry).vec = vec
		c.order.MoveToBack(elem)
		return
	}

	if c.order.Len() >= c.maxSize {
		oldest := c.order.Front()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.index, oldest.Value.(*lruEntry).hash)
		}
	}

	elem := c.order.PushBack(&lruEntry{hash: hash, vec: vec})
	c.index[hash] = elem
}

// Clear empties the cache.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = make(map[string]*list.Element, c.maxSize)
	c.order.Init()
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Package cache provides vector caches and a caching embedding decorator.
package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// Store caches embedding vectors by key.
type Store interface {
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Set(ctx context.Context, key string, vec []float32) error
}

type entry struct {
	key     string
	value   []float32
	expires time.Time
	element *list.Element
}

// LRU is an in-process Store bounded by capacity with a per-entry TTL.
type LRU struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	items    map[string]*entry
	order    *list.List
}

// NewLRU creates an LRU cache. Non-positive arguments fall back to 512 entries and one hour.
func NewLRU(capacity int, ttl time.Duration) *LRU {
	if capacity <= 0 {
		capacity = 512
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &LRU{
		capacity: capacity,
		ttl:      ttl,
		items:    make(map[string]*entry, capacity),
		order:    list.New(),
	}
}

func (c *LRU) Get(_ context.Context, key string) ([]float32, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ent, ok := c.items[key]
	if !ok {
		return nil, false, nil
	}
	if time.Now().After(ent.expires) {
		c.removeEntry(ent)
		return nil, false, nil
	}
	c.order.MoveToFront(ent.element)
	return ent.value, true, nil
}

func (c *LRU) Set(_ context.Context, key string, vec []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ent, ok := c.items[key]; ok {
		ent.value = vec
		ent.expires = time.Now().Add(c.ttl)
		c.order.MoveToFront(ent.element)
		return nil
	}

	if len(c.items) >= c.capacity {
		if oldest := c.order.Back(); oldest != nil {
			c.removeEntry(c.items[oldest.Value.(string)])
		}
	}

	ent := &entry{key: key, value: vec, expires: time.Now().Add(c.ttl)}
	ent.element = c.order.PushFront(key)
	c.items[key] = ent
	return nil
}

// Len returns the number of cached entries, expired ones included.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *LRU) removeEntry(ent *entry) {
	c.order.Remove(ent.element)
	delete(c.items, ent.key)
}

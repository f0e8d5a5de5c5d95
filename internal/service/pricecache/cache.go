// Package pricecache keeps the latest tick per instrument for the process lifetime.
package pricecache

import (
	"sync"

	"ThemePulse/internal/domain/models"
	drepo "ThemePulse/internal/domain/repository"
)

var (
	_ drepo.PriceReader = (*Cache)(nil)
	_ drepo.PriceWriter = (*Cache)(nil)
)

// Cache stores ticks by value, so a reader always sees a whole tick for a code.
// Last write wins; entries are never evicted.
type Cache struct {
	mu    sync.RWMutex
	ticks map[string]models.Tick
}

// New returns an empty Cache.
func New() *Cache {
	return &Cache{ticks: make(map[string]models.Tick)}
}

// Put stores t under code, replacing any previous tick.
func (c *Cache) Put(code string, t models.Tick) {
	c.mu.Lock()
	c.ticks[code] = t
	c.mu.Unlock()
}

// PutIfAbsent stores t only when code has no tick yet and reports whether it did.
func (c *Cache) PutIfAbsent(code string, t models.Tick) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.ticks[code]; ok {
		return false
	}
	c.ticks[code] = t
	return true
}

// Get returns the latest tick for code and whether one exists.
func (c *Cache) Get(code string) (models.Tick, bool) {
	c.mu.RLock()
	t, ok := c.ticks[code]
	c.mu.RUnlock()
	return t, ok
}

// All returns a point-in-time copy of the cache.
func (c *Cache) All() map[string]models.Tick {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]models.Tick, len(c.ticks))
	for k, v := range c.ticks {
		out[k] = v
	}
	return out
}

// Len reports the number of cached instruments.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.ticks)
}

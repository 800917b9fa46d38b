package mempool

import (
	"sync"

	"github.com/vantage-chain/core/internal/types"
)

// EvictionCache tracks recently seen command hashes to avoid re-accepting
// a command already fetched. Uses a fixed-size ring buffer.
type EvictionCache struct {
	mu       sync.RWMutex
	hashes   map[types.HashValue]struct{}
	ring     []types.HashValue
	pos      int
	capacity int
}

// NewEvictionCache creates a cache with the given capacity.
func NewEvictionCache(capacity int) *EvictionCache {
	if capacity <= 0 {
		capacity = 10000
	}
	return &EvictionCache{
		hashes:   make(map[types.HashValue]struct{}, capacity),
		ring:     make([]types.HashValue, capacity),
		capacity: capacity,
	}
}

// Add records a command hash in the cache, evicting the oldest entry if
// the cache is full.
func (c *EvictionCache) Add(hash types.HashValue) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.hashes[hash]; ok {
		return
	}

	old := c.ring[c.pos]
	if old != types.ZeroHash {
		delete(c.hashes, old)
	}

	c.ring[c.pos] = hash
	c.hashes[hash] = struct{}{}
	c.pos = (c.pos + 1) % c.capacity
}

// Contains checks if a hash is in the cache.
func (c *EvictionCache) Contains(hash types.HashValue) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.hashes[hash]
	return ok
}

// Size returns the current number of entries in the cache.
func (c *EvictionCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.hashes)
}

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/allegro/bigcache/v3"
)

// Cache stores JSON-encoded values with a fixed TTL. Entries are evicted
// lazily by bigcache's cleaner; Delete is used for explicit invalidation.
//
// Every Delete bumps a per-key generation. A reader that snapshots
// Generation before loading from the source and fills with SetIfGeneration
// cannot resurrect a value that was invalidated while it was loading.
type Cache struct {
	store *bigcache.BigCache

	mu          sync.Mutex
	generations map[string]uint64
}

func New(ctx context.Context, ttl time.Duration) (*Cache, error) {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	cfg := bigcache.DefaultConfig(ttl)
	cfg.CleanWindow = ttl / 2
	cfg.Shards = 64
	cfg.HardMaxCacheSize = 64 // MB
	cfg.Verbose = false

	store, err := bigcache.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create cache: %w", err)
	}

	return &Cache{store: store, generations: make(map[string]uint64)}, nil
}

// Get decodes the cached value for key into out. It reports false on a miss.
func (c *Cache) Get(key string, out any) (bool, error) {
	raw, err := c.store.Get(key)
	if err != nil {
		if errors.Is(err, bigcache.ErrEntryNotFound) {
			return false, nil
		}
		return false, err
	}

	if err := json.Unmarshal(raw, out); err != nil {
		// drop entries we cannot read back
		_ = c.store.Delete(key)
		return false, fmt.Errorf("decode cache entry: %w", err)
	}

	return true, nil
}

func (c *Cache) Set(key string, val any) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	return c.store.Set(key, raw)
}

// Generation reports how many times key has been invalidated.
func (c *Cache) Generation(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.generations[key]
}

// SetIfGeneration stores val only if key has not been invalidated since gen
// was read. It reports whether the value was stored.
func (c *Cache) SetIfGeneration(key string, gen uint64, val any) (bool, error) {
	raw, err := json.Marshal(val)
	if err != nil {
		return false, fmt.Errorf("encode cache entry: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generations[key] != gen {
		return false, nil
	}

	return true, c.store.Set(key, raw)
}

// Delete removes key. Deleting a missing key is not an error.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generations[key]++
	_ = c.store.Delete(key)
}

func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key := range c.generations {
		c.generations[key]++
	}
	return c.store.Reset()
}

func (c *Cache) Close() error {
	return c.store.Close()
}

// SummaryKey is the cache key for one owner's category summary.
func SummaryKey(userID string) string {
	return "expenses:summary:v1:user=" + userID
}

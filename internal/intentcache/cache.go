// Package intentcache provides a bounded, time-limited cache of message
// classification results.
package intentcache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"github.com/haasonsaas/attune/pkg/models"
)

// Cache stores MessageIntent values keyed by normalized message text.
// Entries are immutable once inserted: an update replaces the entry rather
// than mutating it. Reads take a shared lock; writes are serialized.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	maxSize int
}

type entry struct {
	intent     *models.MessageIntent
	insertedAt int64 // unix millis
}

// Options configures the cache.
type Options struct {
	// TTL is how long an entry stays valid. Zero or negative disables
	// expiry.
	TTL time.Duration

	// MaxSize bounds the number of entries. Oldest entries are evicted
	// first. Zero or negative means the cache holds nothing.
	MaxSize int
}

// New creates a cache with the given options.
func New(opts Options) *Cache {
	ttl := opts.TTL
	if ttl < 0 {
		ttl = 0
	}
	maxSize := opts.MaxSize
	if maxSize < 0 {
		maxSize = 0
	}
	return &Cache{
		entries: make(map[string]entry),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// Key normalizes message text into a bounded cache key.
func Key(message string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(message), " "))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached intent for key, if present and unexpired.
func (c *Cache) Get(key string) (*models.MessageIntent, bool) {
	return c.GetAt(key, time.Now())
}

// GetAt is Get with an explicit clock (for testing).
func (c *Cache) GetAt(key string, now time.Time) (*models.MessageIntent, bool) {
	if key == "" {
		return nil, false
	}

	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if c.ttl > 0 && now.UnixMilli()-e.insertedAt >= c.ttl.Milliseconds() {
		return nil, false
	}
	// Callers get a copy so the stored entry stays immutable.
	return e.intent.Clone(), true
}

// Put inserts or replaces the intent for key.
func (c *Cache) Put(key string, intent *models.MessageIntent) {
	c.PutAt(key, intent, time.Now())
}

// PutAt is Put with an explicit clock (for testing).
func (c *Cache) PutAt(key string, intent *models.MessageIntent, now time.Time) {
	if key == "" || intent == nil || c.maxSize <= 0 {
		return
	}

	stored := intent.Clone()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{intent: stored, insertedAt: now.UnixMilli()}
	c.prune(now.UnixMilli())
}

// prune removes expired entries, then evicts oldest entries until the size
// bound holds. Caller must hold the write lock.
func (c *Cache) prune(nowMillis int64) {
	if c.ttl > 0 {
		cutoff := nowMillis - c.ttl.Milliseconds()
		for key, e := range c.entries {
			if e.insertedAt <= cutoff {
				delete(c.entries, key)
			}
		}
	}

	for len(c.entries) > c.maxSize {
		var oldestKey string
		oldest := int64(^uint64(0) >> 1)
		for k, e := range c.entries {
			if e.insertedAt < oldest {
				oldest = e.insertedAt
				oldestKey = k
			}
		}
		if oldestKey == "" {
			break
		}
		delete(c.entries, oldestKey)
	}
}

// Len returns the current number of entries, including any not yet pruned.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Clear removes all entries.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}

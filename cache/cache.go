// Package cache - Content-addressed store for bilateral filter results.
//
// Entries are bounded by count and by total pixel memory. The least recently
// used entry is evicted first until an insertion fits both bounds.
package cache

import (
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-darkroom/images"
	"github.com/nvr-ai/go-darkroom/images/kernels"
)

const (
	// DefaultMaxSize is the default entry bound.
	DefaultMaxSize = 10
	// DefaultMaxMemoryMB is the default memory bound in MiB.
	DefaultMaxMemoryMB = 500
)

// Entry is a cached filter result.
type Entry struct {
	Image      *images.LinearImage
	MemorySize int64
	LastAccess time.Time
}

// Stats is a snapshot of cache occupancy and hit counters.
type Stats struct {
	Entries     int   `json:"entries"`
	MemoryBytes int64 `json:"memory_bytes"`
	MaxSize     int   `json:"max_size"`
	MaxMemory   int64 `json:"max_memory"`
	Hits        int64 `json:"hits"`
	Misses      int64 `json:"misses"`
	Evictions   int64 `json:"evictions"`
}

// Cache is safe for concurrent use. Every public method holds one mutex.
type Cache struct {
	mu        sync.Mutex
	lru       *simplelru.LRU[Key, *Entry]
	maxSize   int
	maxMemory int64
	memory    int64

	hits, misses, evictions int64

	logger *slog.Logger
	now    func() time.Time
}

// New creates a cache.
//
// Arguments:
//   - maxSize: Maximum number of entries. Values < 1 are raised to 1.
//   - maxMemoryMB: Maximum total image memory in MiB. Values < 1 are raised to 1.
//
// Returns:
//   - *Cache: The empty cache.
func New(maxSize, maxMemoryMB int) *Cache {
	c := &Cache{
		maxSize:   max(maxSize, 1),
		maxMemory: mbToBytes(maxMemoryMB),
		logger:    slog.Default(),
		now:       time.Now,
	}
	// The LRU's own size limit is kept equal to maxSize; the eviction callback
	// keeps memory accounting in step with every removal path.
	lru, err := simplelru.NewLRU[Key, *Entry](c.maxSize, c.onEvict)
	if err != nil {
		panic(errors.Wrap(err, "create lru"))
	}
	c.lru = lru
	return c
}

// SetLogger replaces the cache logger. A nil logger restores slog.Default.
func (c *Cache) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.Default()
	}
	c.mu.Lock()
	c.logger = l
	c.mu.Unlock()
}

func mbToBytes(mb int) int64 {
	return int64(max(mb, 1)) * 1024 * 1024
}

func (c *Cache) onEvict(_ Key, e *Entry) {
	c.memory -= e.MemorySize
}

// Find looks up a result and, on a hit, copies it into out.
//
// Arguments:
//   - in: The filter input, hashed to build the key.
//   - p: The filter sigmas.
//   - out: Receives a bit-identical copy of the cached result on a hit.
//
// Returns:
//   - bool: Whether the result was found and copied.
func (c *Cache) Find(in *images.LinearImage, p kernels.Params, out *images.LinearImage) bool {
	return c.FindKey(NewKey(in, p), out)
}

// FindKey is Find with a precomputed key.
func (c *Cache) FindKey(k Key, out *images.LinearImage) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.lru.Get(k)
	if !ok || out.CopyFrom(e.Image) != nil {
		c.misses++
		return false
	}
	e.LastAccess = c.now()
	c.hits++
	return true
}

// Insert stores a copy of result under the key for (in, p), replacing any
// existing entry and evicting least recently used entries until both bounds
// hold. A result larger than the memory bound is not stored.
func (c *Cache) Insert(in *images.LinearImage, p kernels.Params, result *images.LinearImage) {
	c.InsertKey(NewKey(in, p), result)
}

// InsertKey is Insert with a precomputed key.
func (c *Cache) InsertKey(k Key, result *images.LinearImage) {
	size := result.ByteSize()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.lru.Remove(k)
	if size > c.maxMemory {
		c.logger.Debug("cache: result exceeds memory bound, not cached",
			"bytes", size, "max_bytes", c.maxMemory)
		return
	}
	for c.lru.Len() > 0 && (c.lru.Len() >= c.maxSize || c.memory+size > c.maxMemory) {
		c.evictOldestLocked()
	}

	c.lru.Add(k, &Entry{
		Image:      result.Clone(),
		MemorySize: size,
		LastAccess: c.now(),
	})
	c.memory += size
}

func (c *Cache) evictOldestLocked() {
	if _, e, ok := c.lru.RemoveOldest(); ok {
		c.evictions++
		c.logger.Debug("cache: evicted entry", "bytes", e.MemorySize, "idle", c.now().Sub(e.LastAccess))
	}
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
	c.memory = 0
}

// SetMaxSize changes the entry bound, evicting the oldest entries if needed.
func (c *Cache) SetMaxSize(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxSize = max(n, 1)
	if evicted := c.lru.Resize(c.maxSize); evicted > 0 {
		c.evictions += int64(evicted)
	}
}

// SetMaxMemoryMB changes the memory bound, evicting the oldest entries if needed.
func (c *Cache) SetMaxMemoryMB(mb int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxMemory = mbToBytes(mb)
	for c.lru.Len() > 0 && c.memory > c.maxMemory {
		c.evictOldestLocked()
	}
}

// Len is the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// MemoryBytes is the total memory of cached images.
func (c *Cache) MemoryBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.memory
}

// Stats returns a snapshot.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Entries:     c.lru.Len(),
		MemoryBytes: c.memory,
		MaxSize:     c.maxSize,
		MaxMemory:   c.maxMemory,
		Hits:        c.hits,
		Misses:      c.misses,
		Evictions:   c.evictions,
	}
}

// Package cache memoizes query results for the knowledge base currently
// being served.
package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"sync"
	"time"

	"mindkb/internal/domain"
)

// QueryCache is an LRU cache with a TTL. Keys include the build id of the
// knowledge base that answered, so results from a replaced knowledge base
// can never be served; Invalidate additionally drops everything on a swap.
type QueryCache struct {
	mu      sync.Mutex
	entries map[string]*list.Element
	order   *list.List // front = most recently used
	maxSize int
	ttl     time.Duration
	now     func() time.Time

	hits   uint64
	misses uint64
}

type cacheEntry struct {
	key       string
	results   []domain.Result
	timestamp time.Time
}

func NewQueryCache(maxSize int, ttl time.Duration) *QueryCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &QueryCache{
		entries: make(map[string]*list.Element),
		order:   list.New(),
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
	}
}

func cacheKey(buildID, query string, k int) string {
	h := sha256.New()
	h.Write([]byte(buildID))
	h.Write([]byte{0})
	h.Write([]byte(query))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(k)))
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// Get returns a copy of the cached results for query against buildID.
func (c *QueryCache) Get(buildID, query string, k int) ([]domain.Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(buildID, query, k)
	el, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}

	entry := el.Value.(*cacheEntry)
	if c.now().Sub(entry.timestamp) > c.ttl {
		c.order.Remove(el)
		delete(c.entries, key)
		c.misses++
		return nil, false
	}

	c.order.MoveToFront(el)
	c.hits++
	return cloneResults(entry.results), true
}

func (c *QueryCache) Put(buildID, query string, k int, results []domain.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(buildID, query, k)
	entry := &cacheEntry{
		key:       key,
		results:   cloneResults(results),
		timestamp: c.now(),
	}

	if el, ok := c.entries[key]; ok {
		el.Value = entry
		c.order.MoveToFront(el)
		return
	}

	if c.order.Len() >= c.maxSize {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
	c.entries[key] = c.order.PushFront(entry)
}

// cloneResults copies results deeply enough that neither side can see the
// other's writes, tags included.
func cloneResults(results []domain.Result) []domain.Result {
	if results == nil {
		return nil
	}
	out := make([]domain.Result, len(results))
	for i, r := range results {
		if r.Chunk.Metadata.Tags != nil {
			r.Chunk.Metadata.Tags = append([]string(nil), r.Chunk.Metadata.Tags...)
		}
		out[i] = r
	}
	return out
}

// Invalidate drops every entry.
func (c *QueryCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*list.Element)
	c.order.Init()
}

func (c *QueryCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns the hit and miss counts since creation.
func (c *QueryCache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

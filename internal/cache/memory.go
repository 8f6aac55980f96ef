package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// Memory is an in-process LRU of encoded payloads. Entries older than the TTL
// are dropped on read.
type Memory struct {
	mu      sync.Mutex
	lru     *list.List // of *memoryItem, most recent at the front
	entries map[string]*list.Element
	limit   int
	ttl     time.Duration
	hits    int64
	misses  int64
}

type memoryItem struct {
	key    string
	data   []byte
	stored time.Time
}

// Stats reports cache occupancy and hit rate.
type Stats struct {
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
}

// NewMemory returns a Memory holding at most limit payloads (16 when limit is
// not positive). ttl <= 0 keeps entries until evicted.
func NewMemory(limit int, ttl time.Duration) *Memory {
	if limit <= 0 {
		limit = 16
	}
	return &Memory{
		lru:     list.New(),
		entries: make(map[string]*list.Element, limit),
		limit:   limit,
		ttl:     ttl,
	}
}

func (c *Memory) expired(it *memoryItem) bool {
	return c.ttl > 0 && time.Since(it.stored) > c.ttl
}

// Get returns the payload for key and marks it most recently used.
func (c *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if ok && c.expired(el.Value.(*memoryItem)) {
		c.drop(el)
		ok = false
	}
	if !ok {
		c.misses++
		return nil, false, nil
	}
	c.lru.MoveToFront(el)
	c.hits++
	return el.Value.(*memoryItem).data, true, nil
}

// Set stores data under key, evicting from the cold end when full.
func (c *Memory) Set(_ context.Context, key string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	if el, ok := c.entries[key]; ok {
		it := el.Value.(*memoryItem)
		it.data, it.stored = data, now
		c.lru.MoveToFront(el)
		return nil
	}
	for c.lru.Len() >= c.limit {
		c.drop(c.lru.Back())
	}
	c.entries[key] = c.lru.PushFront(&memoryItem{key: key, data: data, stored: now})
	return nil
}

// Delete removes keys; unknown keys are ignored.
func (c *Memory) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range keys {
		if el, ok := c.entries[key]; ok {
			c.drop(el)
		}
	}
	return nil
}

// Stats returns a snapshot of the counters.
func (c *Memory) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{Entries: c.lru.Len(), MaxEntries: c.limit, Hits: c.hits, Misses: c.misses}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

func (c *Memory) drop(el *list.Element) {
	c.lru.Remove(el)
	delete(c.entries, el.Value.(*memoryItem).key)
}

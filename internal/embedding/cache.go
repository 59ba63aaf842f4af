package embedding

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CacheStats is a point-in-time snapshot of cache effectiveness.
type CacheStats struct {
	Size     int   `json:"size"`
	Capacity int   `json:"capacity"`
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
}

// vectorCache is an LRU over exact input text. Keys are the raw text
// sent to the backend, so two logically equal inputs that differ in
// whitespace miss independently.
type vectorCache struct {
	lru      *lru.Cache[string, []float32]
	capacity int

	hits   atomic.Int64
	misses atomic.Int64
}

// newVectorCache returns a cache of the given capacity, or nil when
// capacity is zero. A nil cache is valid and never hits.
func newVectorCache(capacity int) (*vectorCache, error) {
	if capacity <= 0 {
		return nil, nil
	}
	c, err := lru.New[string, []float32](capacity)
	if err != nil {
		return nil, err
	}
	return &vectorCache{lru: c, capacity: capacity}, nil
}

func (c *vectorCache) get(text string) ([]float32, bool) {
	if c == nil {
		return nil, false
	}
	vec, ok := c.lru.Get(text)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return vec, ok
}

func (c *vectorCache) add(text string, vec []float32) {
	if c == nil {
		return
	}
	c.lru.Add(text, vec)
}

func (c *vectorCache) stats() CacheStats {
	if c == nil {
		return CacheStats{}
	}
	return CacheStats{
		Size:     c.lru.Len(),
		Capacity: c.capacity,
		Hits:     c.hits.Load(),
		Misses:   c.misses.Load(),
	}
}

package browser

import (
	"strings"
	"sync"
)

const DefaultCollectorCapacity = 64

// Collector is a bounded queue of captured responses. Capture pushes into it
// from browser event goroutines and the extractor drains it once the form
// driver reports submission complete.
type Collector struct {
	mu       sync.Mutex
	capacity int
	items    []Response
	dropped  int
}

func NewCollector(capacity int) *Collector {
	if capacity <= 0 {
		capacity = DefaultCollectorCapacity
	}
	return &Collector{capacity: capacity}
}

// Push returns false when the collector is full and the response was dropped.
func (c *Collector) Push(res Response) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.items) >= c.capacity {
		c.dropped++
		return false
	}
	c.items = append(c.items, res)
	return true
}

// Drain returns everything collected so far in arrival order and empties the
// collector.
func (c *Collector) Drain() []Response {
	c.mu.Lock()
	defer c.mu.Unlock()
	items := c.items
	c.items = nil
	return items
}

func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Collector) Dropped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

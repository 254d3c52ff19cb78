package feed

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Sample is the latest observed top-of-book state for the subscribed
// pair. A single shared instance is overwritten on every valid update;
// history is never kept.
type Sample struct {
	Pair       string
	Ask        decimal.Decimal
	ObservedAt time.Time
	Valid      bool
}

// Cell is the shared price state written by the feed and read by the
// order trigger. Last write wins; there is no ordering check against
// out-of-order delivery.
type Cell struct {
	mu     sync.RWMutex
	sample Sample
}

func (c *Cell) Store(s Sample) {
	c.mu.Lock()
	c.sample = s
	c.mu.Unlock()
}

func (c *Cell) Load() Sample {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sample
}

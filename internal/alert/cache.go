// Package alert provides the bounded, insertion-ordered set of signal
// identities that were already alerted, so unchanged candles are not
// re-alerted on every poll.
package alert

import (
	"fmt"

	"whale-footprint-bot/internal/model"
)

// Cache is a FIFO ring of SignalIdentity plus an index for O(1) membership.
// When the size exceeds capacity, the oldest entries are evicted until the
// size equals the prune target. Not safe for concurrent use; each trading
// instance owns its own Cache.
type Cache struct {
	buf    []model.SignalIdentity
	head   int // index of the oldest entry
	count  int
	target int
	index  map[model.SignalIdentity]struct{}

	evicted uint64
}

// New creates a cache. capacity is the soft bound, target the size after pruning.
func New(capacity, target int) (*Cache, error) {
	if capacity <= 0 || target <= 0 || target >= capacity {
		return nil, fmt.Errorf("alert cache: need 0 < target < capacity, got target=%d capacity=%d", target, capacity)
	}
	return &Cache{
		// one spare slot: the insert that overflows capacity is stored before pruning
		buf:    make([]model.SignalIdentity, capacity+1),
		target: target,
		index:  make(map[model.SignalIdentity]struct{}, capacity+1),
	}, nil
}

// ShouldAlert returns false if id was already alerted; otherwise it records
// id and returns true.
func (c *Cache) ShouldAlert(id model.SignalIdentity) bool {
	if _, ok := c.index[id]; ok {
		return false
	}

	c.buf[(c.head+c.count)%len(c.buf)] = id
	c.count++
	c.index[id] = struct{}{}

	if c.count > c.Capacity() {
		c.prune()
	}
	return true
}

// Contains reports whether id was alerted, without recording it.
func (c *Cache) Contains(id model.SignalIdentity) bool {
	_, ok := c.index[id]
	return ok
}

// Len returns the number of remembered identities.
func (c *Cache) Len() int {
	return c.count
}

// Capacity returns the soft bound that triggers pruning.
func (c *Cache) Capacity() int {
	return len(c.buf) - 1
}

// Evicted returns the total number of identities dropped by pruning.
func (c *Cache) Evicted() uint64 {
	return c.evicted
}

// prune drops the oldest entries until count == target.
func (c *Cache) prune() {
	for c.count > c.target {
		oldest := c.buf[c.head]
		delete(c.index, oldest)
		c.buf[c.head] = model.SignalIdentity{}
		c.head = (c.head + 1) % len(c.buf)
		c.count--
		c.evicted++
	}
}

package pipeline

import "sync/atomic"

// OrderedCounter tracks block completion across N workers where worker i
// completes blocks i, i+N, i+2N, ... in that order.
//
// Each worker owns one counter, so increments never contend.
type OrderedCounter struct {
	counts []atomic.Uint64
}

// NewOrderedCounter returns a counter for n workers.
func NewOrderedCounter(n int) *OrderedCounter {
	return &OrderedCounter{counts: make([]atomic.Uint64, n)}
}

// Increment records one more completed block for worker i.
func (c *OrderedCounter) Increment(i int) {
	c.counts[i].Add(1)
}

// Completed returns how many leading blocks are known to be complete:
// min(counts)*N plus the index of the first worker holding the minimum.
func (c *OrderedCounter) Completed() uint64 {
	n := len(c.counts)
	lowest := c.counts[0].Load()
	argmin := 0
	for i := 1; i < n; i++ {
		if v := c.counts[i].Load(); v < lowest {
			lowest = v
			argmin = i
		}
	}

	return lowest*uint64(n) + uint64(argmin) //nolint:gosec
}

// Done reports whether block k is complete.
func (c *OrderedCounter) Done(k uint64) bool {
	return c.Completed() > k
}

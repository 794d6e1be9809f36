package facts

import "sync/atomic"

// Clock is a monotonic logical clock for fact declaration ordering.
//
// All declared facts are stamped with a strictly increasing seq number from
// this clock. This ensures:
// - Deterministic ordering (no wall-clock race conditions)
// - Replay produces identical order
// - Duplicate facts are distinguishable
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
// However, a Store is request-scoped, so only one goroutine typically
// calls Next().
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and increments the clock.
// Calls are linearizable - each call returns a unique, increasing value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

// Restart resets the clock to 0. Called by Store.Reset so that identical
// declaration sequences produce identical handles across runs.
func (c *Clock) Restart() {
	c.seq.Store(0)
}

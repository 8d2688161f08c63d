package clock

import (
	"sync"
	"time"
)

// Clock abstracts time.Now for the ledger.
type Clock interface {
	Now() time.Time
}

// System implements Clock using the local system clock in UTC.
type System struct{}

// Now returns the current local time in UTC.
func (System) Now() time.Time { return time.Now().UTC() }

// Manual is a deterministic clock for tests.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual creates a Manual clock starting at the given time.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the current manual time.
func (c *Manual) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

// Advance moves the clock forward by d.
func (c *Manual) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// Set moves the clock to an exact time.
func (c *Manual) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

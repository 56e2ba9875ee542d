// Package clock provides the single source of time for L1NE's simulation
// and runtime layers. It wraps either the OS monotonic clock or a fully
// simulated timeline, chosen once at construction (see spec.md §5: "the
// simulation region observes time exclusively through Clock; nothing in
// the simulator may call time.Now() directly").
package clock

import (
	"time"

	"github.com/l1ne-systems/l1ne/internal/contract"
)

// Mode selects which timeline a Clock observes.
type Mode uint8

const (
	// Real backs Now() with time.Now(); Advance and SetTime are contract
	// violations in this mode.
	Real Mode = iota
	// Simulated backs Now() with an in-memory cursor only Advance and
	// SetTime may move.
	Simulated
)

// Clock is the monotonic time source threaded through every component
// that needs to read or advance time. The zero value is not usable;
// construct with NewReal or NewSimulated.
type Clock struct {
	mode    Mode
	current time.Time
	last    time.Time
}

// NewReal returns a Clock backed by the OS monotonic clock.
func NewReal() *Clock {
	now := time.Now()
	return &Clock{mode: Real, current: now, last: now}
}

// NewSimulated returns a Clock whose timeline starts at start and only
// advances when Advance or SetTime is called.
func NewSimulated(start time.Time) *Clock {
	return &Clock{mode: Simulated, current: start, last: start}
}

// Mode reports which timeline this Clock observes.
func (c *Clock) Mode() Mode { return c.mode }

// Now returns the current time. In Real mode it samples time.Now(); in
// Simulated mode it returns the last value set by Advance/SetTime. Either
// way, it is a contract violation for the returned time to be earlier
// than the previous call's — the clock must never appear to run
// backwards to a caller.
func (c *Clock) Now() time.Time {
	if c.mode == Real {
		now := time.Now()
		contract.Assert(!now.Before(c.last), "real clock went backwards: %s -> %s", c.last, now)
		c.last = now
		c.current = now
		return now
	}
	return c.current
}

// Advance moves a Simulated clock forward by delta. It is a contract
// violation to call Advance on a Real clock, or with a negative delta.
func (c *Clock) Advance(delta time.Duration) time.Time {
	contract.Assert(c.mode == Simulated, "Advance called on a Real clock")
	contract.Assert(delta >= 0, "Advance called with negative delta %s", delta)
	c.current = c.current.Add(delta)
	c.last = c.current
	return c.current
}

// SetTime pins a Simulated clock to an absolute instant t, which must not
// be before the current time. It is a contract violation to call SetTime
// on a Real clock.
func (c *Clock) SetTime(t time.Time) {
	contract.Assert(c.mode == Simulated, "SetTime called on a Real clock")
	contract.Assert(!t.Before(c.current), "SetTime %s precedes current time %s", t, c.current)
	c.current = t
	c.last = t
}

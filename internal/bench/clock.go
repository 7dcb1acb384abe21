package bench

import "time"

// Clock yields nanosecond timestamps in the Unix epoch domain that advance
// with the monotonic clock, so wall-clock steps after the anchor do not
// affect them.
type Clock struct {
	anchor time.Time
}

var defaultClock = NewClock()

func NewClock() *Clock {
	return &Clock{anchor: time.Now()}
}

// DefaultClock is shared by every worker in the process.
func DefaultClock() *Clock {
	return defaultClock
}

// Now returns the wall-clock time and the matching monotonic nanosecond stamp.
func (c *Clock) Now() (time.Time, int64) {
	wall := time.Now()
	return wall, c.anchor.UnixNano() + wall.Sub(c.anchor).Nanoseconds()
}

func (c *Clock) Nanos() int64 {
	_, ns := c.Now()
	return ns
}

// Package fps provides a sliding-window frame-rate estimator used for
// pipeline diagnostics and the on-frame readout.
package fps

import (
	"math"

	"github.com/lanewatch-data/lanewatch/internal/timeutil"
)

// Counter estimates the frame rate over the last N samples. It keeps a
// bounded FIFO of sample timestamps; until the buffer is full every call
// returns 0.0, after which each call reports the rate across the window.
//
// Counter is not safe for concurrent use; the frame loop is its only
// caller.
type Counter struct {
	clock  timeutil.Clock
	window int
	buffer []int64 // unix nanos, oldest first
}

// NewCounter creates a counter over a window of n samples. n < 1 is
// clamped to 1; a one-sample window is a valid degenerate case that
// always reports 0.0.
func NewCounter(n int, clock timeutil.Clock) *Counter {
	if n < 1 {
		n = 1
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Counter{
		clock:  clock,
		window: n,
		buffer: make([]int64, 0, n),
	}
}

// Sample records the current timestamp and returns the estimated frames
// per second over the window, rounded to two decimals. Returns 0.0 until
// the window has filled, and 0.0 whenever the window spans no measurable
// time (identical consecutive timestamps, or a one-sample window).
func (c *Counter) Sample() float64 {
	now := c.clock.Now().UnixNano()

	if len(c.buffer) == c.window {
		// Evict the oldest sample to make room.
		copy(c.buffer, c.buffer[1:])
		c.buffer = c.buffer[:len(c.buffer)-1]
	}
	c.buffer = append(c.buffer, now)

	if len(c.buffer) < c.window {
		return 0.0
	}

	spanNanos := c.buffer[len(c.buffer)-1] - c.buffer[0]
	if spanNanos <= 0 {
		return 0.0
	}

	// A full buffer of N timestamps spans N-1 frame intervals.
	frames := float64(len(c.buffer) - 1)
	fpsValue := frames / (float64(spanNanos) / 1e9)
	return math.Round(fpsValue*100) / 100
}

// WindowSize returns the configured window length.
func (c *Counter) WindowSize() int {
	return c.window
}

// Len returns the current number of buffered samples. Never exceeds the
// window size.
func (c *Counter) Len() int {
	return len(c.buffer)
}

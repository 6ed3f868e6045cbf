package sink

import (
	"sync"
	"time"

	"github.com/lanewatch-data/lanewatch/internal/monitoring"
)

// Display is the live preview sink for headless deployments: it retains
// the latest result for inspection and logs a one-line count summary at a
// fixed cadence. Best-effort by contract.
type Display struct {
	mu       sync.Mutex
	latest   *Result
	interval time.Duration
	lastLog  time.Time
}

// NewDisplay creates a display sink that logs a summary at most once per
// interval. Zero disables the periodic summary.
func NewDisplay(interval time.Duration) *Display {
	return &Display{interval: interval}
}

// Name implements Sink.
func (d *Display) Name() string { return "display" }

// Consume retains the result and emits the periodic summary line.
func (d *Display) Consume(res *Result) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.latest = res
	if d.interval <= 0 || res.CapturedAt.Sub(d.lastLog) < d.interval {
		return nil
	}
	d.lastLog = res.CapturedAt

	monitoring.Logf("[display] frame %d: fps=%.2f tracks=%d total=%d",
		res.FrameIndex, res.FPS, len(res.Objects), res.Stats.Total)
	for _, lc := range res.Stats.Lanes {
		if lc.Windowed != nil {
			monitoring.Logf("[display]   lane %s: %d cumulative, %d in window", lc.Lane, lc.Cumulative, *lc.Windowed)
		} else {
			monitoring.Logf("[display]   lane %s: %d cumulative (warming up)", lc.Lane, lc.Cumulative)
		}
	}
	return nil
}

// Latest returns the most recent result, or nil before the first frame.
func (d *Display) Latest() *Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.latest
}

// Close implements Sink.
func (d *Display) Close() error { return nil }

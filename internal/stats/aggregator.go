package stats

import (
	"sort"
	"sync"
	"time"

	"github.com/lanewatch-data/lanewatch/internal/timeutil"
)

// key identifies one per-lane/per-class event series.
type key struct {
	lane  string
	class string
}

// Aggregator maintains counting statistics from the event stream.
//
// Cumulative counts are monotonic and never affected by eviction.
// Windowed queries only see events inside the retention window; entries
// older than retention are trimmed lazily on insert and by an amortised
// sweep on query, never by a full rescan per call.
//
// The frame loop owns the aggregator during a pipeline pass, but sinks
// read snapshots from their own goroutines, so access is locked.
type Aggregator struct {
	mu sync.RWMutex

	clock     timeutil.Clock
	retention time.Duration
	startedAt time.Time

	// windows holds event timestamps inside the retention window, oldest
	// first, per lane/class series.
	windows map[key][]time.Time

	// cumulative counts all events ever recorded, per series.
	cumulative map[key]int64

	// sweepEvery bounds how often queries pay for a full eviction pass.
	sweepEvery time.Duration
	lastSweep  time.Time
}

// NewAggregator creates an aggregator with the given retention window.
// Windowed queries wider than the retention window are clamped to it.
func NewAggregator(retention time.Duration, clock timeutil.Clock) *Aggregator {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	now := clock.Now()
	return &Aggregator{
		clock:      clock,
		retention:  retention,
		startedAt:  now,
		windows:    make(map[key][]time.Time),
		cumulative: make(map[key]int64),
		sweepEvery: retention / 4,
		lastSweep:  now,
	}
}

// Record appends one event. The event's own timestamp is authoritative;
// events already older than the retention window still count towards the
// cumulative totals.
func (a *Aggregator) Record(ev Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	k := key{lane: ev.Lane, class: ev.Class}
	a.cumulative[k]++

	now := a.clock.Now()
	cutoff := now.Add(-a.retention)
	if ev.Timestamp.Before(cutoff) {
		return
	}

	series := append(a.windows[k], ev.Timestamp)
	// Trim expired entries from the head while we are here. Series are
	// appended in arrival order, which is timestamp order for a live
	// pipeline, so the expired prefix is contiguous.
	trimmed := trimBefore(series, cutoff)
	a.windows[k] = trimmed
}

// WindowedCount returns the number of events for the lane/class pair with
// a timestamp in [now-window, now]. The window is clamped to the
// retention window.
func (a *Aggregator) WindowedCount(lane, class string, window time.Duration) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.maybeSweep()

	if window > a.retention {
		window = a.retention
	}
	cutoff := a.clock.Now().Add(-window)

	series := a.windows[key{lane: lane, class: class}]
	count := 0
	for _, ts := range series {
		if !ts.Before(cutoff) {
			count++
		}
	}
	return count
}

// WindowedLaneCount returns windowed events for a lane across all classes.
func (a *Aggregator) WindowedLaneCount(lane string, window time.Duration) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.maybeSweep()

	if window > a.retention {
		window = a.retention
	}
	cutoff := a.clock.Now().Add(-window)

	count := 0
	for k, series := range a.windows {
		if k.lane != lane {
			continue
		}
		for _, ts := range series {
			if !ts.Before(cutoff) {
				count++
			}
		}
	}
	return count
}

// CumulativeCount returns the all-time count for the lane/class pair.
func (a *Aggregator) CumulativeCount(lane, class string) int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cumulative[key{lane: lane, class: class}]
}

// CumulativeLaneCount returns the all-time count for a lane across all
// classes.
func (a *Aggregator) CumulativeLaneCount(lane string) int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var total int64
	for k, n := range a.cumulative {
		if k.lane == lane {
			total += n
		}
	}
	return total
}

// TotalCount returns the all-time count across every lane and class.
func (a *Aggregator) TotalCount() int64 {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var total int64
	for _, n := range a.cumulative {
		total += n
	}
	return total
}

// WarmedUp reports whether the aggregator has been running for at least
// one full retention window. Windowed figures published before that point
// undercount simply because the window has not filled; consumers use this
// flag to suppress them.
func (a *Aggregator) WarmedUp() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.clock.Since(a.startedAt) >= a.retention
}

// Retention returns the configured retention window.
func (a *Aggregator) Retention() time.Duration {
	return a.retention
}

// maybeSweep evicts expired entries across all series if enough time has
// passed since the last sweep. Callers must hold the write lock.
func (a *Aggregator) maybeSweep() {
	now := a.clock.Now()
	if a.sweepEvery <= 0 || now.Sub(a.lastSweep) < a.sweepEvery {
		return
	}
	a.lastSweep = now

	cutoff := now.Add(-a.retention)
	for k, series := range a.windows {
		trimmed := trimBefore(series, cutoff)
		if len(trimmed) == 0 {
			delete(a.windows, k)
			continue
		}
		a.windows[k] = trimmed
	}
}

// trimBefore drops the series prefix older than cutoff. Series are kept
// in timestamp order, so the expired prefix is found by binary search.
func trimBefore(series []time.Time, cutoff time.Time) []time.Time {
	idx := sort.Search(len(series), func(i int) bool {
		return !series[i].Before(cutoff)
	})
	return series[idx:]
}

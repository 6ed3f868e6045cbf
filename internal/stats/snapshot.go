package stats

import "time"

// LaneCounts holds the published figures for one lane.
type LaneCounts struct {
	Lane string `json:"lane"`

	// Windowed is the count over the retention window. Nil until the
	// aggregator has warmed up (the window has not yet filled, so the
	// figure would undercount).
	Windowed *int `json:"windowed"`

	// Cumulative is the all-time count.
	Cumulative int64 `json:"cumulative"`

	// ByClass breaks the cumulative count down per object class.
	ByClass map[string]int64 `json:"by_class,omitempty"`

	// Headway summarises the spacing between consecutive counted
	// vehicles over the window; nil when there are too few events.
	Headway *HeadwaySummary `json:"headway,omitempty"`
}

// Snapshot is an immutable copy of the aggregator state, safe to hand to
// sinks running on their own goroutines.
type Snapshot struct {
	GeneratedAt time.Time    `json:"generated_at"`
	WarmedUp    bool         `json:"warmed_up"`
	Total       int64        `json:"total"`
	Lanes       []LaneCounts `json:"lanes"`
}

// Snapshot builds a point-in-time copy of the statistics for the given
// lanes, in the caller's lane order.
func (a *Aggregator) Snapshot(laneIDs []string) Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.maybeSweep()

	now := a.clock.Now()
	warm := a.clock.Since(a.startedAt) >= a.retention
	cutoff := now.Add(-a.retention)

	snap := Snapshot{
		GeneratedAt: now,
		WarmedUp:    warm,
		Lanes:       make([]LaneCounts, 0, len(laneIDs)),
	}
	for _, n := range a.cumulative {
		snap.Total += n
	}

	for _, lane := range laneIDs {
		lc := LaneCounts{Lane: lane}

		var windowed int
		var gaps []time.Time
		for k, series := range a.windows {
			if k.lane != lane {
				continue
			}
			for _, ts := range series {
				if !ts.Before(cutoff) {
					windowed++
					gaps = append(gaps, ts)
				}
			}
		}
		if warm {
			lc.Windowed = &windowed
		}

		for k, n := range a.cumulative {
			if k.lane != lane {
				continue
			}
			lc.Cumulative += n
			if lc.ByClass == nil {
				lc.ByClass = make(map[string]int64)
			}
			lc.ByClass[k.class] += n
		}

		lc.Headway = summariseHeadways(gaps)
		snap.Lanes = append(snap.Lanes, lc)
	}

	return snap
}

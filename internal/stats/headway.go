package stats

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"
)

// HeadwaySummary describes the time spacing between consecutive counted
// vehicles in a lane. Mean headway is the standard flow-rate companion to
// a raw count: a lane counting 30 vehicles at a steady 2 s headway is a
// very different road state from 30 vehicles in two platoons.
type HeadwaySummary struct {
	SampleCount int     `json:"sample_count"`
	MeanSecs    float64 `json:"mean_secs"`
	StdDevSecs  float64 `json:"stddev_secs"`
	P85Secs     float64 `json:"p85_secs"`
}

// summariseHeadways computes headway statistics from event timestamps.
// Returns nil when fewer than two events exist (no gap to measure).
func summariseHeadways(timestamps []time.Time) *HeadwaySummary {
	if len(timestamps) < 2 {
		return nil
	}

	sorted := make([]time.Time, len(timestamps))
	copy(sorted, timestamps)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	gaps := make([]float64, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		gaps = append(gaps, sorted[i].Sub(sorted[i-1]).Seconds())
	}

	mean, std := stat.MeanStdDev(gaps, nil)
	if len(gaps) < 2 {
		std = 0
	}

	quantSorted := make([]float64, len(gaps))
	copy(quantSorted, gaps)
	sort.Float64s(quantSorted)
	p85 := stat.Quantile(0.85, stat.Empirical, quantSorted, nil)

	return &HeadwaySummary{
		SampleCount: len(gaps),
		MeanSecs:    mean,
		StdDevSecs:  std,
		P85Secs:     p85,
	}
}

// Package track owns the per-track counting lifecycle. It consumes the
// external tracker's per-frame output plus lane assignments and decides
// when a track has committed to a lane firmly enough to count it.
package track

import (
	"time"

	"github.com/lanewatch-data/lanewatch/internal/lanes"
	"github.com/lanewatch-data/lanewatch/internal/monitoring"
	"github.com/lanewatch-data/lanewatch/internal/stats"
	"github.com/lanewatch-data/lanewatch/internal/video"
)

// Stage represents the counting lifecycle stage of a track.
type Stage string

const (
	StageNew     Stage = "new"     // First sighting, not yet trusted
	StageActive  Stage = "active"  // Observed long enough, accumulating lane votes
	StageCounted Stage = "counted" // Resolved to a lane and counted; terminal while visible
)

// Config holds the lifecycle tuning parameters. All values are consumed
// as-is; validation belongs to the configuration layer at startup.
type Config struct {
	MinActiveFrames int // Observations before a new track becomes active
	VoteWindow      int // Lane-history length used by the majority vote
	TrackBuffer     int // Frames a track may go unseen before eviction

	// Frame geometry for bounding-box validation.
	FrameWidth  float64
	FrameHeight float64
	// EdgeTolerancePx is how far a box may overhang the frame edge before
	// it is treated as malformed. Trackers clip entry/exit boxes by a few
	// pixels routinely.
	EdgeTolerancePx float64

	// MaxHistoryLength bounds the lane-history kept per track. Must be at
	// least VoteWindow; the surplus exists for diagnostics only.
	MaxHistoryLength int
}

// DefaultConfig returns lifecycle parameters suitable for a 30 fps
// roadside camera at 1920x1080.
func DefaultConfig() Config {
	return Config{
		MinActiveFrames:  3,
		VoteWindow:       5,
		TrackBuffer:      30,
		FrameWidth:       1920,
		FrameHeight:      1080,
		EdgeTolerancePx:  32,
		MaxHistoryLength: 60,
	}
}

// State is the mutable per-track record. Created on first sighting of a
// track ID, updated every frame the ID reappears, destroyed once the ID
// has been absent for TrackBuffer frames.
type State struct {
	TrackID int64
	Stage   Stage
	Class   string

	// LaneHistory holds the per-frame lane assignments observed while
	// active, most recent last, bounded by MaxHistoryLength.
	LaneHistory []string

	// ResolvedLane is the lane the track was counted for; empty until the
	// track reaches StageCounted.
	ResolvedLane string

	FirstSeenFrame int64
	LastSeenFrame  int64
	Observations   int
}

// Manager owns the track-ID to State map. It is driven synchronously by
// the frame loop and never blocks; callers needing track state from other
// goroutines must go through the snapshot accessors.
type Manager struct {
	config Config
	tracks map[int64]*State

	// Lifetime counters for diagnostics and the bus payload.
	lifetimesStarted int64
	lifetimesCounted int64
	lifetimesEvicted int64
}

// NewManager creates a lifecycle manager with the given configuration.
func NewManager(config Config) *Manager {
	if config.MaxHistoryLength < config.VoteWindow {
		config.MaxHistoryLength = config.VoteWindow
	}
	return &Manager{
		config: config,
		tracks: make(map[int64]*State),
	}
}

// Update processes one frame of tracker output. objects and laneIDs are
// parallel slices: laneIDs[i] is the lane attribution for objects[i]
// (lanes.Unassigned when none). Returns the counting events emitted this
// frame, at most one per track per continuous lifetime.
//
// Malformed bounding boxes are skipped with a warning; a bad box from the
// tracker must not poison the rest of the frame.
func (m *Manager) Update(frameIndex int64, now time.Time, objects []video.TrackedObject, laneIDs []string) []stats.Event {
	var events []stats.Event

	for i, obj := range objects {
		if !m.validBox(obj, frameIndex) {
			continue
		}

		lane := lanes.Unassigned
		if i < len(laneIDs) {
			lane = laneIDs[i]
		}

		st, ok := m.tracks[obj.TrackID]
		if !ok {
			st = &State{
				TrackID:        obj.TrackID,
				Stage:          StageNew,
				Class:          obj.Class,
				FirstSeenFrame: frameIndex,
			}
			m.tracks[obj.TrackID] = st
			m.lifetimesStarted++
		}
		st.LastSeenFrame = frameIndex
		st.Observations++
		st.Class = obj.Class

		switch st.Stage {
		case StageNew:
			// Promotion only; lane voting starts on the first frame the
			// track spends fully active. Short-lived spurious tracks die
			// here without ever influencing counts.
			if st.Observations >= m.config.MinActiveFrames {
				st.Stage = StageActive
			}

		case StageActive:
			m.appendLane(st, lane)
			if resolved := m.resolveLane(st); resolved != lanes.Unassigned {
				st.Stage = StageCounted
				st.ResolvedLane = resolved
				m.lifetimesCounted++
				events = append(events, stats.NewEvent(resolved, st.Class, now))
			}

		case StageCounted:
			// Terminal while visible. The history keeps updating so the
			// overlay and diagnostics stay current, but the lifetime has
			// already been counted.
			m.appendLane(st, lane)
		}
	}

	m.evictStale(frameIndex)
	return events
}

// validBox rejects malformed tracker output at the lifecycle boundary:
// non-finite coordinates, inverted or zero-area boxes, and boxes outside
// the frame beyond the edge tolerance. The offending object is skipped
// for this frame only.
func (m *Manager) validBox(obj video.TrackedObject, frameIndex int64) bool {
	box := obj.Box
	switch {
	case !box.IsFinite():
		monitoring.Logf("[track] frame %d: dropping track %d: non-finite box coordinates", frameIndex, obj.TrackID)
		return false
	case !box.HasArea():
		monitoring.Logf("[track] frame %d: dropping track %d: inverted or zero-area box", frameIndex, obj.TrackID)
		return false
	case !box.InBounds(m.config.FrameWidth, m.config.FrameHeight, m.config.EdgeTolerancePx):
		monitoring.Logf("[track] frame %d: dropping track %d: box outside frame bounds", frameIndex, obj.TrackID)
		return false
	}
	return true
}

// appendLane pushes one lane assignment onto the bounded history.
func (m *Manager) appendLane(st *State, lane string) {
	st.LaneHistory = append(st.LaneHistory, lane)
	if len(st.LaneHistory) > m.config.MaxHistoryLength {
		st.LaneHistory = st.LaneHistory[len(st.LaneHistory)-m.config.MaxHistoryLength:]
	}
}

// resolveLane runs the majority vote once the history has filled the vote
// window: the most frequent non-unassigned lane across the last
// VoteWindow entries wins, ties broken by first appearance in the window.
// Returns Unassigned while the window is short or every entry in it is
// unassigned.
func (m *Manager) resolveLane(st *State) string {
	if len(st.LaneHistory) < m.config.VoteWindow {
		return lanes.Unassigned
	}
	window := st.LaneHistory[len(st.LaneHistory)-m.config.VoteWindow:]

	counts := make(map[string]int, len(window))
	var order []string
	for _, lane := range window {
		if lane == lanes.Unassigned {
			continue
		}
		if counts[lane] == 0 {
			order = append(order, lane)
		}
		counts[lane]++
	}

	best := lanes.Unassigned
	bestCount := 0
	for _, lane := range order {
		if counts[lane] > bestCount {
			best = lane
			bestCount = counts[lane]
		}
	}
	return best
}

// evictStale removes every track whose last sighting is TrackBuffer or
// more frames behind the current frame. A track unseen for exactly
// TrackBuffer frames is removed on this call; one frame earlier it
// survives.
func (m *Manager) evictStale(frameIndex int64) {
	for id, st := range m.tracks {
		if frameIndex-st.LastSeenFrame >= int64(m.config.TrackBuffer) {
			delete(m.tracks, id)
			m.lifetimesEvicted++
		}
	}
}

// ActiveCount returns the number of tracks currently held.
func (m *Manager) ActiveCount() int {
	return len(m.tracks)
}

// Track returns a copy of the state for a track ID, with a deep-copied
// lane history, or false when the ID is not currently tracked.
func (m *Manager) Track(id int64) (State, bool) {
	st, ok := m.tracks[id]
	if !ok {
		return State{}, false
	}
	copied := *st
	copied.LaneHistory = append([]string(nil), st.LaneHistory...)
	return copied, true
}

// StageCount returns how many live tracks are in each stage.
func (m *Manager) StageCount() (newCount, active, counted int) {
	for _, st := range m.tracks {
		switch st.Stage {
		case StageNew:
			newCount++
		case StageActive:
			active++
		case StageCounted:
			counted++
		}
	}
	return
}

// Lifetimes returns the started/counted/evicted lifetime totals since the
// manager was created. The gap between started and counted is the
// fragmentation of the external tracker: identities that never survived
// long enough to count.
func (m *Manager) Lifetimes() (started, counted, evicted int64) {
	return m.lifetimesStarted, m.lifetimesCounted, m.lifetimesEvicted
}

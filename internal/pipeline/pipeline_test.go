package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanewatch-data/lanewatch/internal/annotate"
	"github.com/lanewatch-data/lanewatch/internal/fps"
	"github.com/lanewatch-data/lanewatch/internal/lanes"
	"github.com/lanewatch-data/lanewatch/internal/sink"
	"github.com/lanewatch-data/lanewatch/internal/stats"
	"github.com/lanewatch-data/lanewatch/internal/timeutil"
	"github.com/lanewatch-data/lanewatch/internal/track"
	"github.com/lanewatch-data/lanewatch/internal/video"
)

// collectSink records every result it receives.
type collectSink struct {
	results []*sink.Result
}

func (c *collectSink) Name() string                 { return "collect" }
func (c *collectSink) Consume(r *sink.Result) error { c.results = append(c.results, r); return nil }
func (c *collectSink) Close() error                 { return nil }

// failSink always errors.
type failSink struct{ calls int }

func (f *failSink) Name() string               { return "fail" }
func (f *failSink) Consume(*sink.Result) error { f.calls++; return errors.New("boom") }
func (f *failSink) Close() error               { return nil }

// panicSink always panics.
type panicSink struct{ calls int }

func (p *panicSink) Name() string               { return "panic" }
func (p *panicSink) Consume(*sink.Result) error { p.calls++; panic("sink exploded") }
func (p *panicSink) Close() error               { return nil }

func testLanes(t *testing.T) *lanes.LaneSet {
	t.Helper()
	set, err := lanes.Parse([]byte(`{
		"north": [0, 0, 960, 0, 960, 1080, 0, 1080],
		"south": [960, 0, 1920, 0, 1920, 1080, 960, 1080]
	}`))
	require.NoError(t, err)
	return set
}

func frames(n int, start time.Time) []*video.Frame {
	out := make([]*video.Frame, n)
	for i := range out {
		out[i] = &video.Frame{
			Image:      image.NewRGBA(image.Rect(0, 0, 1920, 1080)),
			Index:      int64(i),
			CapturedAt: start.Add(time.Duration(i) * 33 * time.Millisecond),
		}
	}
	return out
}

// vehicleScript builds a detection script for one vehicle holding a fixed
// position in the "north" half for every frame in [first, last].
func vehicleScript(trackID, first, last int64, class string) map[int64][]video.TrackedObject {
	script := make(map[int64][]video.TrackedObject)
	for f := first; f <= last; f++ {
		script[f] = append(script[f], video.TrackedObject{
			TrackID:    trackID,
			Box:        video.BoundingBox{X1: 400, Y1: 500, X2: 520, Y2: 580},
			Class:      class,
			Confidence: 0.9,
		})
	}
	return script
}

func newTestPipeline(t *testing.T, cfg Config) *Pipeline {
	t.Helper()
	set := testLanes(t)
	clock := timeutil.NewMockClock(time.Unix(10000, 0))
	if cfg.Clock == nil {
		cfg.Clock = clock
	}
	if cfg.Assigner == nil {
		cfg.Assigner = lanes.NewAssigner(set)
	}
	if cfg.Lifecycle == nil {
		cfg.Lifecycle = track.NewManager(track.Config{
			MinActiveFrames:  3,
			VoteWindow:       5,
			TrackBuffer:      25,
			FrameWidth:       1920,
			FrameHeight:      1080,
			EdgeTolerancePx:  32,
			MaxHistoryLength: 10,
		})
	}
	if cfg.Aggregator == nil {
		cfg.Aggregator = stats.NewAggregator(time.Minute, cfg.Clock)
	}
	if cfg.Annotator == nil {
		cfg.Annotator = annotate.New(set.Lanes())
	}
	if cfg.FPS == nil {
		cfg.FPS = fps.NewCounter(5, cfg.Clock)
	}
	p, err := New(cfg)
	require.NoError(t, err)
	return p
}

func TestPipeline_EndToEnd(t *testing.T) {
	t.Parallel()

	start := time.Unix(10000, 0)
	collect := &collectSink{}

	// One vehicle visible from frame 10 to 40.
	p := newTestPipeline(t, Config{
		Source:  video.NewSliceSource(frames(70, start)),
		Tracker: video.NewScriptedTracker(vehicleScript(7, 10, 40, "car")),
		Sinks:   []sink.Sink{collect},
	})
	require.NoError(t, p.Run(context.Background()))
	assert.Equal(t, int64(70), p.Frames())
	require.Len(t, collect.results, 70)

	// Sighted at 10, promoted at 12, five lane votes by frame 17: the
	// event lands on frame 17's result and on no other.
	for _, res := range collect.results {
		if res.FrameIndex == 17 {
			require.Len(t, res.Events, 1)
			assert.Equal(t, "north", res.Events[0].Lane)
			assert.Equal(t, "car", res.Events[0].Class)
		} else {
			assert.Empty(t, res.Events, "frame %d must not emit events", res.FrameIndex)
		}
	}

	// The count is visible in every later snapshot.
	last := collect.results[69]
	assert.Equal(t, int64(1), last.Stats.Total)
	require.Len(t, last.Stats.Lanes, 2)
	assert.Equal(t, "north", last.Stats.Lanes[0].Lane)
	assert.Equal(t, int64(1), last.Stats.Lanes[0].Cumulative)
	assert.Equal(t, int64(0), last.Stats.Lanes[1].Cumulative)

	// Last seen at frame 40, buffer 25: the manager is empty by frame 65.
	assert.Equal(t, 0, p.cfg.Lifecycle.ActiveCount())
}

func TestPipeline_SinkIsolation(t *testing.T) {
	t.Parallel()

	start := time.Unix(10000, 0)
	collect := &collectSink{}
	failing := &failSink{}
	panicking := &panicSink{}

	p := newTestPipeline(t, Config{
		Source:  video.NewSliceSource(frames(5, start)),
		Tracker: video.NewScriptedTracker(nil),
		// Misbehaving sinks ahead of the healthy one in fan-out order.
		Sinks: []sink.Sink{failing, panicking, collect},
	})
	require.NoError(t, p.Run(context.Background()))

	assert.Equal(t, 5, failing.calls)
	assert.Equal(t, 5, panicking.calls)
	assert.Len(t, collect.results, 5, "healthy sink must receive every frame despite failing peers")
}

func TestPipeline_TrackerErrorIsFatal(t *testing.T) {
	t.Parallel()

	start := time.Unix(10000, 0)
	p := newTestPipeline(t, Config{
		Source:  video.NewSliceSource(frames(5, start)),
		Tracker: erroringTracker{after: 2},
	})
	err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frame 2")
	assert.Equal(t, int64(2), p.Frames())
}

// erroringTracker succeeds for the first `after` frames then fails.
type erroringTracker struct{ after int64 }

func (e erroringTracker) Infer(_ context.Context, f *video.Frame) ([]video.TrackedObject, error) {
	if f.Index >= e.after {
		return nil, fmt.Errorf("model crashed")
	}
	return nil, nil
}

func TestPipeline_StopsBetweenFrames(t *testing.T) {
	t.Parallel()

	start := time.Unix(10000, 0)
	collect := &collectSink{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel() // already cancelled before the first frame

	p := newTestPipeline(t, Config{
		Source:  video.NewSliceSource(frames(10, start)),
		Tracker: video.NewScriptedTracker(nil),
		Sinks:   []sink.Sink{collect},
	})
	require.NoError(t, p.Run(ctx))
	assert.Empty(t, collect.results)
	assert.Equal(t, int64(0), p.Frames())
}

func TestPipeline_RequiresCollaborators(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	assert.Error(t, err)

	_, err = New(Config{Source: video.NewSliceSource(nil)})
	assert.Error(t, err)
}

func TestPipeline_PersistsEvents(t *testing.T) {
	t.Parallel()

	store, err := stats.NewStore(t.TempDir() + "/events.db")
	require.NoError(t, err)
	defer store.Close()

	start := time.Unix(10000, 0)
	p := newTestPipeline(t, Config{
		Source:  video.NewSliceSource(frames(30, start)),
		Tracker: video.NewScriptedTracker(vehicleScript(1, 0, 29, "truck")),
		Store:   store,
	})
	require.NoError(t, p.Run(context.Background()))

	stored, err := store.EventsSince(time.Unix(0, 0), 0)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "north", stored[0].Lane)
	assert.Equal(t, "truck", stored[0].Class)
}

// Package pipeline runs the frame loop: pull a frame, run inference,
// attribute lanes, advance track lifecycles, record counting events,
// annotate, and fan the result out to the sinks. One frame is in flight
// at a time; stopping happens only between frames.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/lanewatch-data/lanewatch/internal/annotate"
	"github.com/lanewatch-data/lanewatch/internal/fps"
	"github.com/lanewatch-data/lanewatch/internal/lanes"
	"github.com/lanewatch-data/lanewatch/internal/monitoring"
	"github.com/lanewatch-data/lanewatch/internal/sink"
	"github.com/lanewatch-data/lanewatch/internal/stats"
	"github.com/lanewatch-data/lanewatch/internal/timeutil"
	"github.com/lanewatch-data/lanewatch/internal/track"
	"github.com/lanewatch-data/lanewatch/internal/video"
)

// Config wires the pipeline's collaborators together. Source, Tracker,
// Assigner, Lifecycle, and Aggregator are required; everything else is
// optional.
type Config struct {
	Source    video.FrameSource
	Tracker   video.DetectionTracker
	Assigner  *lanes.Assigner
	Lifecycle *track.Manager

	Aggregator *stats.Aggregator
	// Store, when set, persists every counting event. Store failures are
	// logged and skipped; the in-memory aggregator remains authoritative
	// for the live snapshot.
	Store *stats.Store

	Annotator *annotate.Annotator
	FPS       *fps.Counter
	Sinks     []sink.Sink

	// DetectorTimeout bounds each Infer call. Zero means no deadline.
	DetectorTimeout time.Duration

	Clock timeutil.Clock
}

// Pipeline is the frame-loop orchestrator.
type Pipeline struct {
	cfg    Config
	clock  timeutil.Clock
	frames int64
}

// New validates the configuration and creates a pipeline.
func New(cfg Config) (*Pipeline, error) {
	switch {
	case cfg.Source == nil:
		return nil, fmt.Errorf("pipeline requires a frame source")
	case cfg.Tracker == nil:
		return nil, fmt.Errorf("pipeline requires a detection tracker")
	case cfg.Assigner == nil:
		return nil, fmt.Errorf("pipeline requires a lane assigner")
	case cfg.Lifecycle == nil:
		return nil, fmt.Errorf("pipeline requires a lifecycle manager")
	case cfg.Aggregator == nil:
		return nil, fmt.Errorf("pipeline requires a statistics aggregator")
	}
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	return &Pipeline{cfg: cfg, clock: cfg.Clock}, nil
}

// Run drives the frame loop until the source is exhausted, the context is
// cancelled, or a fatal error occurs. Source exhaustion and cancellation
// return nil; tracker failures are fatal and return an error naming the
// frame. Sinks are closed on the way out regardless.
func (p *Pipeline) Run(ctx context.Context) error {
	defer p.closeSinks()

	laneIDSet := make([]string, 0)
	for _, def := range p.cfg.Assigner.Lanes() {
		laneIDSet = append(laneIDSet, def.ID)
	}

	for {
		select {
		case <-ctx.Done():
			monitoring.Logf("[pipeline] stop requested, %d frames processed", p.frames)
			return nil
		default:
		}

		frame, err := p.cfg.Source.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				monitoring.Logf("[pipeline] source exhausted after %d frames", p.frames)
				return nil
			}
			return fmt.Errorf("frame source failed after frame %d: %w", p.frames, err)
		}

		if err := p.processFrame(ctx, frame, laneIDSet); err != nil {
			return err
		}
		p.frames++
	}
}

// processFrame runs one full pipeline pass over a single frame.
func (p *Pipeline) processFrame(ctx context.Context, frame *video.Frame, laneIDSet []string) error {
	inferCtx := ctx
	if p.cfg.DetectorTimeout > 0 {
		var cancel context.CancelFunc
		inferCtx, cancel = context.WithTimeout(ctx, p.cfg.DetectorTimeout)
		defer cancel()
	}

	objects, err := p.cfg.Tracker.Infer(inferCtx, frame)
	if err != nil {
		return fmt.Errorf("inference failed on frame %d: %w", frame.Index, err)
	}

	laneIDs := make([]string, len(objects))
	for i, obj := range objects {
		laneIDs[i] = p.cfg.Assigner.Assign(obj.Box)
	}

	now := p.clock.Now()
	events := p.cfg.Lifecycle.Update(frame.Index, now, objects, laneIDs)
	for _, ev := range events {
		p.cfg.Aggregator.Record(ev)
		monitoring.Logf("[pipeline] frame %d: counted track event %s lane=%s class=%s", frame.Index, ev.ID, ev.Lane, ev.Class)
		if p.cfg.Store != nil {
			if err := p.cfg.Store.RecordEvent(ev); err != nil {
				monitoring.Logf("[pipeline] frame %d: failed to persist event %s: %v", frame.Index, ev.ID, err)
			}
		}
	}

	snap := p.cfg.Aggregator.Snapshot(laneIDSet)

	var fpsValue float64
	if p.cfg.FPS != nil {
		fpsValue = p.cfg.FPS.Sample()
	}

	img := frame.Image
	if p.cfg.Annotator != nil {
		img = p.cfg.Annotator.Render(frame, objects, laneIDs, snap, fpsValue)
	}

	monitoring.Tracef("[pipeline] frame %d: %d objects, %d events, fps=%.2f", frame.Index, len(objects), len(events), fpsValue)

	res := &sink.Result{
		FrameIndex: frame.Index,
		CapturedAt: frame.CapturedAt,
		Image:      img,
		Objects:    objects,
		LaneIDs:    laneIDs,
		Events:     events,
		Stats:      snap,
		FPS:        fpsValue,
	}
	p.fanOut(res)
	return nil
}

// fanOut delivers one result to every sink. A sink that errors or panics
// is logged with its name and the frame index and the remaining sinks
// still receive the result; one misbehaving consumer never stalls the
// loop or its peers.
func (p *Pipeline) fanOut(res *sink.Result) {
	for _, s := range p.cfg.Sinks {
		p.deliver(s, res)
	}
}

// deliver sends one result to one sink with panic isolation.
func (p *Pipeline) deliver(s sink.Sink, res *sink.Result) {
	defer func() {
		if r := recover(); r != nil {
			monitoring.Logf("[pipeline] sink %s panicked on frame %d: %v", s.Name(), res.FrameIndex, r)
		}
	}()
	if err := s.Consume(res); err != nil {
		monitoring.Logf("[pipeline] sink %s failed on frame %d: %v", s.Name(), res.FrameIndex, err)
	}
}

// closeSinks closes every sink, logging failures.
func (p *Pipeline) closeSinks() {
	for _, s := range p.cfg.Sinks {
		if err := s.Close(); err != nil {
			monitoring.Logf("[pipeline] failed to close sink %s: %v", s.Name(), err)
		}
	}
}

// Frames returns the number of frames fully processed so far.
func (p *Pipeline) Frames() int64 { return p.frames }

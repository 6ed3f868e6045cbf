// Package sink defines the downstream consumers of processed frames.
// Each sink is an independent failure domain: the pipeline fans one
// result out to every enabled sink and absorbs any individual failure.
package sink

import (
	"image"
	"time"

	"github.com/lanewatch-data/lanewatch/internal/stats"
	"github.com/lanewatch-data/lanewatch/internal/video"
)

// Result is the per-frame pipeline output handed to sinks. It is built
// once per frame and treated as immutable from then on, so sinks running
// on their own goroutines can read it without coordination.
type Result struct {
	FrameIndex int64
	CapturedAt time.Time

	// Image is the annotated frame.
	Image *image.RGBA

	Objects []video.TrackedObject
	LaneIDs []string
	Events  []stats.Event
	Stats   stats.Snapshot
	FPS     float64
}

// Sink consumes per-frame results. Consume errors are contained at the
// fan-out boundary: a failing sink never stops the pipeline or starves
// its siblings.
type Sink interface {
	// Name identifies the sink in logs.
	Name() string

	// Consume delivers one frame result.
	Consume(res *Result) error

	// Close flushes and releases the sink's resources.
	Close() error
}

// Package video defines the frame and detection boundary types shared by
// the pipeline stages, plus reference FrameSource and DetectionTracker
// implementations for replay and development use.
package video

import (
	"context"
	"image"
	"math"
	"time"
)

// Frame is one decoded video frame. The orchestrator owns a frame for the
// duration of a single pipeline pass; it is released once every sink has
// consumed the annotated result.
type Frame struct {
	Image      *image.RGBA
	Index      int64
	CapturedAt time.Time
}

// BoundingBox is an axis-aligned box in pixel coordinates, (X1,Y1) the
// top-left corner and (X2,Y2) the bottom-right.
type BoundingBox struct {
	X1, Y1, X2, Y2 float64
}

// Center returns the geometric centre of the box.
func (b BoundingBox) Center() (x, y float64) {
	return (b.X1 + b.X2) / 2, (b.Y1 + b.Y2) / 2
}

// IsFinite reports whether all four coordinates are finite numbers.
func (b BoundingBox) IsFinite() bool {
	for _, v := range []float64{b.X1, b.Y1, b.X2, b.Y2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// HasArea reports whether the box is well-formed with positive area.
func (b BoundingBox) HasArea() bool {
	return b.X2 > b.X1 && b.Y2 > b.Y1
}

// InBounds reports whether the box lies within a width×height frame,
// allowing up to tolerance pixels of overhang on each side. Trackers
// routinely emit boxes that clip the frame edge by a pixel or two during
// entry and exit; those are fine. Boxes far outside the frame are not.
func (b BoundingBox) InBounds(width, height, tolerance float64) bool {
	return b.X1 >= -tolerance && b.Y1 >= -tolerance &&
		b.X2 <= width+tolerance && b.Y2 <= height+tolerance
}

// TrackedObject is one tracker output for one frame: a detection that has
// been associated with a persistent track identity. The track ID is
// assigned by the external tracker and is stable across frames for the
// same physical object.
type TrackedObject struct {
	TrackID    int64       `json:"track_id"`
	Box        BoundingBox `json:"box"`
	Class      string      `json:"class"`
	Confidence float64     `json:"confidence"`
}

// FrameSource produces an ordered sequence of frames. Next returns io.EOF
// once the stream is exhausted; file-backed sources are not restartable
// after that. Reconnect semantics for live sources are the source's own
// responsibility.
type FrameSource interface {
	// Next returns the next frame, or io.EOF at end of stream.
	Next() (*Frame, error)

	// Close releases any resources held by the source.
	Close() error
}

// DetectionTracker is the external detection+tracking model boundary. The
// pipeline treats it as a black box that turns a frame into tracked
// boxes; it implements no detection or association logic of its own.
type DetectionTracker interface {
	// Infer runs detection and tracking on one frame. The context
	// carries the caller's deadline; an error (including deadline
	// exceeded) is fatal to the pipeline.
	Infer(ctx context.Context, frame *Frame) ([]TrackedObject, error)
}

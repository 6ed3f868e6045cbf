package video

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/lanewatch-data/lanewatch/internal/timeutil"
)

// SliceSource replays a fixed set of frames from memory, in order, as
// they were given. Used by tests and replay tooling.
type SliceSource struct {
	frames []*Frame
	pos    int
}

// NewSliceSource creates a source over the given frames.
func NewSliceSource(frames []*Frame) *SliceSource {
	return &SliceSource{frames: frames}
}

// Next implements FrameSource.
func (s *SliceSource) Next() (*Frame, error) {
	if s.pos >= len(s.frames) {
		return nil, io.EOF
	}
	f := s.frames[s.pos]
	s.pos++
	return f, nil
}

// Close implements FrameSource.
func (s *SliceSource) Close() error { return nil }

// ImageDirSource reads frames from a directory of still images, in
// lexical filename order. JPEG and PNG are supported. Decode failures
// are fatal, not skipped: a corrupt frame in a replay directory means
// the capture is bad and the operator should know.
type ImageDirSource struct {
	paths []string
	pos   int
	clock timeutil.Clock
	idx   int64
}

// NewImageDirSource scans dir for image files and returns a source over
// them. An empty directory is an error.
func NewImageDirSource(dir string, clock timeutil.Clock) (*ImageDirSource, error) {
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(e.Name())) {
		case ".jpg", ".jpeg", ".png":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)

	if len(paths) == 0 {
		return nil, fmt.Errorf("no image files in %s", dir)
	}
	return &ImageDirSource{paths: paths, clock: clock}, nil
}

// Next implements FrameSource.
func (s *ImageDirSource) Next() (*Frame, error) {
	if s.pos >= len(s.paths) {
		return nil, io.EOF
	}
	path := s.paths[s.pos]
	s.pos++

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var img image.Image
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		img, err = png.Decode(f)
	default:
		img, err = jpeg.Decode(f)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	frame := &Frame{
		Image:      toRGBA(img),
		Index:      s.idx,
		CapturedAt: s.clock.Now(),
	}
	s.idx++
	return frame, nil
}

// Close implements FrameSource.
func (s *ImageDirSource) Close() error { return nil }

// toRGBA converts an image to RGBA, copying unless it already is one.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	b := img.Bounds()
	rgba := image.NewRGBA(b)
	draw.Draw(rgba, b, img, b.Min, draw.Src)
	return rgba
}

// SyntheticSource generates uniform grey frames at a fixed pace. It
// exists for development and load testing when no capture hardware or
// recording is at hand.
type SyntheticSource struct {
	width, height int
	count         int64
	pace          time.Duration
	clock         timeutil.Clock
	idx           int64
}

// NewSyntheticSource creates a source emitting count frames of the given
// size. pace, when positive, is slept between frames to mimic a camera
// frame rate. count <= 0 means unlimited.
func NewSyntheticSource(width, height int, count int64, pace time.Duration, clock timeutil.Clock) *SyntheticSource {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &SyntheticSource{
		width:  width,
		height: height,
		count:  count,
		pace:   pace,
		clock:  clock,
	}
}

// Next implements FrameSource.
func (s *SyntheticSource) Next() (*Frame, error) {
	if s.count > 0 && s.idx >= s.count {
		return nil, io.EOF
	}
	if s.pace > 0 && s.idx > 0 {
		s.clock.Sleep(s.pace)
	}

	img := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{R: 40, G: 40, B: 40, A: 255}}, image.Point{}, draw.Src)

	frame := &Frame{
		Image:      img,
		Index:      s.idx,
		CapturedAt: s.clock.Now(),
	}
	s.idx++
	return frame, nil
}

// Close implements FrameSource.
func (s *SyntheticSource) Close() error { return nil }

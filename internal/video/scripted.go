package video

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// scriptLine is one line of a detection script: the tracker output for a
// single frame.
type scriptLine struct {
	FrameIndex int64           `json:"frame_index"`
	Objects    []TrackedObject `json:"objects"`
}

// ScriptedTracker replays pre-recorded tracker output keyed by frame
// index. Frames with no script line get an empty detection set, which is
// what a real tracker returns on an empty road. Replaying a recorded
// script against a recorded frame log reproduces a run exactly.
type ScriptedTracker struct {
	byFrame map[int64][]TrackedObject
}

// NewScriptedTracker builds a tracker from an in-memory detection map.
func NewScriptedTracker(byFrame map[int64][]TrackedObject) *ScriptedTracker {
	if byFrame == nil {
		byFrame = make(map[int64][]TrackedObject)
	}
	return &ScriptedTracker{byFrame: byFrame}
}

// LoadScriptedTracker reads a detection script from a JSONL file, one
// frame's worth of objects per line. Duplicate frame indices are an
// error; a script is a recording, and recordings do not repeat frames.
func LoadScriptedTracker(path string) (*ScriptedTracker, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open detection script: %w", err)
	}
	defer f.Close()

	byFrame := make(map[int64][]TrackedObject)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var line scriptLine
		if err := json.Unmarshal(raw, &line); err != nil {
			return nil, fmt.Errorf("bad script line %d: %w", lineNo, err)
		}
		if _, dup := byFrame[line.FrameIndex]; dup {
			return nil, fmt.Errorf("bad script line %d: duplicate frame index %d", lineNo, line.FrameIndex)
		}
		byFrame[line.FrameIndex] = line.Objects
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read detection script: %w", err)
	}
	return &ScriptedTracker{byFrame: byFrame}, nil
}

// Infer implements DetectionTracker.
func (t *ScriptedTracker) Infer(_ context.Context, frame *Frame) ([]TrackedObject, error) {
	return t.byFrame[frame.Index], nil
}

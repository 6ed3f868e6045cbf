package sink

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image/jpeg"
	"net/http"
	"sync"

	"github.com/lanewatch-data/lanewatch/internal/monitoring"
	"github.com/lanewatch-data/lanewatch/internal/stats"
)

// Web serves the latest annotated frame and statistics over HTTP: an
// MJPEG stream for live viewing, a still JPEG, a JSON statistics
// endpoint, and a chart dashboard. It holds only the most recent frame:
// staleness is tolerated, delivery of every frame is not a goal.
type Web struct {
	quality int

	mu       sync.RWMutex
	latest   []byte // latest frame as JPEG
	snapshot stats.Snapshot
	frameIdx int64

	// subscribers receive a nudge when a new frame lands. Buffered with
	// capacity 1 and written with drop-on-full so a slow HTTP client
	// never backs up the sink.
	subMu       sync.Mutex
	subscribers map[chan struct{}]bool
}

// NewWeb creates a web streaming sink.
func NewWeb(jpegQuality int) *Web {
	if jpegQuality <= 0 || jpegQuality > 100 {
		jpegQuality = 75
	}
	return &Web{
		quality:     jpegQuality,
		subscribers: make(map[chan struct{}]bool),
	}
}

// Name implements Sink.
func (w *Web) Name() string { return "web" }

// Consume encodes the frame and publishes it as the latest.
func (w *Web) Consume(res *Result) error {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, res.Image, &jpeg.Options{Quality: w.quality}); err != nil {
		return fmt.Errorf("failed to encode frame %d: %w", res.FrameIndex, err)
	}

	w.mu.Lock()
	w.latest = buf.Bytes()
	w.snapshot = res.Stats
	w.frameIdx = res.FrameIndex
	w.mu.Unlock()

	w.subMu.Lock()
	for ch := range w.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	w.subMu.Unlock()
	return nil
}

// Close implements Sink.
func (w *Web) Close() error { return nil }

// Register attaches the sink's HTTP handlers to a mux.
func (w *Web) Register(mux *http.ServeMux) {
	mux.HandleFunc("/frame.jpg", w.handleFrame)
	mux.HandleFunc("/stream.mjpeg", w.handleStream)
	mux.HandleFunc("/api/stats", w.handleStats)
	mux.HandleFunc("/charts/lanes", w.handleLaneChart)
}

// handleFrame serves the latest frame as a still JPEG.
func (w *Web) handleFrame(rw http.ResponseWriter, r *http.Request) {
	w.mu.RLock()
	frame := w.latest
	w.mu.RUnlock()

	if frame == nil {
		http.Error(rw, "no frame yet", http.StatusServiceUnavailable)
		return
	}
	rw.Header().Set("Content-Type", "image/jpeg")
	rw.Header().Set("Cache-Control", "no-store")
	rw.Write(frame)
}

// handleStream serves a multipart MJPEG stream of the latest frames.
// Clients that fall behind simply skip frames.
func (w *Web) handleStream(rw http.ResponseWriter, r *http.Request) {
	flusher, ok := rw.(http.Flusher)
	if !ok {
		http.Error(rw, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	const boundary = "lanewatchframe"
	rw.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+boundary)

	nudge := make(chan struct{}, 1)
	w.subMu.Lock()
	w.subscribers[nudge] = true
	w.subMu.Unlock()
	defer func() {
		w.subMu.Lock()
		delete(w.subscribers, nudge)
		w.subMu.Unlock()
	}()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-nudge:
		}

		w.mu.RLock()
		frame := w.latest
		w.mu.RUnlock()
		if frame == nil {
			continue
		}

		if _, err := fmt.Fprintf(rw, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", boundary, len(frame)); err != nil {
			return
		}
		if _, err := rw.Write(frame); err != nil {
			return
		}
		if _, err := fmt.Fprint(rw, "\r\n"); err != nil {
			return
		}
		flusher.Flush()
	}
}

// handleStats serves the latest statistics snapshot as JSON.
func (w *Web) handleStats(rw http.ResponseWriter, r *http.Request) {
	w.mu.RLock()
	snap := w.snapshot
	idx := w.frameIdx
	w.mu.RUnlock()

	rw.Header().Set("Content-Type", "application/json")
	payload := struct {
		FrameIndex int64 `json:"frame_index"`
		stats.Snapshot
	}{FrameIndex: idx, Snapshot: snap}
	if err := json.NewEncoder(rw).Encode(payload); err != nil {
		monitoring.Logf("[web] failed to encode stats response: %v", err)
	}
}

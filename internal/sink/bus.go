package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/lanewatch-data/lanewatch/internal/monitoring"
	"github.com/lanewatch-data/lanewatch/internal/stats"
)

// BusPayload is the statistics message published to the bus. Per-lane
// windowed figures are null until the aggregator has warmed up, so
// downstream consumers can tell "no traffic" apart from "not measuring
// yet".
type BusPayload struct {
	CameraID    string             `json:"camera_id"`
	Timestamp   int64              `json:"timestamp_ns"`
	FrameIndex  int64              `json:"frame_index"`
	Total       int64              `json:"total"`
	Lanes       []stats.LaneCounts `json:"lanes"`
	ActiveFPS   float64            `json:"fps"`
	TrackCounts int                `json:"tracked_objects"`
}

// Bus publishes statistics snapshots as JSON datagrams over UDP through a
// bounded channel and a dedicated forwarding goroutine. The frame loop
// only ever touches the channel; socket stalls and send errors stay on
// the forwarding side, where they are counted and logged at an interval
// rather than per packet.
type Bus struct {
	conn        *net.UDPConn
	channel     chan []byte
	address     string
	cameraID    string
	interval    time.Duration
	logInterval time.Duration

	lastSend time.Time
	dropped  int64
}

// NewBus creates a bus publisher targeting addr:port. interval throttles
// how often snapshots are published; frames in between are skipped.
func NewBus(addr string, port int, cameraID string, interval time.Duration) (*Bus, error) {
	target := fmt.Sprintf("%s:%d", addr, port)
	udpAddr, err := net.ResolveUDPAddr("udp", target)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve bus address: %w", err)
	}

	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to bus: %w", err)
	}

	return &Bus{
		conn:        conn,
		channel:     make(chan []byte, 256),
		address:     target,
		cameraID:    cameraID,
		interval:    interval,
		logInterval: 30 * time.Second,
	}, nil
}

// Start begins the forwarding goroutine. It drains the channel until the
// context is cancelled, logging accumulated send failures at the log
// interval.
func (b *Bus) Start(ctx context.Context) {
	go func() {
		sendErrors := 0
		var lastErr error
		ticker := time.NewTicker(b.logInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case payload, ok := <-b.channel:
				if !ok {
					return
				}
				if _, err := b.conn.Write(payload); err != nil {
					sendErrors++
					lastErr = err
				}
			case <-ticker.C:
				if sendErrors > 0 {
					monitoring.Logf("[bus] %d failed publishes to %s (latest: %v)", sendErrors, b.address, lastErr)
					sendErrors = 0
					lastErr = nil
				}
			}
		}
	}()

	monitoring.Logf("[bus] publishing statistics to %s every %s", b.address, b.interval)
}

// Name implements Sink.
func (b *Bus) Name() string { return "bus" }

// Consume publishes a statistics payload if the publish interval has
// elapsed. Enqueueing is bounded: when the forwarding goroutine cannot
// keep up, the payload is dropped rather than blocking the caller.
// Counts are resent on the next interval anyway.
func (b *Bus) Consume(res *Result) error {
	if b.interval > 0 && !b.lastSend.IsZero() && res.CapturedAt.Sub(b.lastSend) < b.interval {
		return nil
	}
	b.lastSend = res.CapturedAt

	payload := BusPayload{
		CameraID:    b.cameraID,
		Timestamp:   res.CapturedAt.UnixNano(),
		FrameIndex:  res.FrameIndex,
		Total:       res.Stats.Total,
		Lanes:       res.Stats.Lanes,
		ActiveFPS:   res.FPS,
		TrackCounts: len(res.Objects),
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal bus payload: %w", err)
	}

	select {
	case b.channel <- data:
		return nil
	default:
		b.dropped++
		return fmt.Errorf("bus queue full, dropped payload for frame %d (%d dropped total)", res.FrameIndex, b.dropped)
	}
}

// Close closes the socket. The forwarding goroutine exits via context
// cancellation.
func (b *Bus) Close() error {
	return b.conn.Close()
}

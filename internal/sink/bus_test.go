package sink

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanewatch-data/lanewatch/internal/stats"
)

// udpListener binds an ephemeral UDP port and returns the listener plus
// its port.
func udpListener(t *testing.T) (*net.UDPConn, int) {
	t.Helper()
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, conn.LocalAddr().(*net.UDPAddr).Port
}

func TestBus_PublishesPayload(t *testing.T) {
	t.Parallel()

	listener, port := udpListener(t)

	bus, err := NewBus("127.0.0.1", port, "cam1", 0)
	require.NoError(t, err)
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus.Start(ctx)

	res := testResult(7)
	res.FPS = 29.97
	res.Stats = stats.Snapshot{Total: 3, Lanes: []stats.LaneCounts{{Lane: "north", Cumulative: 3}}}
	require.NoError(t, bus.Consume(res))

	listener.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 64*1024)
	n, _, err := listener.ReadFromUDP(buf)
	require.NoError(t, err)

	var payload BusPayload
	require.NoError(t, json.Unmarshal(buf[:n], &payload))
	assert.Equal(t, "cam1", payload.CameraID)
	assert.Equal(t, int64(7), payload.FrameIndex)
	assert.Equal(t, int64(3), payload.Total)
	assert.Equal(t, 29.97, payload.ActiveFPS)
	require.Len(t, payload.Lanes, 1)
	assert.Equal(t, "north", payload.Lanes[0].Lane)
}

func TestBus_ThrottlesByInterval(t *testing.T) {
	t.Parallel()

	_, port := udpListener(t)

	bus, err := NewBus("127.0.0.1", port, "cam1", time.Second)
	require.NoError(t, err)
	defer bus.Close()

	base := time.Unix(10000, 0)
	first := testResult(0)
	first.CapturedAt = base
	require.NoError(t, bus.Consume(first))

	// Within the interval nothing is enqueued.
	queuedBefore := len(bus.channel)
	tooSoon := testResult(1)
	tooSoon.CapturedAt = base.Add(200 * time.Millisecond)
	require.NoError(t, bus.Consume(tooSoon))
	assert.Equal(t, queuedBefore, len(bus.channel))

	// Past the interval the next payload goes out.
	later := testResult(2)
	later.CapturedAt = base.Add(1100 * time.Millisecond)
	require.NoError(t, bus.Consume(later))
	assert.Equal(t, queuedBefore+1, len(bus.channel))
}

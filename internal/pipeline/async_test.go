package pipeline

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanewatch-data/lanewatch/internal/sink"
)

// slowSink blocks on a gate until released, then records results.
type slowSink struct {
	mu      sync.Mutex
	gate    chan struct{}
	results []int64
}

func newSlowSink() *slowSink {
	return &slowSink{gate: make(chan struct{})}
}

func (s *slowSink) Name() string { return "slow" }

func (s *slowSink) Consume(r *sink.Result) error {
	<-s.gate
	s.mu.Lock()
	s.results = append(s.results, r.FrameIndex)
	s.mu.Unlock()
	return nil
}

func (s *slowSink) Close() error { return nil }

func (s *slowSink) seen() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.results...)
}

func TestAsyncSink_DeliversInOrder(t *testing.T) {
	t.Parallel()

	inner := &collectSink{}
	a := NewAsyncSink(inner, 16, Block)

	for i := int64(0); i < 10; i++ {
		require.NoError(t, a.Consume(&sink.Result{FrameIndex: i}))
	}
	require.NoError(t, a.Close())

	require.Len(t, inner.results, 10)
	for i, res := range inner.results {
		assert.Equal(t, int64(i), res.FrameIndex)
	}
}

func TestAsyncSink_DropOldestUnderLoad(t *testing.T) {
	t.Parallel()

	slow := newSlowSink()
	a := NewAsyncSink(slow, 2, DropOldest)

	// The worker picks up the first result and blocks on the gate; the
	// queue then overflows and old entries are shed.
	for i := int64(0); i < 20; i++ {
		require.NoError(t, a.Consume(&sink.Result{FrameIndex: i}))
	}

	// Wait until the worker is parked on the gate with a full queue.
	deadline := time.Now().Add(2 * time.Second)
	for len(a.queue) < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	close(slow.gate)
	require.NoError(t, a.Close())

	assert.Greater(t, a.Dropped(), int64(0), "overflow must shed old results")
	seen := slow.seen()
	assert.NotEmpty(t, seen)
	// Whatever survived arrives in order.
	for i := 1; i < len(seen); i++ {
		assert.Less(t, seen[i-1], seen[i])
	}
}

func TestAsyncSink_ConsumeAfterClose(t *testing.T) {
	t.Parallel()

	a := NewAsyncSink(&collectSink{}, 4, Block)
	require.NoError(t, a.Close())
	assert.Error(t, a.Consume(&sink.Result{}))

	// Close is idempotent.
	assert.NoError(t, a.Close())
}

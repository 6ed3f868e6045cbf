package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/lanewatch-data/lanewatch/internal/monitoring"
	"github.com/lanewatch-data/lanewatch/internal/sink"
)

// OverflowPolicy selects what an AsyncSink does when its queue is full.
type OverflowPolicy int

const (
	// DropOldest discards the oldest queued result to make room. Right
	// for live viewers, where only the newest frame matters.
	DropOldest OverflowPolicy = iota
	// Block waits up to blockTimeout for the worker to drain the queue,
	// then drops with an error. Right for the disk recorder, where losing
	// frames is worse than brief backpressure, but the frame loop must
	// never stall indefinitely on one consumer.
	Block
)

// blockTimeout bounds how long a Block-policy enqueue may wait.
const blockTimeout = 5 * time.Second

// AsyncSink decouples a slow sink from the frame loop with a bounded
// queue and a single worker goroutine. The loop pays only the cost of an
// enqueue; encoding and I/O happen on the worker.
type AsyncSink struct {
	inner  sink.Sink
	policy OverflowPolicy

	mu      sync.Mutex
	queue   chan *sink.Result
	done    chan struct{}
	closed  bool
	dropped int64
}

// NewAsyncSink wraps inner with a queue of the given depth.
func NewAsyncSink(inner sink.Sink, depth int, policy OverflowPolicy) *AsyncSink {
	if depth < 1 {
		depth = 1
	}
	a := &AsyncSink{
		inner:  inner,
		policy: policy,
		queue:  make(chan *sink.Result, depth),
		done:   make(chan struct{}),
	}
	go a.worker()
	return a
}

// Name implements Sink.
func (a *AsyncSink) Name() string { return a.inner.Name() }

// Consume enqueues the result for the worker. Under DropOldest a full
// queue sheds its oldest entry; under Block the call waits for space up
// to the block timeout and then drops with an error.
func (a *AsyncSink) Consume(res *sink.Result) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return fmt.Errorf("sink %s is closed", a.inner.Name())
	}

	if a.policy == Block {
		select {
		case a.queue <- res:
			return nil
		default:
		}
		timer := time.NewTimer(blockTimeout)
		defer timer.Stop()
		select {
		case a.queue <- res:
			return nil
		case <-timer.C:
			a.dropped++
			return fmt.Errorf("sink %s queue full for %s, dropped frame %d", a.inner.Name(), blockTimeout, res.FrameIndex)
		}
	}

	for {
		select {
		case a.queue <- res:
			return nil
		default:
		}
		select {
		case <-a.queue:
			a.dropped++
		default:
		}
	}
}

// worker drains the queue into the inner sink until Close.
func (a *AsyncSink) worker() {
	defer close(a.done)
	for res := range a.queue {
		if err := a.inner.Consume(res); err != nil {
			monitoring.Logf("[pipeline] sink %s failed on frame %d: %v", a.inner.Name(), res.FrameIndex, err)
		}
	}
}

// Close drains the queue, stops the worker, and closes the inner sink.
func (a *AsyncSink) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()

	<-a.done
	if a.dropped > 0 {
		monitoring.Logf("[pipeline] sink %s dropped %d results under load", a.inner.Name(), a.dropped)
	}
	return a.inner.Close()
}

// Dropped returns how many results were shed under the DropOldest policy.
func (a *AsyncSink) Dropped() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dropped
}

// Package ringchan provides a bounded, overwrite-oldest channel used to fan events out to
// consumers that may fall behind.
package ringchan

import (
	"sync"
	"sync/atomic"
)

// RingChannel is a bounded channel with overwrite-oldest semantics.
//
// Producers never block: when the buffer is full the oldest element is discarded.
// Consumers read from C() like any other channel. Close is safe to call concurrently
// with Send and more than once; sends after Close are dropped.
type RingChannel[T any] struct {
	mu     sync.Mutex
	ch     chan T
	closed bool

	sent    atomic.Int64
	dropped atomic.Int64
}

// New creates a RingChannel with the given capacity.
func New[T any](capacity int) *RingChannel[T] {
	if capacity <= 0 {
		panic("ringchan: capacity must be > 0")
	}
	return &RingChannel[T]{ch: make(chan T, capacity)}
}

// C returns the receive side. It is closed by Close.
func (rc *RingChannel[T]) C() <-chan T {
	return rc.ch
}

// Send enqueues v, discarding the oldest buffered element if the buffer is full.
// It reports whether an element was discarded. Sends on a closed channel are ignored.
func (rc *RingChannel[T]) Send(v T) (overwrote bool) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	if rc.closed {
		return false
	}

	for {
		select {
		case rc.ch <- v:
			rc.sent.Add(1)
			return overwrote
		default:
		}

		// the consumer may drain concurrently, so the drop is non-blocking too
		select {
		case <-rc.ch:
			rc.dropped.Add(1)
			overwrote = true
		default:
		}
	}
}

// Close closes the receive side. Buffered elements stay readable.
func (rc *RingChannel[T]) Close() {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	if rc.closed {
		return
	}
	rc.closed = true
	close(rc.ch)
}

// Closed reports whether Close has been called.
func (rc *RingChannel[T]) Closed() bool {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return rc.closed
}

func (rc *RingChannel[T]) Len() int { return len(rc.ch) }
func (rc *RingChannel[T]) Cap() int { return cap(rc.ch) }

// Stats is a snapshot of the channel counters.
type Stats struct {
	Sent    int64
	Dropped int64
}

func (rc *RingChannel[T]) Stats() Stats {
	return Stats{
		Sent:    rc.sent.Load(),
		Dropped: rc.dropped.Load(),
	}
}

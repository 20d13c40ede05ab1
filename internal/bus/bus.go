// Package bus implements the bounded multi-producer multi-consumer
// broadcast primitives used by the session server: a control bus carrying
// typed wire.ServerMessage values and an audio bus carrying opaque byte
// chunks. Grounded on the per-peer buffered Send channel pattern in
// bken's ws handler.go/channel_state.go, generalized from one-channel-per-
// user fan-out to an explicit ring-buffer-with-cursor broadcast since the
// pack carries no third-party bounded mpmc pub/sub library for this shape.
package bus

import "sync"

// Broadcast is a bounded ring buffer of published values with per-subscriber
// read cursors. A subscriber that falls more than capacity messages behind
// the newest publish skips ahead to the oldest value still held, and Next
// reports the skip (the lag policy described for both buses).
type Broadcast[T any] struct {
	mu       sync.Mutex
	cond     *sync.Cond
	buf      []T
	capacity int
	next     uint64 // sequence number of the next slot to be written
	closed   bool
}

// NewBroadcast constructs a Broadcast with the given bounded capacity.
func NewBroadcast[T any](capacity int) *Broadcast[T] {
	if capacity <= 0 {
		capacity = 1
	}
	b := &Broadcast[T]{buf: make([]T, capacity), capacity: capacity}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Publish appends one value, overwriting the oldest slot once the buffer is
// full. Never blocks.
func (b *Broadcast[T]) Publish(v T) {
	b.mu.Lock()
	b.buf[b.next%uint64(b.capacity)] = v
	b.next++
	b.mu.Unlock()
	b.cond.Broadcast()
}

// Close wakes every blocked subscriber; subsequent Next calls return
// ok=false once the backlog is drained.
func (b *Broadcast[T]) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.cond.Broadcast()
}

// Subscription is one reader's cursor into a Broadcast.
type Subscription[T any] struct {
	b      *Broadcast[T]
	cursor uint64
	closed bool
}

// Subscribe returns a Subscription positioned at "now": it will only ever
// observe messages published after this call, matching the per-session
// "receives every message published after it subscribes" contract.
func (b *Broadcast[T]) Subscribe() *Subscription[T] {
	b.mu.Lock()
	defer b.mu.Unlock()
	return &Subscription[T]{b: b, cursor: b.next}
}

// Close unsubscribes s: a Next call already blocked wakes immediately with
// ok=false, instead of waiting for the next Publish or a whole-bus Close.
// Every per-session subscription must be closed on teardown, or its reader
// goroutine leaks until something else happens to publish. Safe to call
// more than once.
func (s *Subscription[T]) Close() {
	b := s.b
	b.mu.Lock()
	s.closed = true
	b.mu.Unlock()
	b.cond.Broadcast()
}

// Next blocks until a value is available, the subscription has fallen
// behind and must skip forward, the subscription is closed, or the bus is
// closed and drained. The skipped bool reports whether the cursor had to
// jump ahead because the ring buffer overwrote unread entries (the lag
// policy).
func (s *Subscription[T]) Next() (v T, skipped bool, ok bool) {
	b := s.b
	b.mu.Lock()
	defer b.mu.Unlock()

	for s.cursor == b.next && !b.closed && !s.closed {
		b.cond.Wait()
	}
	if s.closed || (s.cursor == b.next && b.closed) {
		var zero T
		return zero, false, false
	}

	var oldest uint64
	if b.next > uint64(b.capacity) {
		oldest = b.next - uint64(b.capacity)
	}
	if s.cursor < oldest {
		skipped = true
		s.cursor = oldest
	}

	v = b.buf[s.cursor%uint64(b.capacity)]
	s.cursor++
	return v, skipped, true
}

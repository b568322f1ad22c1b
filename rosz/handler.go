package rosz

import "sync"

// Handler provides a unified interface for callback and channel-based message handling.
// Implementations can use direct callbacks (Closure) or channels (FifoChannel, RingChannel).
type Handler[T any] interface {
	// ToCbDropHandler returns the callback function, optional drop function, and receive channel.
	// For callback-based handlers, the channel is nil.
	// For channel-based handlers, the callback sends to the channel.
	ToCbDropHandler() (callback func(T), drop func(), receiver <-chan T)
}

// Closure wraps a direct callback function for message handling.
type Closure[T any] struct {
	call func(T)
	drop func()
}

// ToCbDropHandler returns the callback and drop functions with no channel.
func (c *Closure[T]) ToCbDropHandler() (func(T), func(), <-chan T) {
	return c.call, c.drop, nil
}

// NewClosure creates a callback-based handler.
func NewClosure[T any](call func(T), drop func()) *Closure[T] {
	return &Closure[T]{call: call, drop: drop}
}

// chanState guards a handler channel against sends after drop. Senders hold
// the read lock; drop wakes blocked senders, then closes under the write lock.
type chanState[T any] struct {
	channel chan T
	mu      sync.RWMutex
	done    chan struct{}
	closed  bool
	once    sync.Once
}

func (s *chanState[T]) init(size int) {
	s.channel = make(chan T, size)
	s.done = make(chan struct{})
}

func (s *chanState[T]) drop() {
	s.once.Do(func() {
		close(s.done)
		s.mu.Lock()
		s.closed = true
		close(s.channel)
		s.mu.Unlock()
	})
}

// FifoChannel delivers messages to a buffered channel.
// When the channel is full, the callback blocks until space is available or
// the handler is dropped.
type FifoChannel[T any] struct {
	state chanState[T]
}

// ToCbDropHandler returns a callback that sends to the channel.
func (f *FifoChannel[T]) ToCbDropHandler() (func(T), func(), <-chan T) {
	s := &f.state
	callback := func(msg T) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		if s.closed {
			return
		}
		select {
		case s.channel <- msg:
		case <-s.done:
		}
	}
	return callback, s.drop, s.channel
}

// NewFifoChannel creates a channel-based handler with the specified buffer size.
// A buffer size of 0 creates an unbuffered channel (synchronous).
func NewFifoChannel[T any](bufferSize int) *FifoChannel[T] {
	f := &FifoChannel[T]{}
	f.state.init(bufferSize)
	return f
}

// RingChannel delivers messages to a channel with ring buffer semantics.
// When the channel is full, the oldest message is dropped to make room for the new one.
type RingChannel[T any] struct {
	state chanState[T]
}

// ToCbDropHandler returns a callback that sends to the channel with ring buffer behavior.
func (r *RingChannel[T]) ToCbDropHandler() (func(T), func(), <-chan T) {
	s := &r.state
	callback := func(msg T) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.closed {
			return
		}
		for {
			select {
			case s.channel <- msg:
				return
			default:
			}
			// Full: evict the oldest unless a reader got there first.
			select {
			case <-s.channel:
			default:
			}
		}
	}
	return callback, s.drop, s.channel
}

// NewRingChannel creates a ring buffer channel handler with the specified capacity.
// The capacity must be greater than 0.
func NewRingChannel[T any](capacity int) *RingChannel[T] {
	if capacity <= 0 {
		panic("ring channel capacity must be > 0")
	}
	r := &RingChannel[T]{}
	r.state.init(capacity)
	return r
}

package broadcast

import (
	"context"
	"sync"
)

// Message wraps data of type T published on a topic.
type Message[T any] struct {
	Topic string `json:"topic"`
	Data  T      `json:"data"`
}

// Subscriber receives messages for a single topic.
// Implementations must be safe for concurrent use.
type Subscriber[T any] interface {
	// Receive returns the channel messages are delivered on. It is closed
	// when the subscriber is closed.
	Receive() <-chan Message[T]

	// Close releases the subscription. It is idempotent.
	Close() error
}

// Broadcaster fans messages out to the subscribers of a topic.
// Slow consumers lose messages rather than blocking publishers.
type Broadcaster[T any] interface {
	// Subscribe registers a subscriber for topic. The subscription is
	// released when ctx is cancelled.
	Subscribe(ctx context.Context, topic string) (Subscriber[T], error)

	// Publish delivers data to every current subscriber of topic.
	Publish(ctx context.Context, topic string, data T) error

	// Close shuts the broadcaster down and closes all subscribers.
	Close() error
}

type subscriber[T any] struct {
	ch      chan Message[T]
	done    chan struct{}
	closed  bool
	onClose func()
	mu      sync.RWMutex
}

func newSubscriber[T any](bufferSize int) *subscriber[T] {
	return &subscriber[T]{
		ch:   make(chan Message[T], bufferSize),
		done: make(chan struct{}),
	}
}

func (s *subscriber[T]) Receive() <-chan Message[T] {
	return s.ch
}

func (s *subscriber[T]) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	close(s.ch)
	close(s.done)
	s.closed = true
	onClose := s.onClose
	s.mu.Unlock()

	if onClose != nil {
		onClose()
	}
	return nil
}

// send is non-blocking and reports whether the message was queued.
func (s *subscriber[T]) send(msg Message[T]) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false
	}

	select {
	case s.ch <- msg:
		return true
	default:
		return false
	}
}

package broadcast

import (
	"context"
	"sync"
)

// MemoryBroadcaster is an in-process Broadcaster. Messages for a subscriber
// whose buffer is full are dropped.
type MemoryBroadcaster[T any] struct {
	topics     map[string]map[*subscriber[T]]struct{}
	bufferSize int
	closed     bool
	mu         sync.RWMutex
	cleanupWg  sync.WaitGroup
}

// NewMemoryBroadcaster creates an in-memory broadcaster with the given
// per-subscriber buffer size (minimum 1).
func NewMemoryBroadcaster[T any](bufferSize int) *MemoryBroadcaster[T] {
	return &MemoryBroadcaster[T]{
		topics:     make(map[string]map[*subscriber[T]]struct{}),
		bufferSize: max(bufferSize, 1),
	}
}

// Subscribe registers a subscriber on topic. It is removed when ctx is done
// or Close is called on it.
func (b *MemoryBroadcaster[T]) Subscribe(ctx context.Context, topic string) (Subscriber[T], error) {
	if topic == "" {
		return nil, ErrEmptyTopic
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBroadcasterClosed
	}

	sub := newSubscriber[T](b.bufferSize)
	if b.topics[topic] == nil {
		b.topics[topic] = make(map[*subscriber[T]]struct{})
	}
	b.topics[topic][sub] = struct{}{}
	sub.onClose = func() { b.remove(topic, sub) }

	if ctx.Done() != nil {
		b.cleanupWg.Add(1)
		go func() {
			defer b.cleanupWg.Done()
			select {
			case <-ctx.Done():
				_ = sub.Close()
			case <-sub.done:
			}
		}()
	}

	return sub, nil
}

// Publish delivers data to every subscriber of topic. Subscribers with a full
// buffer miss the message.
func (b *MemoryBroadcaster[T]) Publish(ctx context.Context, topic string, data T) error {
	if topic == "" {
		return ErrEmptyTopic
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBroadcasterClosed
	}

	msg := Message[T]{Topic: topic, Data: data}
	for sub := range b.topics[topic] {
		sub.send(msg)
	}
	return nil
}

// SubscriberCount returns the number of live subscribers on topic.
func (b *MemoryBroadcaster[T]) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

// Close closes every subscriber. Later Subscribe and Publish calls fail.
func (b *MemoryBroadcaster[T]) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true

	var subs []*subscriber[T]
	for _, set := range b.topics {
		for sub := range set {
			subs = append(subs, sub)
		}
	}
	clear(b.topics)
	b.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Close()
	}

	b.cleanupWg.Wait()
	return nil
}

func (b *MemoryBroadcaster[T]) remove(topic string, sub *subscriber[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()

	set, ok := b.topics[topic]
	if !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(b.topics, topic)
	}
}

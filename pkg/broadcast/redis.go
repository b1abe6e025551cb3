package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisBroadcaster publishes messages over Redis pub/sub so that subscribers
// in any process sharing the Redis instance receive them.
type RedisBroadcaster[T any] struct {
	client     redis.UniversalClient
	prefix     string
	bufferSize int
	logger     *slog.Logger

	mu     sync.Mutex
	subs   map[*subscriber[T]]*redis.PubSub
	closed bool
	wg     sync.WaitGroup
}

// RedisOption configures a RedisBroadcaster.
type RedisOption func(*redisOptions)

type redisOptions struct {
	prefix     string
	bufferSize int
	logger     *slog.Logger
}

// WithChannelPrefix namespaces Redis channel names. Default "notifykit:".
func WithChannelPrefix(prefix string) RedisOption {
	return func(o *redisOptions) { o.prefix = prefix }
}

// WithBufferSize sets the per-subscriber buffer. Default 16.
func WithBufferSize(size int) RedisOption {
	return func(o *redisOptions) { o.bufferSize = max(size, 1) }
}

// WithLogger sets the logger used for decode failures.
func WithLogger(l *slog.Logger) RedisOption {
	return func(o *redisOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewRedisBroadcaster creates a broadcaster backed by client.
func NewRedisBroadcaster[T any](client redis.UniversalClient, opts ...RedisOption) *RedisBroadcaster[T] {
	o := &redisOptions{
		prefix:     "notifykit:",
		bufferSize: 16,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}

	return &RedisBroadcaster[T]{
		client:     client,
		prefix:     o.prefix,
		bufferSize: o.bufferSize,
		logger:     o.logger,
		subs:       make(map[*subscriber[T]]*redis.PubSub),
	}
}

// Subscribe opens a Redis subscription on the prefixed topic and pumps
// decoded messages into the returned subscriber.
func (b *RedisBroadcaster[T]) Subscribe(ctx context.Context, topic string) (Subscriber[T], error) {
	if topic == "" {
		return nil, ErrEmptyTopic
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrBroadcasterClosed
	}

	ps := b.client.Subscribe(ctx, b.prefix+topic)
	// Wait for the subscription confirmation so no publish is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, errors.Join(ErrSubscribeFailed, err)
	}

	sub := newSubscriber[T](b.bufferSize)
	b.subs[sub] = ps
	sub.onClose = func() { b.release(sub) }

	b.wg.Add(1)
	go b.pump(ctx, topic, ps, sub)

	return sub, nil
}

func (b *RedisBroadcaster[T]) pump(ctx context.Context, topic string, ps *redis.PubSub, sub *subscriber[T]) {
	defer b.wg.Done()
	defer sub.Close()

	ch := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-ch:
			if !ok {
				return
			}
			var data T
			if err := json.Unmarshal([]byte(raw.Payload), &data); err != nil {
				b.logger.LogAttrs(ctx, slog.LevelWarn, "dropping undecodable broadcast message",
					slog.String("topic", topic),
					slog.Any("error", err),
				)
				continue
			}
			sub.send(Message[T]{Topic: topic, Data: data})
		}
	}
}

// Publish JSON-encodes data and publishes it on the prefixed topic.
func (b *RedisBroadcaster[T]) Publish(ctx context.Context, topic string, data T) error {
	if topic == "" {
		return ErrEmptyTopic
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return errors.Join(ErrPublishFailed, err)
	}

	if err := b.client.Publish(ctx, b.prefix+topic, payload).Err(); err != nil {
		return errors.Join(ErrPublishFailed, err)
	}
	return nil
}

// Close closes every open subscription. The Redis client is left open.
func (b *RedisBroadcaster[T]) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true

	var errs []error
	for _, ps := range b.subs {
		if err := ps.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	clear(b.subs)
	b.mu.Unlock()

	b.wg.Wait()
	return errors.Join(errs...)
}

func (b *RedisBroadcaster[T]) release(sub *subscriber[T]) {
	b.mu.Lock()
	ps, ok := b.subs[sub]
	delete(b.subs, sub)
	b.mu.Unlock()

	if ok {
		_ = ps.Close()
	}
}

package notifications

import (
	"context"
	"fmt"
)

// Message is what a backend sends: the stored notification, its recipient
// and the title/body rendered for the backend's channel.
type Message struct {
	Notification Notification
	User         User
	Title        string
	Body         string
}

// Backend delivers messages over one channel. Transport failures are
// returned as errors.
type Backend interface {
	Channel() Channel
	Send(ctx context.Context, msg Message) error
}

// BackendFunc adapts a function to Backend.
type BackendFunc struct {
	Ch Channel
	Fn func(ctx context.Context, msg Message) error
}

// Channel returns Ch.
func (b BackendFunc) Channel() Channel { return b.Ch }

// Send calls Fn.
func (b BackendFunc) Send(ctx context.Context, msg Message) error { return b.Fn(ctx, msg) }

// Backends is the channel capability table. It is built once and covers
// every channel exactly once.
type Backends struct {
	table [numChannels]Backend
}

// NewBackends validates that every channel has exactly one backend.
func NewBackends(backends ...Backend) (*Backends, error) {
	b := &Backends{}
	for _, backend := range backends {
		if backend == nil {
			return nil, fmt.Errorf("%w: nil backend", ErrMissingDependency)
		}
		ch := backend.Channel()
		i := ch.index()
		if i < 0 {
			return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, ch)
		}
		if b.table[i] != nil {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateBackend, ch)
		}
		b.table[i] = backend
	}
	for i, backend := range b.table {
		if backend == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingBackend, Channels[i])
		}
	}
	return b, nil
}

// Get returns the backend for ch or ErrUnknownChannel.
func (b *Backends) Get(ch Channel) (Backend, error) {
	i := ch.index()
	if i < 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownChannel, ch)
	}
	return b.table[i], nil
}

package queue

import (
	"context"
	"encoding/json"
	"fmt"
)

type (
	Handler interface {
		Name() string
		Handle(ctx context.Context, payload json.RawMessage) error
	}

	TaskHandlerFunc[T any]  func(ctx context.Context, payload T) error
	PeriodicTaskHandlerFunc func(ctx context.Context) error
)

// NewTaskHandler builds a handler named after T, matching the default task
// name the Enqueuer derives from a T payload.
func NewTaskHandler[T any](handler TaskHandlerFunc[T]) Handler {
	var payload T
	return &oneTimeTaskHandler[T]{
		name:    qualifiedStructName(payload),
		handler: handler,
	}
}

// NewPeriodicTaskHandler builds a handler for a Scheduler task registered under name.
func NewPeriodicTaskHandler(name string, handler PeriodicTaskHandlerFunc) Handler {
	return &periodicTaskHandler{
		name:    name,
		handler: handler,
	}
}

type oneTimeTaskHandler[T any] struct {
	name    string
	handler TaskHandlerFunc[T]
}

// Name returns the qualified payload type name.
func (h *oneTimeTaskHandler[T]) Name() string {
	return h.name
}

// Handle decodes the payload; a payload that cannot be decoded will never
// succeed, so the error is permanent.
func (h *oneTimeTaskHandler[T]) Handle(ctx context.Context, payload json.RawMessage) error {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return Permanent(fmt.Errorf("decode %s payload: %w", h.name, err))
	}
	return h.handler(ctx, t)
}

type periodicTaskHandler struct {
	name    string
	handler PeriodicTaskHandlerFunc
}

// Name returns the name the handler was registered with.
func (h *periodicTaskHandler) Name() string {
	return h.name
}

// Handle ignores the payload and runs the periodic function.
func (h *periodicTaskHandler) Handle(ctx context.Context, _ json.RawMessage) error {
	return h.handler(ctx)
}

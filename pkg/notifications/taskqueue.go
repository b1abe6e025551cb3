package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/queue"
)

// TaskQueue hands delivery tasks to asynchronous workers.
type TaskQueue interface {
	// EnqueueDelivery schedules task to run after delay.
	EnqueueDelivery(ctx context.Context, task DeliveryTask, delay time.Duration) error
}

// Enqueuer is the subset of queue.Enqueuer used by QueueTaskQueue.
type Enqueuer interface {
	Enqueue(ctx context.Context, payload any, opts ...queue.EnqueueOption) error
}

// QueueTaskQueue is a TaskQueue backed by pkg/queue.
type QueueTaskQueue struct {
	enqueuer  Enqueuer
	queueName string
}

// NewQueueTaskQueue enqueues delivery tasks on queueName with high priority.
// An empty queueName uses the enqueuer's default queue.
func NewQueueTaskQueue(enqueuer Enqueuer, queueName string) *QueueTaskQueue {
	return &QueueTaskQueue{enqueuer: enqueuer, queueName: queueName}
}

// EnqueueDelivery enqueues task, delayed by delay when positive.
func (q *QueueTaskQueue) EnqueueDelivery(ctx context.Context, task DeliveryTask, delay time.Duration) error {
	opts := []queue.EnqueueOption{queue.WithPriority(queue.PriorityHigh)}
	if q.queueName != "" {
		opts = append(opts, queue.WithQueue(q.queueName))
	}
	if delay > 0 {
		opts = append(opts, queue.WithDelay(delay))
	}
	if err := q.enqueuer.Enqueue(ctx, task, opts...); err != nil {
		return fmt.Errorf("failed to enqueue delivery: %w", err)
	}
	return nil
}

// HandlerRegistry is the subset of queue.Worker used to register handlers.
type HandlerRegistry interface {
	RegisterHandler(handler queue.Handler) error
}

// RegisterDeliveryHandler routes DeliveryTask payloads to w.Handle.
func RegisterDeliveryHandler(r HandlerRegistry, w *DeliveryWorker) error {
	return r.RegisterHandler(queue.NewTaskHandler(w.Handle))
}

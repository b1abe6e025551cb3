package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EnqueuerRepository stores new tasks.
type EnqueuerRepository interface {
	CreateTask(ctx context.Context, task *Task) error
}

// Enqueuer turns payloads into tasks.
type Enqueuer struct {
	repo              EnqueuerRepository
	defaultQueue      string
	defaultPriority   Priority
	defaultMaxRetries int8
}

// NewEnqueuer creates an Enqueuer writing tasks to repo.
func NewEnqueuer(repo EnqueuerRepository, opts ...EnqueuerOption) (*Enqueuer, error) {
	if repo == nil {
		return nil, ErrRepositoryNil
	}

	options := &enqueuerOptions{
		defaultQueue:      DefaultQueueName,
		defaultPriority:   PriorityDefault,
		defaultMaxRetries: 3,
	}
	for _, opt := range opts {
		opt(options)
	}

	return &Enqueuer{
		repo:              repo,
		defaultQueue:      options.defaultQueue,
		defaultPriority:   options.defaultPriority,
		defaultMaxRetries: options.defaultMaxRetries,
	}, nil
}

// Enqueue JSON-encodes payload and stores it as a one-time task. The task
// name defaults to the payload's qualified type name, which is what
// NewTaskHandler registers under.
func (e *Enqueuer) Enqueue(ctx context.Context, payload any, opts ...EnqueueOption) error {
	if payload == nil {
		return ErrPayloadNil
	}

	options := &enqueueOptions{
		queue:      e.defaultQueue,
		priority:   e.defaultPriority,
		maxRetries: e.defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(options)
	}

	if !options.priority.Valid() {
		return ErrInvalidPriority
	}

	task, err := e.buildTask(payload, options)
	if err != nil {
		return err
	}

	if err := e.repo.CreateTask(ctx, task); err != nil {
		return fmt.Errorf("failed to create task %q in queue %q: %w", task.TaskName, task.Queue, err)
	}

	return nil
}

func (e *Enqueuer) buildTask(payload any, options *enqueueOptions) (*Task, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload of type %T: %w", payload, err)
	}

	taskName := options.taskName
	if taskName == "" {
		taskName = qualifiedStructName(payload)
	}

	now := time.Now()
	scheduledAt := now
	if options.scheduledAt != nil {
		scheduledAt = *options.scheduledAt
	} else if options.delay > 0 {
		scheduledAt = now.Add(options.delay)
	}

	return &Task{
		ID:          uuid.New(),
		Queue:       options.queue,
		TaskType:    TaskTypeOneTime,
		TaskName:    taskName,
		Payload:     payloadBytes,
		Status:      TaskStatusPending,
		Priority:    options.priority,
		MaxRetries:  options.maxRetries,
		ScheduledAt: scheduledAt,
		CreatedAt:   now,
	}, nil
}

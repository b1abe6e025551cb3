package queue

import "time"

type EnqueuerOption func(*enqueuerOptions)

type enqueuerOptions struct {
	defaultQueue      string
	defaultPriority   Priority
	defaultMaxRetries int8
}

// WithDefaultQueue sets the queue used when Enqueue gets no WithQueue.
func WithDefaultQueue(queue string) EnqueuerOption {
	return func(o *enqueuerOptions) {
		if queue != "" {
			o.defaultQueue = queue
		}
	}
}

// WithDefaultPriority sets the priority used when Enqueue gets no WithPriority.
func WithDefaultPriority(priority Priority) EnqueuerOption {
	return func(o *enqueuerOptions) {
		if priority.Valid() {
			o.defaultPriority = priority
		}
	}
}

// WithDefaultMaxRetries sets the retry budget for tasks that do not override it (0-10).
func WithDefaultMaxRetries(maxRetries int8) EnqueuerOption {
	return func(o *enqueuerOptions) {
		if maxRetries >= 0 && maxRetries <= 10 {
			o.defaultMaxRetries = maxRetries
		}
	}
}

type EnqueueOption func(*enqueueOptions)

type enqueueOptions struct {
	queue       string
	priority    Priority
	maxRetries  int8
	delay       time.Duration
	scheduledAt *time.Time
	taskName    string
}

// WithQueue routes a single task to queue.
func WithQueue(queue string) EnqueueOption {
	return func(o *enqueueOptions) {
		if queue != "" {
			o.queue = queue
		}
	}
}

// WithPriority sets a single task's priority.
func WithPriority(priority Priority) EnqueueOption {
	return func(o *enqueueOptions) {
		o.priority = priority
	}
}

// WithMaxRetries caps queue-level retries (0-10).
func WithMaxRetries(maxRetries int8) EnqueueOption {
	return func(o *enqueueOptions) {
		if maxRetries >= 0 && maxRetries <= 10 {
			o.maxRetries = maxRetries
		}
	}
}

// WithDelay makes the task claimable only after d.
func WithDelay(d time.Duration) EnqueueOption {
	return func(o *enqueueOptions) {
		if d > 0 {
			o.delay = d
		}
	}
}

// WithScheduledAt makes the task eligible at scheduledAt.
func WithScheduledAt(scheduledAt time.Time) EnqueueOption {
	return func(o *enqueueOptions) {
		o.scheduledAt = &scheduledAt
	}
}

// WithTaskName overrides the name derived from the payload type.
func WithTaskName(name string) EnqueueOption {
	return func(o *enqueueOptions) {
		if name != "" {
			o.taskName = name
		}
	}
}

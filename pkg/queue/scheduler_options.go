package queue

import (
	"log/slog"
	"time"
)

type SchedulerOption func(*schedulerOptions)

type schedulerOptions struct {
	checkInterval time.Duration
	logger        *slog.Logger
}

// WithCheckInterval sets how often due tasks are looked for.
func WithCheckInterval(d time.Duration) SchedulerOption {
	return func(o *schedulerOptions) {
		if d > 0 {
			o.checkInterval = d
		}
	}
}

// WithSchedulerLogger sets the logger. Defaults to slog.Default().
func WithSchedulerLogger(logger *slog.Logger) SchedulerOption {
	return func(o *schedulerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

type SchedulerTaskOption func(*schedulerTaskOptions)

type schedulerTaskOptions struct {
	queue      string
	priority   Priority
	maxRetries int8
}

// WithTaskQueue routes a periodic task to queue.
func WithTaskQueue(queue string) SchedulerTaskOption {
	return func(o *schedulerTaskOptions) {
		if queue != "" {
			o.queue = queue
		}
	}
}

// WithTaskPriority sets a periodic task's priority.
func WithTaskPriority(priority Priority) SchedulerTaskOption {
	return func(o *schedulerTaskOptions) {
		if priority.Valid() {
			o.priority = priority
		}
	}
}

// WithTaskMaxRetries caps retries of each periodic run (0-10).
func WithTaskMaxRetries(maxRetries int8) SchedulerTaskOption {
	return func(o *schedulerTaskOptions) {
		if maxRetries >= 0 && maxRetries <= 10 {
			o.maxRetries = maxRetries
		}
	}
}

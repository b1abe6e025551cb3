package queue

import (
	"log/slog"
	"time"
)

type WorkerOption func(*workerOptions)

type workerOptions struct {
	queues             []string
	pullInterval       time.Duration
	lockTimeout        time.Duration
	maxConcurrentTasks int
	logger             *slog.Logger
}

// WithQueues sets the queues the worker claims from.
func WithQueues(queues ...string) WorkerOption {
	return func(o *workerOptions) {
		if len(queues) > 0 {
			o.queues = queues
		}
	}
}

// WithPullInterval sets how often the worker polls for tasks.
func WithPullInterval(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.pullInterval = d
		}
	}
}

// WithLockTimeout bounds both the task lock and the handler's context.
func WithLockTimeout(d time.Duration) WorkerOption {
	return func(o *workerOptions) {
		if d > 0 {
			o.lockTimeout = d
		}
	}
}

// WithMaxConcurrentTasks bounds the number of handlers running at once.
func WithMaxConcurrentTasks(n int) WorkerOption {
	return func(o *workerOptions) {
		if n > 0 {
			o.maxConcurrentTasks = n
		}
	}
}

// WithWorkerLogger sets the logger. Defaults to slog.Default().
func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(o *workerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

package queue

import "time"

// Config holds the worker and scheduler settings.
type Config struct {
	PollInterval       time.Duration `env:"QUEUE_POLL_INTERVAL" envDefault:"1s"`
	LockTimeout        time.Duration `env:"QUEUE_LOCK_TIMEOUT" envDefault:"5m"`
	MaxConcurrentTasks int           `env:"QUEUE_MAX_CONCURRENT_TASKS" envDefault:"10"`
	CheckInterval      time.Duration `env:"QUEUE_SCHEDULER_CHECK_INTERVAL" envDefault:"30s"`
	RetryBackoff       time.Duration `env:"QUEUE_RETRY_BACKOFF" envDefault:"30s"`
}

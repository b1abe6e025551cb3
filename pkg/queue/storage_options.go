package queue

import "time"

// StorageOption configures MemoryStorage and PostgresStorage.
type StorageOption func(*storageOptions)

type storageOptions struct {
	retryBackoff time.Duration
}

func defaultStorageOptions() *storageOptions {
	return &storageOptions{retryBackoff: 30 * time.Second}
}

// WithRetryBackoff sets the linear backoff step applied by FailTask:
// the n-th retry is scheduled n*d after the failure.
func WithRetryBackoff(d time.Duration) StorageOption {
	return func(o *storageOptions) {
		if d >= 0 {
			o.retryBackoff = d
		}
	}
}

package notifications

import "time"

// Config holds delivery pipeline settings, loaded from NOTIFY_* variables.
type Config struct {
	MaxRetries     int           `env:"NOTIFY_MAX_RETRIES" envDefault:"3"`
	RetryBaseDelay time.Duration `env:"NOTIFY_RETRY_BASE_DELAY" envDefault:"60s"`
	Queue          string        `env:"NOTIFY_QUEUE" envDefault:"notifications"`

	WeeklySummaryWeekday int           `env:"NOTIFY_WEEKLY_SUMMARY_WEEKDAY" envDefault:"1"` // 0 = Sunday
	WeeklySummaryHour    int           `env:"NOTIFY_WEEKLY_SUMMARY_HOUR" envDefault:"9"`
	WeeklySummaryWindow  time.Duration `env:"NOTIFY_WEEKLY_SUMMARY_WINDOW" envDefault:"168h"`

	RealtimeBufferSize int `env:"NOTIFY_REALTIME_BUFFER_SIZE" envDefault:"16"`
}

const (
	DefaultMaxRetries     = 3
	DefaultRetryBaseDelay = time.Minute
)

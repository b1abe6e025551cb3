package queue_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/notifykit/pkg/queue"
)

func TestSchedules(t *testing.T) {
	t.Parallel()

	// Wednesday.
	from := time.Date(2025, time.January, 15, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		schedule queue.Schedule
		want     time.Time
		str      string
	}{
		{
			name:     "interval",
			schedule: queue.EveryInterval(90 * time.Minute),
			want:     from.Add(90 * time.Minute),
			str:      "every 1h30m0s",
		},
		{
			name:     "daily later today",
			schedule: queue.DailyAt(18, 0),
			want:     time.Date(2025, time.January, 15, 18, 0, 0, 0, time.UTC),
			str:      "daily at 18:00",
		},
		{
			name:     "daily already passed",
			schedule: queue.DailyAt(9, 0),
			want:     time.Date(2025, time.January, 16, 9, 0, 0, 0, time.UTC),
			str:      "daily at 09:00",
		},
		{
			name:     "weekly upcoming day",
			schedule: queue.WeeklyOn(time.Monday, 9, 0),
			want:     time.Date(2025, time.January, 20, 9, 0, 0, 0, time.UTC),
			str:      "weekly on Monday at 09:00",
		},
		{
			name:     "weekly same day passed",
			schedule: queue.WeeklyOn(time.Wednesday, 8, 0),
			want:     time.Date(2025, time.January, 22, 8, 0, 0, 0, time.UTC),
			str:      "weekly on Wednesday at 08:00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.schedule.Next(from))
			assert.Equal(t, tt.str, tt.schedule.String())
		})
	}
}

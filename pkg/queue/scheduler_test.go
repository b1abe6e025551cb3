package queue_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/queue"
)

func TestScheduler_AddTask(t *testing.T) {
	t.Parallel()

	_, err := queue.NewScheduler(nil)
	require.ErrorIs(t, err, queue.ErrRepositoryNil)

	storage := queue.NewMemoryStorage()
	defer storage.Close()

	s, err := queue.NewScheduler(storage)
	require.NoError(t, err)
	require.ErrorIs(t, s.Start(context.Background()), queue.ErrSchedulerNotConfigured)

	require.NoError(t, s.AddTask("weekly", queue.WeeklyOn(time.Monday, 9, 0)))
	require.ErrorIs(t, s.AddTask("weekly", queue.EveryInterval(time.Hour)), queue.ErrTaskAlreadyRegistered)
	assert.Equal(t, []string{"weekly"}, s.ListTasks())
}

func TestScheduler_CreatesSinglePendingTask(t *testing.T) {
	t.Parallel()

	storage := queue.NewMemoryStorage()
	defer storage.Close()

	s, err := queue.NewScheduler(storage, queue.WithCheckInterval(10*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, s.AddTask("summary", queue.EveryInterval(time.Hour),
		queue.WithTaskQueue("notifications"),
		queue.WithTaskPriority(queue.PriorityLow),
		queue.WithTaskMaxRetries(1),
	))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	require.Eventually(t, func() bool {
		_, err := storage.GetPendingTaskByName(context.Background(), "summary")
		return err == nil
	}, time.Second, 10*time.Millisecond)

	// Several further checks must not duplicate the pending task.
	time.Sleep(50 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	pending, err := storage.ListTasks(context.Background(), queue.TaskStatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, queue.TaskTypePeriodic, pending[0].TaskType)
	assert.Equal(t, "notifications", pending[0].Queue)
	assert.Equal(t, queue.PriorityLow, pending[0].Priority)
	assert.Equal(t, int8(1), pending[0].MaxRetries)
	assert.True(t, pending[0].ScheduledAt.After(time.Now().Add(59*time.Minute)))
}

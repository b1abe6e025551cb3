package queue_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/queue"
)

type MockEnqueuerRepository struct {
	mock.Mock
}

func (m *MockEnqueuerRepository) CreateTask(ctx context.Context, task *queue.Task) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

type enqueueTestPayload struct {
	ID string `json:"id"`
}

func TestNewEnqueuer(t *testing.T) {
	t.Parallel()

	enq, err := queue.NewEnqueuer(nil)
	require.ErrorIs(t, err, queue.ErrRepositoryNil)
	assert.Nil(t, enq)
}

func TestEnqueuer_Enqueue(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		repo := new(MockEnqueuerRepository)
		defer repo.AssertExpectations(t)

		enq, err := queue.NewEnqueuer(repo,
			queue.WithDefaultQueue("notifications"),
			queue.WithDefaultMaxRetries(5),
		)
		require.NoError(t, err)

		before := time.Now()
		repo.On("CreateTask", mock.Anything, mock.MatchedBy(func(task *queue.Task) bool {
			var p enqueueTestPayload
			return task.Queue == "notifications" &&
				task.TaskName == "queue_test.enqueueTestPayload" &&
				task.TaskType == queue.TaskTypeOneTime &&
				task.Status == queue.TaskStatusPending &&
				task.Priority == queue.PriorityDefault &&
				task.MaxRetries == 5 &&
				!task.ScheduledAt.Before(before) &&
				json.Unmarshal(task.Payload, &p) == nil && p.ID == "n1"
		})).Return(nil).Once()

		require.NoError(t, enq.Enqueue(context.Background(), enqueueTestPayload{ID: "n1"}))
	})

	t.Run("delay and overrides", func(t *testing.T) {
		t.Parallel()

		repo := new(MockEnqueuerRepository)
		defer repo.AssertExpectations(t)

		enq, err := queue.NewEnqueuer(repo)
		require.NoError(t, err)

		before := time.Now()
		repo.On("CreateTask", mock.Anything, mock.MatchedBy(func(task *queue.Task) bool {
			return task.Queue == "other" &&
				task.TaskName == "custom" &&
				task.Priority == queue.PriorityHigh &&
				task.MaxRetries == 0 &&
				!task.ScheduledAt.Before(before.Add(2*time.Minute))
		})).Return(nil).Once()

		require.NoError(t, enq.Enqueue(context.Background(), enqueueTestPayload{},
			queue.WithQueue("other"),
			queue.WithTaskName("custom"),
			queue.WithPriority(queue.PriorityHigh),
			queue.WithMaxRetries(0),
			queue.WithDelay(2*time.Minute),
		))
	})

	t.Run("nil payload", func(t *testing.T) {
		t.Parallel()

		enq, err := queue.NewEnqueuer(new(MockEnqueuerRepository))
		require.NoError(t, err)
		require.ErrorIs(t, enq.Enqueue(context.Background(), nil), queue.ErrPayloadNil)
	})

	t.Run("invalid priority", func(t *testing.T) {
		t.Parallel()

		enq, err := queue.NewEnqueuer(new(MockEnqueuerRepository))
		require.NoError(t, err)
		err = enq.Enqueue(context.Background(), enqueueTestPayload{}, queue.WithPriority(queue.Priority(-1)))
		require.ErrorIs(t, err, queue.ErrInvalidPriority)
	})

	t.Run("storage error", func(t *testing.T) {
		t.Parallel()

		repo := new(MockEnqueuerRepository)
		defer repo.AssertExpectations(t)
		storageErr := errors.New("db down")
		repo.On("CreateTask", mock.Anything, mock.Anything).Return(storageErr).Once()

		enq, err := queue.NewEnqueuer(repo)
		require.NoError(t, err)
		require.ErrorIs(t, enq.Enqueue(context.Background(), enqueueTestPayload{}), storageErr)
	})
}

package notifications_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/queue"
)

// dispatchOne creates a single notification for user "1" and discards the
// tasks the dispatch enqueued.
func dispatchOne(t *testing.T, f *fixture) notifications.Notification {
	t.Helper()
	f.seedEventType(t, notifications.EventTypeParams{Code: "promo", Name: "Promo", DefaultEnabled: true})
	created, err := f.dispatcher.Dispatch(context.Background(), "promo", map[string]any{"code": "SAVE10"},
		notifications.WithTargetUsers("1"))
	require.NoError(t, err)
	require.Len(t, created, 1)
	f.queue.drain()
	return created[0]
}

func TestDeliveryWorker_Attempt(t *testing.T) {
	t.Parallel()

	t.Run("success marks the record sent", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		f := newFixture(t, activeUser("1"))
		n := dispatchOne(t, f)

		res, err := f.worker.Attempt(ctx, notifications.DeliveryTask{NotificationID: n.ID, Channel: notifications.ChannelEmail})
		require.NoError(t, err)
		assert.True(t, res.Attempted)
		assert.Zero(t, res.RetryAfter)
		assert.Equal(t, notifications.DeliverySent, res.Record.Status)
		assert.Zero(t, res.Record.RetryCount)

		msgs := f.email.sent()
		require.Len(t, msgs, 1)
		assert.Equal(t, "1@example.com", msgs[0].User.Email)
		assert.Equal(t, "Notification: Promo", msgs[0].Title)

		stored, err := f.store.GetDelivery(ctx, n.ID, notifications.ChannelEmail)
		require.NoError(t, err)
		assert.Equal(t, notifications.DeliverySent, stored.Status)
		assert.NotNil(t, stored.DeliveredAt)
	})

	t.Run("three failures reach the terminal state and stop", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		f := newFixture(t, activeUser("1"))
		f.email.fail = func(int) error { return errors.New("smtp unavailable") }
		n := dispatchOne(t, f)
		task := notifications.DeliveryTask{NotificationID: n.ID, Channel: notifications.ChannelEmail}

		wantDelays := []time.Duration{2 * time.Second, 4 * time.Second, 0}
		for i, want := range wantDelays {
			res, err := f.worker.Attempt(ctx, task)
			require.NoError(t, err)
			assert.True(t, res.Attempted)
			assert.Equal(t, notifications.DeliveryFailed, res.Record.Status)
			assert.Equal(t, i+1, res.Record.RetryCount)
			assert.Equal(t, want, res.RetryAfter, "attempt %d", i+1)
			assert.Equal(t, "smtp unavailable", res.Record.Error)
			assert.NotNil(t, res.Record.FailedAt)
		}

		res, err := f.worker.Attempt(ctx, task)
		require.NoError(t, err)
		assert.False(t, res.Attempted)
		assert.Equal(t, 3, f.email.calls(), "no fourth attempt")

		stored, err := f.store.GetDelivery(ctx, n.ID, notifications.ChannelEmail)
		require.NoError(t, err)
		assert.Equal(t, notifications.DeliveryFailed, stored.Status)
		assert.Equal(t, 3, stored.RetryCount)
		assert.True(t, stored.IsTerminal(notifications.DefaultMaxRetries))
	})

	t.Run("recovers after a failure", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		f := newFixture(t, activeUser("1"))
		f.email.fail = func(n int) error {
			if n == 1 {
				return errors.New("timeout")
			}
			return nil
		}
		n := dispatchOne(t, f)
		task := notifications.DeliveryTask{NotificationID: n.ID, Channel: notifications.ChannelEmail}

		_, err := f.worker.Attempt(ctx, task)
		require.NoError(t, err)
		res, err := f.worker.Attempt(ctx, task)
		require.NoError(t, err)
		assert.Equal(t, notifications.DeliverySent, res.Record.Status)
		assert.Equal(t, 1, res.Record.RetryCount)
		assert.Empty(t, res.Record.Error)
	})

	t.Run("sent record is not attempted again", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		f := newFixture(t, activeUser("1"))
		n := dispatchOne(t, f)
		task := notifications.DeliveryTask{NotificationID: n.ID, Channel: notifications.ChannelInApp}

		_, err := f.worker.Attempt(ctx, task)
		require.NoError(t, err)
		res, err := f.worker.Attempt(ctx, task)
		require.NoError(t, err)
		assert.False(t, res.Attempted)
		assert.Equal(t, 1, f.inApp.calls())

		records, err := f.store.ListDeliveries(ctx, n.ID)
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})

	t.Run("backend panic is a failure", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, activeUser("1"))
		f.sms.fail = func(int) error { panic("boom") }
		n := dispatchOne(t, f)

		res, err := f.worker.Attempt(context.Background(), notifications.DeliveryTask{NotificationID: n.ID, Channel: notifications.ChannelSMS})
		require.NoError(t, err)
		assert.Equal(t, notifications.DeliveryFailed, res.Record.Status)
		assert.Contains(t, res.Record.Error, "boom")
		assert.Positive(t, res.RetryAfter)
	})

	t.Run("missing recipient is a failure", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, activeUser("1"))
		n := dispatchOne(t, f)
		f.users.Delete("1")

		res, err := f.worker.Attempt(context.Background(), notifications.DeliveryTask{NotificationID: n.ID, Channel: notifications.ChannelEmail})
		require.NoError(t, err)
		assert.Equal(t, notifications.DeliveryFailed, res.Record.Status)
		assert.Contains(t, res.Record.Error, notifications.ErrUserNotFound.Error())
	})

	t.Run("unknown channel is a hard error without a record", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		f := newFixture(t, activeUser("1"))
		n := dispatchOne(t, f)

		_, err := f.worker.Attempt(ctx, notifications.DeliveryTask{NotificationID: n.ID, Channel: "pigeon"})
		require.ErrorIs(t, err, notifications.ErrUnknownChannel)

		records, err := f.store.ListDeliveries(ctx, n.ID)
		require.NoError(t, err)
		assert.Empty(t, records)
	})

	t.Run("vanished notification is a hard error", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, activeUser("1"))

		_, err := f.worker.Attempt(context.Background(), notifications.DeliveryTask{NotificationID: "nope", Channel: notifications.ChannelInApp})
		require.ErrorIs(t, err, notifications.ErrNotificationNotFound)
	})
}

func TestDeliveryWorker_Handle(t *testing.T) {
	t.Parallel()

	t.Run("re-enqueues failed attempts with backoff", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		f := newFixture(t, activeUser("1"))
		f.email.fail = func(int) error { return errors.New("down") }
		n := dispatchOne(t, f)
		task := notifications.DeliveryTask{NotificationID: n.ID, Channel: notifications.ChannelEmail}

		require.NoError(t, f.worker.Handle(ctx, task))
		queued := f.queue.drain()
		require.Len(t, queued, 1)
		assert.Equal(t, task, queued[0].Task)
		assert.Equal(t, 2*time.Second, queued[0].Delay)
	})

	t.Run("retries end after max attempts", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		f := newFixture(t, activeUser("1"))
		f.email.fail = func(int) error { return errors.New("down") }
		n := dispatchOne(t, f)

		require.NoError(t, f.queue.EnqueueDelivery(ctx, notifications.DeliveryTask{NotificationID: n.ID, Channel: notifications.ChannelEmail}, 0))
		handled := f.runQueue(t, 10)
		assert.Len(t, handled, 3)
		assert.Equal(t, 3, f.email.calls())
	})

	t.Run("hard errors are permanent", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, activeUser("1"))

		err := f.worker.Handle(context.Background(), notifications.DeliveryTask{NotificationID: "nope", Channel: notifications.ChannelEmail})
		require.Error(t, err)
		assert.True(t, queue.IsPermanent(err))
		assert.ErrorIs(t, err, notifications.ErrNotificationNotFound)
	})

	t.Run("failed retry scheduling is returned", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, activeUser("1"))
		f.email.fail = func(int) error { return errors.New("down") }
		n := dispatchOne(t, f)
		f.queue.err = errors.New("queue down")

		err := f.worker.Handle(context.Background(), notifications.DeliveryTask{NotificationID: n.ID, Channel: notifications.ChannelEmail})
		require.Error(t, err)
		assert.False(t, queue.IsPermanent(err))
	})
}

func TestRetryDelay(t *testing.T) {
	t.Parallel()

	base := time.Minute
	assert.Equal(t, 2*time.Minute, notifications.RetryDelay(base, 1))
	assert.Equal(t, 4*time.Minute, notifications.RetryDelay(base, 2))
	assert.Equal(t, 8*time.Minute, notifications.RetryDelay(base, 3))
	assert.Equal(t, time.Minute, notifications.RetryDelay(base, -1))
}

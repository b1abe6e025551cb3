package notifications_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

func TestInbox(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t, activeUser("1"), activeUser("2"))
	f.seedEventType(t, notifications.EventTypeParams{Code: "promo", DefaultEnabled: true})
	inbox := notifications.NewInbox(f.store, notifications.WithInboxLogger(discard))

	var mine []notifications.Notification
	for range 3 {
		created, err := f.dispatcher.Dispatch(ctx, "promo", nil, notifications.WithTargetUsers("1", "2"))
		require.NoError(t, err)
		require.Len(t, created, 2)
		for _, n := range created {
			if n.UserID == "1" {
				mine = append(mine, n)
			}
		}
	}
	theirs, err := inbox.List(ctx, "2", notifications.ListOptions{Limit: 1})
	require.NoError(t, err)
	require.Len(t, theirs, 1)

	t.Run("get is scoped to the owner", func(t *testing.T) {
		_, err := inbox.Get(ctx, "1", theirs[0].ID)
		assert.ErrorIs(t, err, notifications.ErrNotificationNotFound)

		n, err := inbox.Get(ctx, "1", mine[0].ID)
		require.NoError(t, err)
		assert.Equal(t, mine[0].ID, n.ID)
	})

	t.Run("mark read ignores other users' notifications", func(t *testing.T) {
		changed, err := inbox.MarkRead(ctx, "1", mine[0].ID, theirs[0].ID)
		require.NoError(t, err)
		assert.Equal(t, 1, changed)

		changed, err = inbox.MarkRead(ctx, "1", mine[0].ID)
		require.NoError(t, err)
		assert.Zero(t, changed, "already read")

		n, err := inbox.Get(ctx, "1", mine[0].ID)
		require.NoError(t, err)
		assert.True(t, n.Read)
		assert.NotNil(t, n.ReadAt)

		other, err := inbox.Get(ctx, "2", theirs[0].ID)
		require.NoError(t, err)
		assert.False(t, other.Read)

		unread, err := inbox.CountUnread(ctx, "1")
		require.NoError(t, err)
		assert.Equal(t, 2, unread)

		list, err := inbox.ListUnread(ctx, "1", notifications.ListOptions{})
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})

	t.Run("mark read without ids does nothing", func(t *testing.T) {
		changed, err := inbox.MarkRead(ctx, "1")
		require.NoError(t, err)
		assert.Zero(t, changed)
	})

	t.Run("mark all read", func(t *testing.T) {
		changed, err := inbox.MarkAllRead(ctx, "1")
		require.NoError(t, err)
		assert.Equal(t, 2, changed)

		unread, err := inbox.CountUnread(ctx, "1")
		require.NoError(t, err)
		assert.Zero(t, unread)

		unread, err = inbox.CountUnread(ctx, "2")
		require.NoError(t, err)
		assert.Equal(t, 3, unread)
	})

	t.Run("deliveries are scoped to the owner", func(t *testing.T) {
		f.runQueue(t, 100)

		records, err := inbox.Deliveries(ctx, "1", mine[1].ID)
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, notifications.ChannelInApp, records[0].Channel)
		assert.Equal(t, notifications.ChannelEmail, records[1].Channel)

		_, err = inbox.Deliveries(ctx, "2", mine[1].ID)
		assert.ErrorIs(t, err, notifications.ErrNotificationNotFound)
	})
}

package notifications_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

func TestDispatcher_Dispatch(t *testing.T) {
	t.Parallel()

	t.Run("creates one notification per eligible user and one delivery per enabled channel", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		f := newFixture(t, activeUser("1"), activeUser("2"), activeUser("3"))
		f.seedEventType(t, notifications.EventTypeParams{Code: "deploy", Name: "Deploy", DefaultEnabled: true})

		_, err := f.prefs.UpdateChannels(ctx, "2", notifications.ChannelSettings{SMS: boolPtr(true)})
		require.NoError(t, err)

		created, err := f.dispatcher.Dispatch(ctx, "deploy", map[string]any{
			"target_users": []any{"1", "2", "3"},
		})
		require.NoError(t, err)
		require.Len(t, created, 3)

		f.runQueue(t, 100)

		wantChannels := map[string]int{"1": 2, "2": 3, "3": 2}
		for _, n := range created {
			records, err := f.store.ListDeliveries(ctx, n.ID)
			require.NoError(t, err)
			assert.Len(t, records, wantChannels[n.UserID], "user %s", n.UserID)
			for _, rec := range records {
				assert.Equal(t, notifications.DeliverySent, rec.Status)
				assert.NotNil(t, rec.DeliveredAt)
				assert.NotNil(t, rec.AttemptedAt)
			}
		}
		assert.Len(t, f.sms.sent(), 1)
	})

	t.Run("new comment renders the in-app template and fans out to followers", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		f := newFixture(t, activeUser("1"), activeUser("2"))
		_, err := f.eventTypes.SeedDefaults(ctx)
		require.NoError(t, err)

		created, err := f.dispatcher.Dispatch(ctx, notifications.EventNewComment, map[string]any{
			"follower_ids": []any{float64(1), "2", "1"},
			"username":     "alice",
			"post_title":   "Go generics",
		})
		require.NoError(t, err)
		require.Len(t, created, 2)

		for _, n := range created {
			assert.Equal(t, "New comment on your post", n.Title)
			assert.Equal(t, `alice commented on "Go generics".`, n.Body)
			assert.Equal(t, notifications.EventNewComment, n.EventTypeCode)
			assert.False(t, n.Read)
		}
		assert.Equal(t, 4, f.queue.len(), "in_app and email per user")
	})

	t.Run("unknown event code yields empty result", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, activeUser("1"))

		created, err := f.dispatcher.Dispatch(context.Background(), "does_not_exist", map[string]any{
			"target_users": []string{"1"},
		})
		require.NoError(t, err)
		assert.Empty(t, created)
		assert.Zero(t, f.queue.len())
	})

	t.Run("inactive event type yields empty result", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		f := newFixture(t, activeUser("1"))
		f.seedEventType(t, notifications.EventTypeParams{Code: "promo", DefaultEnabled: true})
		_, err := f.eventTypes.Deactivate(ctx, "promo")
		require.NoError(t, err)

		created, err := f.dispatcher.Dispatch(ctx, "promo", nil, notifications.WithTargetUsers("1"))
		require.NoError(t, err)
		assert.Empty(t, created)
	})

	t.Run("user who disabled the event gets nothing", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		f := newFixture(t, activeUser("1"), activeUser("2"))
		f.seedEventType(t, notifications.EventTypeParams{Code: "promo", DefaultEnabled: true})

		_, err := f.prefs.UpdateEventPreferences(ctx, "1", []notifications.EventPreferenceUpdate{
			{EventTypeCode: "promo", Enabled: false},
		})
		require.NoError(t, err)

		created, err := f.dispatcher.Dispatch(ctx, "promo", nil, notifications.WithTargetUsers("1", "2"))
		require.NoError(t, err)
		require.Len(t, created, 1)
		assert.Equal(t, "2", created[0].UserID)

		list, err := f.store.ListNotifications(ctx, "1", notifications.ListOptions{})
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("event disabled by default is skipped", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, activeUser("1"))
		f.seedEventType(t, notifications.EventTypeParams{Code: "digest", DefaultEnabled: false})

		created, err := f.dispatcher.Dispatch(context.Background(), "digest", nil, notifications.WithTargetUsers("1"))
		require.NoError(t, err)
		assert.Empty(t, created)
	})

	t.Run("channels switched off get no delivery task", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		f := newFixture(t, activeUser("1"))
		f.seedEventType(t, notifications.EventTypeParams{Code: "promo", DefaultEnabled: true})
		_, err := f.prefs.UpdateChannels(ctx, "1", notifications.ChannelSettings{Email: boolPtr(false)})
		require.NoError(t, err)

		created, err := f.dispatcher.Dispatch(ctx, "promo", nil, notifications.WithTargetUsers("1"))
		require.NoError(t, err)
		require.Len(t, created, 1)

		tasks := f.queue.drain()
		require.Len(t, tasks, 1)
		assert.Equal(t, notifications.ChannelInApp, tasks[0].Task.Channel)
		assert.Equal(t, created[0].ID, tasks[0].Task.NotificationID)
		assert.Zero(t, tasks[0].Delay)
	})

	t.Run("explicit empty target list targets nobody", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, activeUser("1"))
		f.seedEventType(t, notifications.EventTypeParams{Code: "promo", DefaultEnabled: true})

		created, err := f.dispatcher.Dispatch(context.Background(), "promo",
			map[string]any{"target_users": []string{"1"}},
			notifications.WithTargetUsers())
		require.NoError(t, err)
		assert.Empty(t, created)
	})

	t.Run("vanished users are skipped without affecting others", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, activeUser("1"), activeUser("3"))
		f.seedEventType(t, notifications.EventTypeParams{Code: "promo", DefaultEnabled: true})

		created, err := f.dispatcher.Dispatch(context.Background(), "promo", nil,
			notifications.WithTargetUsers("ghost", "1", "3"))
		require.NoError(t, err)
		require.Len(t, created, 2)
		assert.Equal(t, "1", created[0].UserID)
		assert.Equal(t, "3", created[1].UserID)
	})

	t.Run("explicit targets reach deactivated accounts", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		inactive := activeUser("1")
		inactive.Active = false
		f := newFixture(t, inactive)
		_, err := f.eventTypes.SeedDefaults(ctx)
		require.NoError(t, err)

		created, err := f.dispatcher.Dispatch(ctx, notifications.EventUnrecognizedLogin, nil,
			notifications.WithTargetUsers("1"))
		require.NoError(t, err)
		require.Len(t, created, 1)
		assert.Equal(t, "1", created[0].UserID)
	})

	t.Run("enqueue failure keeps the notification", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		f := newFixture(t, activeUser("1"))
		f.seedEventType(t, notifications.EventTypeParams{Code: "promo", DefaultEnabled: true})
		f.queue.err = errors.New("queue down")

		created, err := f.dispatcher.Dispatch(ctx, "promo", nil, notifications.WithTargetUsers("1"))
		require.NoError(t, err)
		require.Len(t, created, 1)

		stored, err := f.store.GetNotification(ctx, created[0].ID)
		require.NoError(t, err)
		assert.Equal(t, created[0].Title, stored.Title)
	})

	t.Run("enriches render context with event and recipient fields", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		f := newFixture(t, activeUser("7"))
		et := f.seedEventType(t, notifications.EventTypeParams{Code: "promo", Name: "Promotion", DefaultEnabled: true})
		_, err := f.templates.Upsert(ctx, notifications.Template{
			EventTypeID:   et.ID,
			Channel:       notifications.ChannelInApp,
			TitleTemplate: "{event_name} for {user_name}",
			BodyTemplate:  "{event_code} {username} {missing}",
			Active:        true,
		})
		require.NoError(t, err)

		created, err := f.dispatcher.Dispatch(ctx, "promo", nil, notifications.WithTargetUsers("7"))
		require.NoError(t, err)
		require.Len(t, created, 1)
		assert.Equal(t, "Promotion for User 7", created[0].Title)
		assert.Equal(t, "promo user_7 {missing}", created[0].Body)
	})

	t.Run("generic fallback for event types without built-in templates", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, activeUser("1"))
		f.seedEventType(t, notifications.EventTypeParams{Code: "invoice_paid", Name: "Invoice paid", DefaultEnabled: true})

		created, err := f.dispatcher.Dispatch(context.Background(), "invoice_paid", nil, notifications.WithTargetUsers("1"))
		require.NoError(t, err)
		require.Len(t, created, 1)
		assert.Equal(t, "Notification: Invoice paid", created[0].Title)
	})
}

func TestNewDispatcher_MissingDependency(t *testing.T) {
	t.Parallel()

	store := notifications.NewMemoryStorage()
	tpls, err := notifications.NewTemplates(store)
	require.NoError(t, err)

	_, err = notifications.NewDispatcher(store, nil, notifications.NewPreferences(store), tpls, &recordingQueue{})
	assert.ErrorIs(t, err, notifications.ErrMissingDependency)
}

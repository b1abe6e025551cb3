package notifications_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
)

func TestRenderText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		data map[string]any
		want string
	}{
		{"plain text", "Hello", nil, "Hello"},
		{"substitution", "Hi {name}", map[string]any{"name": "Ann"}, "Hi Ann"},
		{"missing key kept literally", "Hi {name}, see {post_title}", map[string]any{"name": "Ann"}, "Hi Ann, see {post_title}"},
		{"nil data", "{a} and {b}", nil, "{a} and {b}"},
		{"numbers", "{count} new", map[string]any{"count": 3}, "3 new"},
		{"unterminated brace", "broken {name", map[string]any{"name": "x"}, "broken {name"},
		{"spaces inside braces", "Hi { name }", map[string]any{"name": "Ann"}, "Hi Ann"},
		{"blank result falls back to text", "{name}", map[string]any{"name": ""}, "{name}"},
		{"empty text", "", map[string]any{"a": 1}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.NotPanics(t, func() {
				assert.Equal(t, tt.want, notifications.RenderText(tt.text, tt.data))
			})
		})
	}
}

func TestRender_MissingPlaceholder(t *testing.T) {
	t.Parallel()

	title, body := notifications.Render(notifications.Template{
		TitleTemplate: "New comment on {post_title}",
		BodyTemplate:  "{username} commented",
	}, map[string]any{"username": "bob"})

	assert.Equal(t, "New comment on {post_title}", title)
	assert.Equal(t, "bob commented", body)
}

func TestTemplates_Resolve(t *testing.T) {
	t.Parallel()

	t.Run("persists the built-in template once", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		f := newFixture(t)
		et := f.seedEventType(t, notifications.EventTypeParams{Code: notifications.EventNewComment, DefaultEnabled: true})

		_, err := f.store.GetTemplate(ctx, et.ID, notifications.ChannelEmail)
		require.ErrorIs(t, err, notifications.ErrTemplateNotFound)

		first, err := f.templates.Resolve(ctx, et, notifications.ChannelEmail)
		require.NoError(t, err)
		assert.Equal(t, "You’ve got a new comment!", first.TitleTemplate)
		assert.NotEmpty(t, first.ID)

		second, err := f.templates.Resolve(ctx, et, notifications.ChannelEmail)
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("stored template wins", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		f := newFixture(t)
		et := f.seedEventType(t, notifications.EventTypeParams{Code: notifications.EventNewComment, DefaultEnabled: true})
		_, err := f.templates.Upsert(ctx, notifications.Template{
			EventTypeID: et.ID, Channel: notifications.ChannelInApp,
			TitleTemplate: "custom", BodyTemplate: "custom body", Active: true,
		})
		require.NoError(t, err)

		tpl, err := f.templates.Resolve(ctx, et, notifications.ChannelInApp)
		require.NoError(t, err)
		assert.Equal(t, "custom", tpl.TitleTemplate)
	})

	t.Run("inactive stored template falls back without persisting", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		f := newFixture(t)
		et := f.seedEventType(t, notifications.EventTypeParams{Code: notifications.EventWeeklySummary, DefaultEnabled: true})
		stored, err := f.templates.Upsert(ctx, notifications.Template{
			EventTypeID: et.ID, Channel: notifications.ChannelSMS,
			BodyTemplate: "disabled", Active: false,
		})
		require.NoError(t, err)

		tpl, err := f.templates.Resolve(ctx, et, notifications.ChannelSMS)
		require.NoError(t, err)
		assert.Equal(t, "Your weekly summary is ready. Check email for details.", tpl.BodyTemplate)
		assert.Empty(t, tpl.ID)

		still, err := f.store.GetTemplate(ctx, et.ID, notifications.ChannelSMS)
		require.NoError(t, err)
		assert.Equal(t, stored.ID, still.ID)
		assert.False(t, still.Active)
	})

	t.Run("unknown channel", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t)
		_, err := f.templates.Resolve(context.Background(), notifications.EventType{ID: "x", Code: "x"}, "fax")
		assert.ErrorIs(t, err, notifications.ErrUnknownChannel)
	})
}

func TestTemplates_SeedDefaults(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	seeded, err := f.eventTypes.SeedDefaults(ctx)
	require.NoError(t, err)
	custom := f.seedEventType(t, notifications.EventTypeParams{Code: "custom"})

	n, err := f.templates.SeedDefaults(ctx, append(seeded, custom)...)
	require.NoError(t, err)
	assert.Equal(t, len(seeded)*len(notifications.Channels), n)

	n, err = f.templates.SeedDefaults(ctx, seeded...)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = f.store.GetTemplate(ctx, custom.ID, notifications.ChannelInApp)
	assert.ErrorIs(t, err, notifications.ErrTemplateNotFound)
}

func TestTemplates_Upsert(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.templates.Upsert(ctx, notifications.Template{Channel: notifications.ChannelEmail})
	assert.ErrorIs(t, err, notifications.ErrInvalidEventType)

	_, err = f.templates.Upsert(ctx, notifications.Template{EventTypeID: "x", Channel: "fax"})
	assert.ErrorIs(t, err, notifications.ErrUnknownChannel)

	first, err := f.templates.Upsert(ctx, notifications.Template{EventTypeID: "x", Channel: notifications.ChannelEmail, TitleTemplate: "a", Active: true})
	require.NoError(t, err)
	second, err := f.templates.Upsert(ctx, notifications.Template{EventTypeID: "x", Channel: notifications.ChannelEmail, TitleTemplate: "b", Active: true})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "b", second.TitleTemplate)
}

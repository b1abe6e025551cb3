package logger_test

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/notifykit/pkg/logger"
)

func TestGroup(t *testing.T) {
	t.Parallel()

	attr := logger.Group("delivery", slog.String("channel", "email"), slog.Int("retry_count", 2))
	require.Equal(t, "delivery", attr.Key)
	require.Equal(t, slog.KindGroup, attr.Value.Kind())
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, "channel", g[0].Key)
	assert.Equal(t, "retry_count", g[1].Key)
}

func TestErrors(t *testing.T) {
	t.Parallel()

	first := errors.New("first")
	second := errors.New("second")

	attr := logger.Errors(first, nil, second)
	require.Equal(t, "errors", attr.Key)
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, first, g[0].Value.Any())
	assert.Equal(t, second, g[1].Value.Any())

	assert.True(t, logger.Errors(nil, nil).Equal(slog.Attr{}))
}

func TestError(t *testing.T) {
	t.Parallel()

	err := errors.New("smtp timeout")
	attr := logger.Error(err)
	require.Equal(t, "error", attr.Key)
	assert.Equal(t, err, attr.Value.Any())

	assert.True(t, logger.Error(nil).Equal(slog.Attr{}))
}

func TestDomainAttrs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		attr slog.Attr
		key  string
		want any
	}{
		{name: "user id", attr: logger.UserID("u-1"), key: "user_id", want: "u-1"},
		{name: "notification id", attr: logger.NotificationID("n-1"), key: "notification_id", want: "n-1"},
		{name: "channel", attr: logger.Channel("sms"), key: "channel", want: "sms"},
		{name: "event type", attr: logger.EventType("new_comment"), key: "event_type", want: "new_comment"},
		{name: "task id", attr: logger.TaskID("t-1"), key: "task_id", want: "t-1"},
		{name: "retry count", attr: logger.RetryCount(3), key: "retry_count", want: int64(3)},
		{name: "duration", attr: logger.Duration(time.Second), key: "duration", want: time.Second},
		{name: "component", attr: logger.Component("dispatcher"), key: "component", want: "dispatcher"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.key, tt.attr.Key)
			assert.Equal(t, tt.want, tt.attr.Value.Any())
		})
	}
}

func TestNilIDs(t *testing.T) {
	t.Parallel()

	assert.True(t, logger.UserID(nil).Equal(slog.Attr{}))
	assert.True(t, logger.TaskID(nil).Equal(slog.Attr{}))
}

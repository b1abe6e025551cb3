package notifications

import (
	"context"
	"log/slog"

	"github.com/dmitrymomot/notifykit/pkg/broadcast"
	"github.com/dmitrymomot/notifykit/pkg/logger"
)

// UserTopic is the realtime topic a user's in-app notifications are published on.
func UserTopic(userID string) string {
	return "user:" + userID
}

// InAppBackend delivers by persistence: the notification row is the in-app
// message, so Send always succeeds. Connected clients are told through an
// optional broadcaster on a best-effort basis.
type InAppBackend struct {
	broadcaster broadcast.Broadcaster[Notification]
	logger      *slog.Logger
}

// InAppOption configures InAppBackend.
type InAppOption func(*InAppBackend)

// WithRealtime publishes delivered notifications to b.
func WithRealtime(b broadcast.Broadcaster[Notification]) InAppOption {
	return func(i *InAppBackend) {
		i.broadcaster = b
	}
}

// WithInAppLogger sets the logger for realtime publish failures.
func WithInAppLogger(l *slog.Logger) InAppOption {
	return func(i *InAppBackend) {
		i.logger = l
	}
}

// NewInAppBackend creates the in-app backend. Without WithRealtime it only
// confirms persistence.
func NewInAppBackend(opts ...InAppOption) *InAppBackend {
	b := &InAppBackend{logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *InAppBackend) Channel() Channel { return ChannelInApp }

// Send publishes the notification on the user's topic. Publish errors are
// logged and never fail the delivery.
func (b *InAppBackend) Send(ctx context.Context, msg Message) error {
	if b.broadcaster == nil {
		return nil
	}
	if err := b.broadcaster.Publish(ctx, UserTopic(msg.Notification.UserID), msg.Notification); err != nil {
		b.logger.LogAttrs(ctx, slog.LevelWarn, "realtime publish failed",
			logger.UserID(msg.Notification.UserID),
			logger.NotificationID(msg.Notification.ID),
			logger.Error(err),
		)
	}
	return nil
}

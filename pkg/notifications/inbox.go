package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dmitrymomot/notifykit/pkg/logger"
)

// Inbox is the read side of in-app notifications, scoped to their owner.
type Inbox struct {
	storage Storage
	logger  *slog.Logger
	now     func() time.Time
}

// InboxOption configures an Inbox.
type InboxOption func(*Inbox)

// WithInboxLogger sets the logger. Defaults to slog.Default().
func WithInboxLogger(l *slog.Logger) InboxOption {
	return func(i *Inbox) {
		i.logger = l
	}
}

// NewInbox creates the read side for a user's notifications.
func NewInbox(storage Storage, opts ...InboxOption) *Inbox {
	i := &Inbox{
		storage: storage,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// List returns the user's notifications, newest first.
func (i *Inbox) List(ctx context.Context, userID string, opts ListOptions) ([]Notification, error) {
	list, err := i.storage.ListNotifications(ctx, userID, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return list, nil
}

// ListUnread is List restricted to unread notifications.
func (i *Inbox) ListUnread(ctx context.Context, userID string, opts ListOptions) ([]Notification, error) {
	opts.OnlyUnread = true
	return i.List(ctx, userID, opts)
}

// Get returns ErrNotificationNotFound when the notification belongs to
// another user.
func (i *Inbox) Get(ctx context.Context, userID, id string) (Notification, error) {
	n, err := i.storage.GetNotification(ctx, id)
	if err != nil {
		return Notification{}, err
	}
	if n.UserID != userID {
		return Notification{}, ErrNotificationNotFound
	}
	return n, nil
}

// MarkRead marks the listed notifications read. Ids owned by other users
// and already read ones are ignored. It returns how many changed.
func (i *Inbox) MarkRead(ctx context.Context, userID string, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return i.markRead(ctx, userID, ids...)
}

// MarkAllRead marks every unread notification of the user as read and
// returns how many changed.
func (i *Inbox) MarkAllRead(ctx context.Context, userID string) (int, error) {
	return i.markRead(ctx, userID)
}

func (i *Inbox) markRead(ctx context.Context, userID string, ids ...string) (int, error) {
	n, err := i.storage.MarkNotificationsRead(ctx, userID, i.now(), ids...)
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	i.logger.LogAttrs(ctx, slog.LevelDebug, "notifications marked read",
		logger.UserID(userID),
		slog.Int("count", n),
	)
	return n, nil
}

// CountUnread returns the number of unread notifications of the user.
func (i *Inbox) CountUnread(ctx context.Context, userID string) (int, error) {
	return i.storage.CountUnread(ctx, userID)
}

// Deliveries returns the per-channel delivery records of the user's notification.
func (i *Inbox) Deliveries(ctx context.Context, userID, id string) ([]DeliveryRecord, error) {
	if _, err := i.Get(ctx, userID, id); err != nil {
		return nil, err
	}
	return i.storage.ListDeliveries(ctx, id)
}

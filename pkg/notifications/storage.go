package notifications

import (
	"context"
	"time"
)

// EventTypeStorage persists event types. Lookups of a missing code return
// ErrEventTypeNotFound.
type EventTypeStorage interface {
	// CreateEventType inserts et unless its code exists. The stored row is
	// returned together with whether this call created it.
	CreateEventType(ctx context.Context, et EventType) (EventType, bool, error)
	GetEventType(ctx context.Context, id string) (EventType, error)
	GetEventTypeByCode(ctx context.Context, code string) (EventType, error)
	ListEventTypes(ctx context.Context, activeOnly bool) ([]EventType, error)
	UpdateEventType(ctx context.Context, et EventType) (EventType, error)
}

// PreferenceStorage persists channel toggles and per-event opt-ins.
type PreferenceStorage interface {
	// GetUserPreference returns ErrPreferenceNotFound for unseeded users.
	GetUserPreference(ctx context.Context, userID string) (UserPreference, error)
	GetOrCreateUserPreference(ctx context.Context, pref UserPreference) (UserPreference, bool, error)
	UpdateUserPreference(ctx context.Context, pref UserPreference) (UserPreference, error)
	GetOrCreateEventPreference(ctx context.Context, pref UserEventPreference) (UserEventPreference, bool, error)
	UpsertEventPreference(ctx context.Context, pref UserEventPreference) (UserEventPreference, error)
	// CreateEventPreferences inserts the rows whose (user, event type) pair is
	// absent and leaves existing rows untouched. It returns the inserted count.
	CreateEventPreferences(ctx context.Context, prefs []UserEventPreference) (int, error)
	ListEventPreferences(ctx context.Context, userID string) ([]UserEventPreference, error)
}

// NotificationStorage persists notifications.
type NotificationStorage interface {
	CreateNotification(ctx context.Context, n Notification) error
	GetNotification(ctx context.Context, id string) (Notification, error)
	ListNotifications(ctx context.Context, userID string, opts ListOptions) ([]Notification, error)
	// MarkNotificationsRead marks the user's notifications read. No ids means
	// all of them. It returns how many changed state.
	MarkNotificationsRead(ctx context.Context, userID string, at time.Time, ids ...string) (int, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	CountNotificationsSince(ctx context.Context, userID string, since time.Time) (int, error)
}

// DeliveryStorage persists delivery records, unique per (notification, channel).
type DeliveryStorage interface {
	GetOrCreateDelivery(ctx context.Context, rec DeliveryRecord) (DeliveryRecord, bool, error)
	GetDelivery(ctx context.Context, notificationID string, ch Channel) (DeliveryRecord, error)
	SaveDelivery(ctx context.Context, rec DeliveryRecord) error
	ListDeliveries(ctx context.Context, notificationID string) ([]DeliveryRecord, error)
}

// TemplateStorage persists templates, unique per (event type, channel).
type TemplateStorage interface {
	GetTemplate(ctx context.Context, eventTypeID string, ch Channel) (Template, error)
	GetOrCreateTemplate(ctx context.Context, tpl Template) (Template, bool, error)
	UpsertTemplate(ctx context.Context, tpl Template) (Template, error)
}

// Storage is the full persistence surface of the pipeline.
type Storage interface {
	EventTypeStorage
	PreferenceStorage
	NotificationStorage
	DeliveryStorage
	TemplateStorage
}

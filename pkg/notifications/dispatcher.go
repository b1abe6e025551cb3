package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/notifykit/pkg/logger"
)

// Payload keys added to every render context when absent.
const (
	KeyEventName = "event_name"
	KeyEventCode = "event_code"
	KeyUsername  = "username"
	KeyUserName  = "user_name"
)

// Dispatcher turns an event into persisted notifications and delivery tasks.
type Dispatcher struct {
	storage     Storage
	directory   UserDirectory
	preferences *Preferences
	templates   *Templates
	targets     *TargetResolver
	queue       TaskQueue
	metrics     *Metrics
	logger      *slog.Logger
	now         func() time.Time
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatcherLogger sets the logger. Defaults to slog.Default().
func WithDispatcherLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// WithDispatcherMetrics records dispatch and skip counters on m.
func WithDispatcherMetrics(m *Metrics) DispatcherOption {
	return func(d *Dispatcher) {
		d.metrics = m
	}
}

// WithTargetResolver replaces the default resolver built from the directory.
func WithTargetResolver(r *TargetResolver) DispatcherOption {
	return func(d *Dispatcher) {
		d.targets = r
	}
}

// NewDispatcher creates a Dispatcher. Every dependency is required;
// a missing one yields ErrMissingDependency. Without WithTargetResolver the
// built-in rules are used over directory.
func NewDispatcher(
	storage Storage,
	directory UserDirectory,
	preferences *Preferences,
	templates *Templates,
	queue TaskQueue,
	opts ...DispatcherOption,
) (*Dispatcher, error) {
	switch {
	case storage == nil:
		return nil, fmt.Errorf("%w: storage", ErrMissingDependency)
	case directory == nil:
		return nil, fmt.Errorf("%w: user directory", ErrMissingDependency)
	case preferences == nil:
		return nil, fmt.Errorf("%w: preferences", ErrMissingDependency)
	case templates == nil:
		return nil, fmt.Errorf("%w: templates", ErrMissingDependency)
	case queue == nil:
		return nil, fmt.Errorf("%w: task queue", ErrMissingDependency)
	}

	d := &Dispatcher{
		storage:     storage,
		directory:   directory,
		preferences: preferences,
		templates:   templates,
		queue:       queue,
		logger:      slog.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.targets == nil {
		d.targets = NewTargetResolver(directory)
	}
	return d, nil
}

// DispatchOption configures a single Dispatch call.
type DispatchOption func(*dispatchOptions)

type dispatchOptions struct {
	targets    []string
	hasTargets bool
}

// WithTargetUsers bypasses target resolution. An empty list targets nobody.
func WithTargetUsers(ids ...string) DispatchOption {
	return func(o *dispatchOptions) {
		o.targets = ids
		o.hasTargets = true
	}
}

// Dispatch creates one notification per eligible target user and enqueues a
// delivery task per enabled channel. Unknown or inactive event types yield an
// empty result. Failures for one user are logged and do not affect others.
func (d *Dispatcher) Dispatch(ctx context.Context, code string, data map[string]any, opts ...DispatchOption) ([]Notification, error) {
	var o dispatchOptions
	for _, opt := range opts {
		opt(&o)
	}

	et, err := d.storage.GetEventTypeByCode(ctx, code)
	if errors.Is(err, ErrEventTypeNotFound) {
		d.logger.LogAttrs(ctx, slog.LevelWarn, "dispatch for unknown event type", logger.EventType(code))
		return []Notification{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event type: %w", err)
	}
	if !et.Active {
		d.logger.LogAttrs(ctx, slog.LevelInfo, "dispatch for inactive event type", logger.EventType(code))
		return []Notification{}, nil
	}

	targets := dedupe(o.targets)
	if !o.hasTargets {
		targets, err = d.targets.Resolve(ctx, code, data)
		if err != nil {
			return nil, err
		}
	}

	created := make([]Notification, 0, len(targets))
	for _, userID := range targets {
		n, err := d.dispatchToUser(ctx, et, userID, data)
		if err != nil {
			d.logger.LogAttrs(ctx, slog.LevelError, "dispatch to user failed",
				logger.EventType(code),
				logger.UserID(userID),
				logger.Error(err),
			)
			d.metrics.candidateSkipped(code, "error")
			continue
		}
		if n != nil {
			created = append(created, *n)
		}
	}

	d.logger.LogAttrs(ctx, slog.LevelInfo, "event dispatched",
		logger.EventType(code),
		slog.Int("targets", len(targets)),
		slog.Int("notifications", len(created)),
	)
	return created, nil
}

// dispatchToUser returns nil, nil when the user is skipped.
func (d *Dispatcher) dispatchToUser(ctx context.Context, et EventType, userID string, data map[string]any) (n *Notification, err error) {
	defer func() {
		if r := recover(); r != nil {
			n = nil
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	user, err := d.directory.GetUser(ctx, userID)
	if errors.Is(err, ErrUserNotFound) {
		d.logger.LogAttrs(ctx, slog.LevelInfo, "dispatch target not found",
			logger.EventType(et.Code),
			logger.UserID(userID),
		)
		d.metrics.candidateSkipped(et.Code, "user_not_found")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	pref, err := d.preferences.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	enabled, err := d.preferences.IsEventEnabled(ctx, userID, et.Code)
	if err != nil {
		return nil, err
	}
	if !enabled {
		d.metrics.candidateSkipped(et.Code, "event_disabled")
		return nil, nil
	}

	tpl, err := d.templates.Resolve(ctx, et, ChannelInApp)
	if err != nil {
		return nil, err
	}
	title, body := Render(tpl, RenderContext(data, et, user))

	notif := Notification{
		ID:            uuid.NewString(),
		UserID:        userID,
		EventTypeID:   et.ID,
		EventTypeCode: et.Code,
		Title:         title,
		Body:          body,
		Data:          maps.Clone(data),
		CreatedAt:     d.now(),
	}
	if err := d.storage.CreateNotification(ctx, notif); err != nil {
		return nil, fmt.Errorf("failed to store notification: %w", err)
	}
	d.metrics.notificationDispatched(et.Code)

	for _, ch := range pref.EnabledChannels() {
		task := DeliveryTask{NotificationID: notif.ID, Channel: ch}
		if err := d.queue.EnqueueDelivery(ctx, task, 0); err != nil {
			d.logger.LogAttrs(ctx, slog.LevelError, "failed to enqueue delivery",
				logger.UserID(userID),
				logger.NotificationID(notif.ID),
				logger.Channel(ch.String()),
				logger.Error(err),
			)
		}
	}
	return &notif, nil
}

// RenderContext returns a copy of data with event and recipient fields added
// where the payload does not already set them.
func RenderContext(data map[string]any, et EventType, user User) map[string]any {
	out := make(map[string]any, len(data)+4)
	maps.Copy(out, data)
	setDefault(out, KeyEventName, et.Name)
	setDefault(out, KeyEventCode, et.Code)
	setDefault(out, KeyUsername, user.Username)
	setDefault(out, KeyUserName, user.DisplayName())
	return out
}

func setDefault(m map[string]any, key string, v any) {
	if _, ok := m[key]; !ok {
		m[key] = v
	}
}

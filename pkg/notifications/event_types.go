package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/dmitrymomot/notifykit/pkg/logger"
)

var eventCodeRegex = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

// EventTypeParams describes an event type to create.
type EventTypeParams struct {
	Code           string
	Name           string
	Description    string
	DefaultEnabled bool
	Inactive       bool
}

// EventTypeUpdate is a partial update; nil fields are left unchanged.
type EventTypeUpdate struct {
	Name           *string
	Description    *string
	DefaultEnabled *bool
	Active         *bool
}

// DefaultEventTypes are the event types provisioned by SeedDefaults.
var DefaultEventTypes = []EventTypeParams{
	{
		Code:           EventNewComment,
		Name:           "New comment",
		Description:    "Someone commented on a post you follow.",
		DefaultEnabled: true,
	},
	{
		Code:           EventUnrecognizedLogin,
		Name:           "Unrecognized login",
		Description:    "Your account was accessed from an unknown device.",
		DefaultEnabled: true,
	},
	{
		Code:           EventWeeklySummary,
		Name:           "Weekly summary",
		Description:    "A weekly digest of your notifications.",
		DefaultEnabled: true,
	},
}

// EventTypes manages the event type catalog.
type EventTypes struct {
	storage   Storage
	directory UserDirectory
	logger    *slog.Logger
}

// EventTypesOption configures EventTypes.
type EventTypesOption func(*EventTypes)

// WithEventTypesLogger sets the logger. Defaults to slog.Default().
func WithEventTypesLogger(l *slog.Logger) EventTypesOption {
	return func(e *EventTypes) {
		e.logger = l
	}
}

// NewEventTypes creates the event type registry. directory supplies the
// users that new event types are backfilled for.
func NewEventTypes(storage Storage, directory UserDirectory, opts ...EventTypesOption) *EventTypes {
	e := &EventTypes{
		storage:   storage,
		directory: directory,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Create returns the event type with params.Code, creating it if needed.
// Every existing user without a preference row for the type gets one seeded
// from DefaultEnabled. The backfill runs on every call, so a call that
// failed half way is completed by the next one.
func (e *EventTypes) Create(ctx context.Context, params EventTypeParams) (EventType, bool, error) {
	if !eventCodeRegex.MatchString(params.Code) {
		return EventType{}, false, fmt.Errorf("%w: code %q", ErrInvalidEventType, params.Code)
	}
	name := params.Name
	if name == "" {
		name = params.Code
	}

	et, created, err := e.storage.CreateEventType(ctx, EventType{
		Code:           params.Code,
		Name:           name,
		Description:    params.Description,
		Active:         !params.Inactive,
		DefaultEnabled: params.DefaultEnabled,
	})
	if err != nil {
		return EventType{}, false, fmt.Errorf("failed to create event type: %w", err)
	}
	n, err := e.backfill(ctx, et)
	if err != nil {
		return et, created, err
	}
	switch {
	case created:
		e.logger.LogAttrs(ctx, slog.LevelInfo, "event type created",
			logger.EventType(et.Code),
			slog.Int("preferences_backfilled", n),
		)
	case n > 0:
		e.logger.LogAttrs(ctx, slog.LevelInfo, "event preferences backfilled",
			logger.EventType(et.Code),
			slog.Int("preferences_backfilled", n),
		)
	}
	return et, created, nil
}

func (e *EventTypes) backfill(ctx context.Context, et EventType) (int, error) {
	userIDs, err := e.directory.ListUserIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list users: %w", err)
	}
	rows := make([]UserEventPreference, 0, len(userIDs))
	for _, id := range userIDs {
		rows = append(rows, UserEventPreference{
			UserID:        id,
			EventTypeID:   et.ID,
			EventTypeCode: et.Code,
			Enabled:       et.DefaultEnabled,
		})
	}
	n, err := e.storage.CreateEventPreferences(ctx, rows)
	if err != nil {
		return n, fmt.Errorf("failed to backfill event preferences: %w", err)
	}
	return n, nil
}

// Get returns the event type with code, or ErrEventTypeNotFound.
func (e *EventTypes) Get(ctx context.Context, code string) (EventType, error) {
	return e.storage.GetEventTypeByCode(ctx, code)
}

// List returns event types ordered by code, optionally only active ones.
func (e *EventTypes) List(ctx context.Context, activeOnly bool) ([]EventType, error) {
	return e.storage.ListEventTypes(ctx, activeOnly)
}

// Update applies the non-nil fields of upd to the event type with code.
func (e *EventTypes) Update(ctx context.Context, code string, upd EventTypeUpdate) (EventType, error) {
	et, err := e.storage.GetEventTypeByCode(ctx, code)
	if err != nil {
		return EventType{}, err
	}
	if upd.Name != nil {
		et.Name = *upd.Name
	}
	if upd.Description != nil {
		et.Description = *upd.Description
	}
	if upd.DefaultEnabled != nil {
		et.DefaultEnabled = *upd.DefaultEnabled
	}
	if upd.Active != nil {
		et.Active = *upd.Active
	}
	updated, err := e.storage.UpdateEventType(ctx, et)
	if err != nil {
		return EventType{}, fmt.Errorf("failed to update event type: %w", err)
	}
	return updated, nil
}

// Deactivate stops dispatch for the event type. Its rows are kept.
func (e *EventTypes) Deactivate(ctx context.Context, code string) (EventType, error) {
	inactive := false
	return e.Update(ctx, code, EventTypeUpdate{Active: &inactive})
}

// SeedDefaults creates DefaultEventTypes that do not exist yet and returns
// all of them.
func (e *EventTypes) SeedDefaults(ctx context.Context) ([]EventType, error) {
	out := make([]EventType, 0, len(DefaultEventTypes))
	for _, params := range DefaultEventTypes {
		et, _, err := e.Create(ctx, params)
		if err != nil {
			return out, err
		}
		out = append(out, et)
	}
	return out, nil
}

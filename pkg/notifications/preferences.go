package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/notifykit/pkg/logger"
)

// Preferences resolves and updates per-user delivery preferences. All
// get-or-create logic for preference rows lives here.
type Preferences struct {
	storage Storage
	logger  *slog.Logger
}

// PreferencesOption configures Preferences.
type PreferencesOption func(*Preferences)

// WithPreferencesLogger sets the logger. Defaults to slog.Default().
func WithPreferencesLogger(l *slog.Logger) PreferencesOption {
	return func(p *Preferences) {
		p.logger = l
	}
}

// NewPreferences creates the preference store over storage.
func NewPreferences(storage Storage, opts ...PreferencesOption) *Preferences {
	p := &Preferences{
		storage: storage,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// GetOrCreate returns the user's channel toggles, creating them with
// defaults on first use. A new user first gets an event preference row for
// every active event type, seeded from its default; the channel row is
// written last and marks the user as seeded.
func (p *Preferences) GetOrCreate(ctx context.Context, userID string) (UserPreference, error) {
	if userID == "" {
		return UserPreference{}, ErrUserNotFound
	}
	pref, err := p.storage.GetUserPreference(ctx, userID)
	if err == nil {
		return pref, nil
	}
	if !errors.Is(err, ErrPreferenceNotFound) {
		return UserPreference{}, fmt.Errorf("failed to get user preference: %w", err)
	}

	eventTypes, err := p.storage.ListEventTypes(ctx, true)
	if err != nil {
		return UserPreference{}, fmt.Errorf("failed to list event types: %w", err)
	}
	rows := make([]UserEventPreference, 0, len(eventTypes))
	for _, et := range eventTypes {
		rows = append(rows, UserEventPreference{
			UserID:        userID,
			EventTypeID:   et.ID,
			EventTypeCode: et.Code,
			Enabled:       et.DefaultEnabled,
		})
	}
	n, err := p.storage.CreateEventPreferences(ctx, rows)
	if err != nil {
		return UserPreference{}, fmt.Errorf("failed to backfill event preferences: %w", err)
	}

	pref, created, err := p.storage.GetOrCreateUserPreference(ctx, DefaultUserPreference(userID))
	if err != nil {
		return UserPreference{}, fmt.Errorf("failed to create user preference: %w", err)
	}
	if created {
		p.logger.LogAttrs(ctx, slog.LevelDebug, "user preferences created",
			logger.UserID(userID),
			slog.Int("event_preferences", n),
		)
	}
	return pref, nil
}

// IsEventEnabled reports whether the user wants the event type. Unknown and
// inactive event types are never enabled. Repeated calls with no
// intervening writes return the same value.
func (p *Preferences) IsEventEnabled(ctx context.Context, userID, code string) (bool, error) {
	et, err := p.storage.GetEventTypeByCode(ctx, code)
	if errors.Is(err, ErrEventTypeNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get event type: %w", err)
	}
	if !et.Active {
		return false, nil
	}
	return p.eventEnabled(ctx, userID, et)
}

func (p *Preferences) eventEnabled(ctx context.Context, userID string, et EventType) (bool, error) {
	pref, _, err := p.storage.GetOrCreateEventPreference(ctx, UserEventPreference{
		UserID:        userID,
		EventTypeID:   et.ID,
		EventTypeCode: et.Code,
		Enabled:       et.DefaultEnabled,
	})
	if err != nil {
		return false, fmt.Errorf("failed to get event preference: %w", err)
	}
	return pref.Enabled, nil
}

// EnabledChannels returns the user's switched-on channels in canonical order.
func (p *Preferences) EnabledChannels(ctx context.Context, userID string) ([]Channel, error) {
	pref, err := p.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	return pref.EnabledChannels(), nil
}

// UpdateChannels applies a partial update of the channel toggles.
func (p *Preferences) UpdateChannels(ctx context.Context, userID string, settings ChannelSettings) (UserPreference, error) {
	pref, err := p.GetOrCreate(ctx, userID)
	if err != nil {
		return UserPreference{}, err
	}
	settings.apply(&pref)
	updated, err := p.storage.UpdateUserPreference(ctx, pref)
	if err != nil {
		return UserPreference{}, fmt.Errorf("failed to update user preference: %w", err)
	}
	return updated, nil
}

// UpdateEventPreferences upserts each pair independently. Pairs that fail are
// reported in the joined error; the rest stay applied and are returned.
func (p *Preferences) UpdateEventPreferences(ctx context.Context, userID string, updates []EventPreferenceUpdate) ([]UserEventPreference, error) {
	applied := make([]UserEventPreference, 0, len(updates))
	var errs []error

	for _, u := range updates {
		et, err := p.storage.GetEventTypeByCode(ctx, u.EventTypeCode)
		if err != nil {
			errs = append(errs, fmt.Errorf("event type %q: %w", u.EventTypeCode, err))
			continue
		}
		pref, err := p.storage.UpsertEventPreference(ctx, UserEventPreference{
			UserID:        userID,
			EventTypeID:   et.ID,
			EventTypeCode: et.Code,
			Enabled:       u.Enabled,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("event type %q: %w", u.EventTypeCode, err))
			continue
		}
		applied = append(applied, pref)
	}

	if err := errors.Join(errs...); err != nil {
		p.logger.LogAttrs(ctx, slog.LevelWarn, "some event preferences were not updated",
			logger.UserID(userID),
			slog.Int("applied", len(applied)),
			logger.Error(err),
		)
		return applied, err
	}
	return applied, nil
}

// ListEventPreferences returns the user's stored event opt-ins ordered by
// event code.
func (p *Preferences) ListEventPreferences(ctx context.Context, userID string) ([]UserEventPreference, error) {
	prefs, err := p.storage.ListEventPreferences(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list event preferences: %w", err)
	}
	return prefs, nil
}

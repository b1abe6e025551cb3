package notifications

import (
	"maps"
	"time"
)

// EventType is a category of trigger. Code is the only stable external
// reference; event types are deactivated, never deleted.
type EventType struct {
	ID             string    `json:"id"`
	Code           string    `json:"code"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	Active         bool      `json:"active"`
	DefaultEnabled bool      `json:"default_enabled"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// UserPreference holds a user's global channel toggles.
type UserPreference struct {
	UserID       string    `json:"user_id"`
	InAppEnabled bool      `json:"in_app_enabled"`
	EmailEnabled bool      `json:"email_enabled"`
	SMSEnabled   bool      `json:"sms_enabled"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DefaultUserPreference returns the toggles a new user starts with:
// in-app and email on, SMS off.
func DefaultUserPreference(userID string) UserPreference {
	return UserPreference{
		UserID:       userID,
		InAppEnabled: true,
		EmailEnabled: true,
	}
}

// Enabled reports whether ch is switched on.
func (p UserPreference) Enabled(ch Channel) bool {
	switch ch {
	case ChannelInApp:
		return p.InAppEnabled
	case ChannelEmail:
		return p.EmailEnabled
	case ChannelSMS:
		return p.SMSEnabled
	}
	return false
}

// EnabledChannels returns the channels switched on, in canonical order.
func (p UserPreference) EnabledChannels() []Channel {
	out := make([]Channel, 0, numChannels)
	for _, ch := range Channels {
		if p.Enabled(ch) {
			out = append(out, ch)
		}
	}
	return out
}

// ChannelSettings is a partial update of UserPreference; nil fields are left unchanged.
type ChannelSettings struct {
	InApp *bool `json:"in_app,omitempty"`
	Email *bool `json:"email,omitempty"`
	SMS   *bool `json:"sms,omitempty"`
}

func (s ChannelSettings) apply(p *UserPreference) {
	if s.InApp != nil {
		p.InAppEnabled = *s.InApp
	}
	if s.Email != nil {
		p.EmailEnabled = *s.Email
	}
	if s.SMS != nil {
		p.SMSEnabled = *s.SMS
	}
}

// UserEventPreference is a user's opt-in for one event type.
type UserEventPreference struct {
	UserID        string    `json:"user_id"`
	EventTypeID   string    `json:"event_type_id"`
	EventTypeCode string    `json:"event_type_code"`
	Enabled       bool      `json:"enabled"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// EventPreferenceUpdate sets the opt-in for the event type with EventTypeCode.
type EventPreferenceUpdate struct {
	EventTypeCode string `json:"event_type_code"`
	Enabled       bool   `json:"enabled"`
}

// Notification is created once per (user, event) dispatch. Only Read and
// ReadAt change afterwards.
type Notification struct {
	ID            string         `json:"id"`
	UserID        string         `json:"user_id"`
	EventTypeID   string         `json:"event_type_id"`
	EventTypeCode string         `json:"event_type_code"`
	Title         string         `json:"title"`
	Body          string         `json:"body"`
	Data          map[string]any `json:"data,omitempty"`
	Read          bool           `json:"read"`
	ReadAt        *time.Time     `json:"read_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// MarkAsRead sets Read and stamps ReadAt.
func (n *Notification) MarkAsRead(at time.Time) {
	n.Read = true
	n.ReadAt = &at
}

func (n Notification) clone() Notification {
	n.Data = maps.Clone(n.Data)
	if n.ReadAt != nil {
		at := *n.ReadAt
		n.ReadAt = &at
	}
	return n
}

// Template is the title/body pair used to render an event type on a channel.
// Placeholders use the {name} syntax.
type Template struct {
	ID            string    `json:"id"`
	EventTypeID   string    `json:"event_type_id"`
	Channel       Channel   `json:"channel"`
	TitleTemplate string    `json:"title_template"`
	BodyTemplate  string    `json:"body_template"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// User is the subset of an account the pipeline needs to address delivery.
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Active   bool   `json:"active"`
}

// DisplayName returns Name, falling back to Username.
func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Username
}

// DeliveryTask is the queue payload for one (notification, channel) delivery.
type DeliveryTask struct {
	NotificationID string  `json:"notification_id"`
	Channel        Channel `json:"channel"`
}

// ListOptions filters and paginates notification listings.
type ListOptions struct {
	Limit      int        // 0 means no limit
	Offset     int        // rows to skip
	OnlyUnread bool       // exclude read notifications
	EventCodes []string   // restrict to these event types
	Since      *time.Time // created at or after
}

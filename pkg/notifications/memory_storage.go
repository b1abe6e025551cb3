package notifications

import (
	"cmp"
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

type pairKey struct {
	a string
	b string
}

// MemoryStorage is an in-memory Storage. Suitable for development and testing.
type MemoryStorage struct {
	mu sync.RWMutex

	eventTypes     map[string]EventType // id -> event type
	eventTypeCodes map[string]string    // code -> id
	userPrefs      map[string]UserPreference
	eventPrefs     map[pairKey]UserEventPreference // (user, event type id)
	notifications  map[string]Notification
	byUser         map[string][]string // user -> notification ids, insertion order
	deliveries     map[pairKey]DeliveryRecord // (notification, channel)
	templates      map[pairKey]Template       // (event type id, channel)

	now func() time.Time
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		eventTypes:     make(map[string]EventType),
		eventTypeCodes: make(map[string]string),
		userPrefs:      make(map[string]UserPreference),
		eventPrefs:     make(map[pairKey]UserEventPreference),
		notifications:  make(map[string]Notification),
		byUser:         make(map[string][]string),
		deliveries:     make(map[pairKey]DeliveryRecord),
		templates:      make(map[pairKey]Template),
		now:            time.Now,
	}
}

var _ Storage = (*MemoryStorage)(nil)

func (s *MemoryStorage) CreateEventType(_ context.Context, et EventType) (EventType, bool, error) {
	if et.Code == "" {
		return EventType{}, false, ErrInvalidEventType
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.eventTypeCodes[et.Code]; ok {
		return s.eventTypes[id], false, nil
	}

	now := s.now()
	if et.ID == "" {
		et.ID = uuid.NewString()
	}
	if et.CreatedAt.IsZero() {
		et.CreatedAt = now
	}
	et.UpdatedAt = now

	s.eventTypes[et.ID] = et
	s.eventTypeCodes[et.Code] = et.ID
	return et, true, nil
}

func (s *MemoryStorage) GetEventType(_ context.Context, id string) (EventType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	et, ok := s.eventTypes[id]
	if !ok {
		return EventType{}, ErrEventTypeNotFound
	}
	return et, nil
}

func (s *MemoryStorage) GetEventTypeByCode(_ context.Context, code string) (EventType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.eventTypeCodes[code]
	if !ok {
		return EventType{}, ErrEventTypeNotFound
	}
	return s.eventTypes[id], nil
}

func (s *MemoryStorage) ListEventTypes(_ context.Context, activeOnly bool) ([]EventType, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]EventType, 0, len(s.eventTypes))
	for _, et := range s.eventTypes {
		if activeOnly && !et.Active {
			continue
		}
		out = append(out, et)
	}
	slices.SortFunc(out, func(a, b EventType) int { return cmp.Compare(a.Code, b.Code) })
	return out, nil
}

func (s *MemoryStorage) UpdateEventType(_ context.Context, et EventType) (EventType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.eventTypes[et.ID]
	if !ok {
		return EventType{}, ErrEventTypeNotFound
	}
	// Code is immutable.
	et.Code = current.Code
	et.CreatedAt = current.CreatedAt
	et.UpdatedAt = s.now()
	s.eventTypes[et.ID] = et
	return et, nil
}

func (s *MemoryStorage) GetUserPreference(_ context.Context, userID string) (UserPreference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pref, ok := s.userPrefs[userID]
	if !ok {
		return UserPreference{}, ErrPreferenceNotFound
	}
	return pref, nil
}

func (s *MemoryStorage) GetOrCreateUserPreference(_ context.Context, pref UserPreference) (UserPreference, bool, error) {
	if pref.UserID == "" {
		return UserPreference{}, false, ErrUserNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.userPrefs[pref.UserID]; ok {
		return existing, false, nil
	}
	now := s.now()
	pref.CreatedAt = now
	pref.UpdatedAt = now
	s.userPrefs[pref.UserID] = pref
	return pref, true, nil
}

func (s *MemoryStorage) UpdateUserPreference(_ context.Context, pref UserPreference) (UserPreference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.userPrefs[pref.UserID]
	if !ok {
		return UserPreference{}, ErrPreferenceNotFound
	}
	pref.CreatedAt = existing.CreatedAt
	pref.UpdatedAt = s.now()
	s.userPrefs[pref.UserID] = pref
	return pref, nil
}

func (s *MemoryStorage) GetOrCreateEventPreference(_ context.Context, pref UserEventPreference) (UserEventPreference, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{pref.UserID, pref.EventTypeID}
	if existing, ok := s.eventPrefs[key]; ok {
		return existing, false, nil
	}
	pref = s.stampEventPreference(pref)
	s.eventPrefs[key] = pref
	return pref, true, nil
}

func (s *MemoryStorage) UpsertEventPreference(_ context.Context, pref UserEventPreference) (UserEventPreference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{pref.UserID, pref.EventTypeID}
	if existing, ok := s.eventPrefs[key]; ok {
		existing.Enabled = pref.Enabled
		existing.UpdatedAt = s.now()
		s.eventPrefs[key] = existing
		return existing, nil
	}
	pref = s.stampEventPreference(pref)
	s.eventPrefs[key] = pref
	return pref, nil
}

func (s *MemoryStorage) CreateEventPreferences(_ context.Context, prefs []UserEventPreference) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	created := 0
	for _, pref := range prefs {
		key := pairKey{pref.UserID, pref.EventTypeID}
		if _, ok := s.eventPrefs[key]; ok {
			continue
		}
		s.eventPrefs[key] = s.stampEventPreference(pref)
		created++
	}
	return created, nil
}

func (s *MemoryStorage) ListEventPreferences(_ context.Context, userID string) ([]UserEventPreference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []UserEventPreference{}
	for key, pref := range s.eventPrefs {
		if key.a != userID {
			continue
		}
		if et, ok := s.eventTypes[pref.EventTypeID]; ok {
			pref.EventTypeCode = et.Code
		}
		out = append(out, pref)
	}
	slices.SortFunc(out, func(a, b UserEventPreference) int { return cmp.Compare(a.EventTypeCode, b.EventTypeCode) })
	return out, nil
}

// stampEventPreference must be called with s.mu held.
func (s *MemoryStorage) stampEventPreference(pref UserEventPreference) UserEventPreference {
	now := s.now()
	pref.CreatedAt = now
	pref.UpdatedAt = now
	if et, ok := s.eventTypes[pref.EventTypeID]; ok {
		pref.EventTypeCode = et.Code
	}
	return pref
}

func (s *MemoryStorage) CreateNotification(_ context.Context, n Notification) error {
	if n.ID == "" {
		return errors.New("notification ID is required")
	}
	if n.UserID == "" {
		return errors.New("user ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.notifications[n.ID]; ok {
		return errors.New("notification already exists")
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now()
	}
	s.notifications[n.ID] = n.clone()
	s.byUser[n.UserID] = append(s.byUser[n.UserID], n.ID)
	return nil
}

func (s *MemoryStorage) GetNotification(_ context.Context, id string) (Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n, ok := s.notifications[id]
	if !ok {
		return Notification{}, ErrNotificationNotFound
	}
	return n.clone(), nil
}

// ListNotifications returns the user's notifications, newest first.
func (s *MemoryStorage) ListNotifications(_ context.Context, userID string, opts ListOptions) ([]Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.byUser[userID]
	filtered := make([]Notification, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		n := s.notifications[ids[i]]
		if opts.OnlyUnread && n.Read {
			continue
		}
		if len(opts.EventCodes) > 0 && !slices.Contains(opts.EventCodes, n.EventTypeCode) {
			continue
		}
		if opts.Since != nil && n.CreatedAt.Before(*opts.Since) {
			continue
		}
		filtered = append(filtered, n.clone())
	}
	// Stable sort keeps insertion order for equal timestamps.
	slices.SortStableFunc(filtered, func(a, b Notification) int { return b.CreatedAt.Compare(a.CreatedAt) })

	start := min(max(opts.Offset, 0), len(filtered))
	end := len(filtered)
	if opts.Limit > 0 {
		end = min(start+opts.Limit, end)
	}
	return filtered[start:end], nil
}

func (s *MemoryStorage) MarkNotificationsRead(_ context.Context, userID string, at time.Time, ids ...string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	targets := ids
	if len(targets) == 0 {
		targets = s.byUser[userID]
	}

	changed := 0
	for _, id := range targets {
		n, ok := s.notifications[id]
		if !ok || n.UserID != userID || n.Read {
			continue
		}
		n.MarkAsRead(at)
		s.notifications[id] = n
		changed++
	}
	return changed, nil
}

func (s *MemoryStorage) CountUnread(_ context.Context, userID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, id := range s.byUser[userID] {
		if !s.notifications[id].Read {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStorage) CountNotificationsSince(_ context.Context, userID string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, id := range s.byUser[userID] {
		if !s.notifications[id].CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStorage) GetOrCreateDelivery(_ context.Context, rec DeliveryRecord) (DeliveryRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{rec.NotificationID, string(rec.Channel)}
	if existing, ok := s.deliveries[key]; ok {
		return existing.clone(), false, nil
	}
	if _, ok := s.notifications[rec.NotificationID]; !ok {
		return DeliveryRecord{}, false, ErrNotificationNotFound
	}

	now := s.now()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Status == "" {
		rec.Status = DeliveryPending
	}
	rec.CreatedAt = now
	rec.UpdatedAt = now
	s.deliveries[key] = rec.clone()
	return rec, true, nil
}

func (s *MemoryStorage) GetDelivery(_ context.Context, notificationID string, ch Channel) (DeliveryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.deliveries[pairKey{notificationID, string(ch)}]
	if !ok {
		return DeliveryRecord{}, ErrDeliveryNotFound
	}
	return rec.clone(), nil
}

func (s *MemoryStorage) SaveDelivery(_ context.Context, rec DeliveryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{rec.NotificationID, string(rec.Channel)}
	existing, ok := s.deliveries[key]
	if !ok || existing.ID != rec.ID {
		return ErrDeliveryNotFound
	}
	rec.CreatedAt = existing.CreatedAt
	rec.RetryCount = max(rec.RetryCount, existing.RetryCount)
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = s.now()
	}
	s.deliveries[key] = rec.clone()
	return nil
}

// ListDeliveries returns the notification's records in channel order.
func (s *MemoryStorage) ListDeliveries(_ context.Context, notificationID string) ([]DeliveryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []DeliveryRecord{}
	for _, ch := range Channels {
		if rec, ok := s.deliveries[pairKey{notificationID, string(ch)}]; ok {
			out = append(out, rec.clone())
		}
	}
	return out, nil
}

func (s *MemoryStorage) GetTemplate(_ context.Context, eventTypeID string, ch Channel) (Template, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tpl, ok := s.templates[pairKey{eventTypeID, string(ch)}]
	if !ok {
		return Template{}, ErrTemplateNotFound
	}
	return tpl, nil
}

func (s *MemoryStorage) GetOrCreateTemplate(_ context.Context, tpl Template) (Template, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{tpl.EventTypeID, string(tpl.Channel)}
	if existing, ok := s.templates[key]; ok {
		return existing, false, nil
	}
	tpl = s.stampTemplate(tpl)
	s.templates[key] = tpl
	return tpl, true, nil
}

func (s *MemoryStorage) UpsertTemplate(_ context.Context, tpl Template) (Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{tpl.EventTypeID, string(tpl.Channel)}
	if existing, ok := s.templates[key]; ok {
		tpl.ID = existing.ID
		tpl.CreatedAt = existing.CreatedAt
		tpl.UpdatedAt = s.now()
		s.templates[key] = tpl
		return tpl, nil
	}
	tpl = s.stampTemplate(tpl)
	s.templates[key] = tpl
	return tpl, nil
}

func (s *MemoryStorage) stampTemplate(tpl Template) Template {
	now := s.now()
	if tpl.ID == "" {
		tpl.ID = uuid.NewString()
	}
	tpl.CreatedAt = now
	tpl.UpdatedAt = now
	return tpl
}

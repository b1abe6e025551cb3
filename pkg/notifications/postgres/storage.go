package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/pg"
)

// Storage is a notifications.Storage on the notification_* tables.
type Storage struct {
	pool *pgxpool.Pool
}

var _ notifications.Storage = (*Storage)(nil)

var ErrPoolNil = errors.New("postgres pool is nil")

// NewStorage creates the Postgres storage. The schema comes from the
// migrations package. Returns ErrPoolNil for a nil pool.
func NewStorage(pool *pgxpool.Pool) (*Storage, error) {
	if pool == nil {
		return nil, ErrPoolNil
	}
	return &Storage{pool: pool}, nil
}

// validUUID reports whether s can be compared with a uuid column.
func validUUID(s string) bool {
	return uuid.Validate(s) == nil
}

const eventTypeColumns = `id::text, code, name, description, active, default_enabled, created_at, updated_at`

func scanEventType(row pgx.Row) (notifications.EventType, error) {
	var et notifications.EventType
	err := row.Scan(&et.ID, &et.Code, &et.Name, &et.Description, &et.Active, &et.DefaultEnabled, &et.CreatedAt, &et.UpdatedAt)
	return et, err
}

// CreateEventType inserts et unless its code exists; the existing row is
// returned with created=false.
func (s *Storage) CreateEventType(ctx context.Context, et notifications.EventType) (notifications.EventType, bool, error) {
	if et.ID == "" {
		et.ID = uuid.NewString()
	}
	created, err := scanEventType(s.pool.QueryRow(ctx, `
		INSERT INTO notification_event_types (id, code, name, description, active, default_enabled)
		VALUES ($1::text::uuid, $2, $3, $4, $5, $6)
		ON CONFLICT (code) DO NOTHING
		RETURNING `+eventTypeColumns,
		et.ID, et.Code, et.Name, et.Description, et.Active, et.DefaultEnabled,
	))
	if err == nil {
		return created, true, nil
	}
	if !pg.IsNotFoundError(err) {
		return notifications.EventType{}, false, fmt.Errorf("insert event type: %w", err)
	}

	existing, err := s.GetEventTypeByCode(ctx, et.Code)
	if err != nil {
		return notifications.EventType{}, false, err
	}
	return existing, false, nil
}

func (s *Storage) GetEventType(ctx context.Context, id string) (notifications.EventType, error) {
	if !validUUID(id) {
		return notifications.EventType{}, notifications.ErrEventTypeNotFound
	}
	et, err := scanEventType(s.pool.QueryRow(ctx,
		`SELECT `+eventTypeColumns+` FROM notification_event_types WHERE id = $1::text::uuid`, id))
	if pg.IsNotFoundError(err) {
		return notifications.EventType{}, notifications.ErrEventTypeNotFound
	}
	if err != nil {
		return notifications.EventType{}, fmt.Errorf("get event type: %w", err)
	}
	return et, nil
}

func (s *Storage) GetEventTypeByCode(ctx context.Context, code string) (notifications.EventType, error) {
	et, err := scanEventType(s.pool.QueryRow(ctx,
		`SELECT `+eventTypeColumns+` FROM notification_event_types WHERE code = $1`, code))
	if pg.IsNotFoundError(err) {
		return notifications.EventType{}, notifications.ErrEventTypeNotFound
	}
	if err != nil {
		return notifications.EventType{}, fmt.Errorf("get event type by code: %w", err)
	}
	return et, nil
}

func (s *Storage) ListEventTypes(ctx context.Context, activeOnly bool) ([]notifications.EventType, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+eventTypeColumns+`
		FROM notification_event_types
		WHERE active OR NOT $1
		ORDER BY code`, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list event types: %w", err)
	}
	return collect(rows, scanEventType)
}

func (s *Storage) UpdateEventType(ctx context.Context, et notifications.EventType) (notifications.EventType, error) {
	if !validUUID(et.ID) {
		return notifications.EventType{}, notifications.ErrEventTypeNotFound
	}
	updated, err := scanEventType(s.pool.QueryRow(ctx, `
		UPDATE notification_event_types
		SET name = $2, description = $3, active = $4, default_enabled = $5, updated_at = now()
		WHERE id = $1::text::uuid
		RETURNING `+eventTypeColumns,
		et.ID, et.Name, et.Description, et.Active, et.DefaultEnabled,
	))
	if pg.IsNotFoundError(err) {
		return notifications.EventType{}, notifications.ErrEventTypeNotFound
	}
	if err != nil {
		return notifications.EventType{}, fmt.Errorf("update event type: %w", err)
	}
	return updated, nil
}

const userPreferenceColumns = `user_id, in_app_enabled, email_enabled, sms_enabled, created_at, updated_at`

func scanUserPreference(row pgx.Row) (notifications.UserPreference, error) {
	var p notifications.UserPreference
	err := row.Scan(&p.UserID, &p.InAppEnabled, &p.EmailEnabled, &p.SMSEnabled, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (s *Storage) GetUserPreference(ctx context.Context, userID string) (notifications.UserPreference, error) {
	pref, err := scanUserPreference(s.pool.QueryRow(ctx,
		`SELECT `+userPreferenceColumns+` FROM notification_user_preferences WHERE user_id = $1`, userID))
	if pg.IsNotFoundError(err) {
		return notifications.UserPreference{}, notifications.ErrPreferenceNotFound
	}
	if err != nil {
		return notifications.UserPreference{}, fmt.Errorf("get user preference: %w", err)
	}
	return pref, nil
}

func (s *Storage) GetOrCreateUserPreference(ctx context.Context, pref notifications.UserPreference) (notifications.UserPreference, bool, error) {
	created, err := scanUserPreference(s.pool.QueryRow(ctx, `
		INSERT INTO notification_user_preferences (user_id, in_app_enabled, email_enabled, sms_enabled)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO NOTHING
		RETURNING `+userPreferenceColumns,
		pref.UserID, pref.InAppEnabled, pref.EmailEnabled, pref.SMSEnabled,
	))
	if err == nil {
		return created, true, nil
	}
	if !pg.IsNotFoundError(err) {
		return notifications.UserPreference{}, false, fmt.Errorf("insert user preference: %w", err)
	}

	existing, err := scanUserPreference(s.pool.QueryRow(ctx,
		`SELECT `+userPreferenceColumns+` FROM notification_user_preferences WHERE user_id = $1`, pref.UserID))
	if err != nil {
		return notifications.UserPreference{}, false, fmt.Errorf("get user preference: %w", err)
	}
	return existing, false, nil
}

func (s *Storage) UpdateUserPreference(ctx context.Context, pref notifications.UserPreference) (notifications.UserPreference, error) {
	updated, err := scanUserPreference(s.pool.QueryRow(ctx, `
		UPDATE notification_user_preferences
		SET in_app_enabled = $2, email_enabled = $3, sms_enabled = $4, updated_at = now()
		WHERE user_id = $1
		RETURNING `+userPreferenceColumns,
		pref.UserID, pref.InAppEnabled, pref.EmailEnabled, pref.SMSEnabled,
	))
	if pg.IsNotFoundError(err) {
		return notifications.UserPreference{}, notifications.ErrPreferenceNotFound
	}
	if err != nil {
		return notifications.UserPreference{}, fmt.Errorf("update user preference: %w", err)
	}
	return updated, nil
}

// eventPreferenceReturning joins the event type code onto a written row.
const eventPreferenceReturning = `
	RETURNING user_id, event_type_id::text,
		(SELECT code FROM notification_event_types WHERE id = event_type_id),
		enabled, created_at, updated_at`

func scanEventPreference(row pgx.Row) (notifications.UserEventPreference, error) {
	var p notifications.UserEventPreference
	err := row.Scan(&p.UserID, &p.EventTypeID, &p.EventTypeCode, &p.Enabled, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (s *Storage) GetOrCreateEventPreference(ctx context.Context, pref notifications.UserEventPreference) (notifications.UserEventPreference, bool, error) {
	if !validUUID(pref.EventTypeID) {
		return notifications.UserEventPreference{}, false, notifications.ErrEventTypeNotFound
	}
	created, err := scanEventPreference(s.pool.QueryRow(ctx, `
		INSERT INTO notification_user_event_preferences (user_id, event_type_id, enabled)
		VALUES ($1, $2::text::uuid, $3)
		ON CONFLICT (user_id, event_type_id) DO NOTHING`+eventPreferenceReturning,
		pref.UserID, pref.EventTypeID, pref.Enabled,
	))
	if err == nil {
		return created, true, nil
	}
	if pg.IsForeignKeyViolationError(err) {
		return notifications.UserEventPreference{}, false, notifications.ErrEventTypeNotFound
	}
	if !pg.IsNotFoundError(err) {
		return notifications.UserEventPreference{}, false, fmt.Errorf("insert event preference: %w", err)
	}

	existing, err := scanEventPreference(s.pool.QueryRow(ctx, `
		SELECT p.user_id, p.event_type_id::text, et.code, p.enabled, p.created_at, p.updated_at
		FROM notification_user_event_preferences p
		JOIN notification_event_types et ON et.id = p.event_type_id
		WHERE p.user_id = $1 AND p.event_type_id = $2::text::uuid`,
		pref.UserID, pref.EventTypeID,
	))
	if err != nil {
		return notifications.UserEventPreference{}, false, fmt.Errorf("get event preference: %w", err)
	}
	return existing, false, nil
}

func (s *Storage) UpsertEventPreference(ctx context.Context, pref notifications.UserEventPreference) (notifications.UserEventPreference, error) {
	if !validUUID(pref.EventTypeID) {
		return notifications.UserEventPreference{}, notifications.ErrEventTypeNotFound
	}
	stored, err := scanEventPreference(s.pool.QueryRow(ctx, `
		INSERT INTO notification_user_event_preferences (user_id, event_type_id, enabled)
		VALUES ($1, $2::text::uuid, $3)
		ON CONFLICT (user_id, event_type_id)
		DO UPDATE SET enabled = EXCLUDED.enabled, updated_at = now()`+eventPreferenceReturning,
		pref.UserID, pref.EventTypeID, pref.Enabled,
	))
	if pg.IsForeignKeyViolationError(err) {
		return notifications.UserEventPreference{}, notifications.ErrEventTypeNotFound
	}
	if err != nil {
		return notifications.UserEventPreference{}, fmt.Errorf("upsert event preference: %w", err)
	}
	return stored, nil
}

// CreateEventPreferences bulk-inserts prefs, skipping existing pairs, and
// returns the number inserted.
func (s *Storage) CreateEventPreferences(ctx context.Context, prefs []notifications.UserEventPreference) (int, error) {
	if len(prefs) == 0 {
		return 0, nil
	}
	userIDs := make([]string, 0, len(prefs))
	eventTypeIDs := make([]string, 0, len(prefs))
	enabled := make([]bool, 0, len(prefs))
	for _, p := range prefs {
		if !validUUID(p.EventTypeID) {
			return 0, fmt.Errorf("%w: %q", notifications.ErrEventTypeNotFound, p.EventTypeID)
		}
		userIDs = append(userIDs, p.UserID)
		eventTypeIDs = append(eventTypeIDs, p.EventTypeID)
		enabled = append(enabled, p.Enabled)
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO notification_user_event_preferences (user_id, event_type_id, enabled)
		SELECT u, e::uuid, en
		FROM unnest($1::text[], $2::text[], $3::bool[]) AS t(u, e, en)
		ON CONFLICT (user_id, event_type_id) DO NOTHING`,
		userIDs, eventTypeIDs, enabled,
	)
	if err != nil {
		return 0, fmt.Errorf("bulk insert event preferences: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *Storage) ListEventPreferences(ctx context.Context, userID string) ([]notifications.UserEventPreference, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT p.user_id, p.event_type_id::text, et.code, p.enabled, p.created_at, p.updated_at
		FROM notification_user_event_preferences p
		JOIN notification_event_types et ON et.id = p.event_type_id
		WHERE p.user_id = $1
		ORDER BY et.code`, userID)
	if err != nil {
		return nil, fmt.Errorf("list event preferences: %w", err)
	}
	return collect(rows, scanEventPreference)
}

const notificationSelect = `
	SELECT n.id::text, n.user_id, n.event_type_id::text, et.code, n.title, n.body, n.data,
		n.read, n.read_at, n.created_at
	FROM notifications n
	JOIN notification_event_types et ON et.id = n.event_type_id`

func scanNotification(row pgx.Row) (notifications.Notification, error) {
	var n notifications.Notification
	err := row.Scan(&n.ID, &n.UserID, &n.EventTypeID, &n.EventTypeCode, &n.Title, &n.Body, &n.Data,
		&n.Read, &n.ReadAt, &n.CreatedAt)
	return n, err
}

func (s *Storage) CreateNotification(ctx context.Context, n notifications.Notification) error {
	if !validUUID(n.ID) {
		return fmt.Errorf("notification id %q is not a uuid", n.ID)
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	data := n.Data
	if data == nil {
		data = map[string]any{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO notifications (id, user_id, event_type_id, title, body, data, read, read_at, created_at)
		VALUES ($1::text::uuid, $2, $3::text::uuid, $4, $5, $6, $7, $8, $9)`,
		n.ID, n.UserID, n.EventTypeID, n.Title, n.Body, data, n.Read, n.ReadAt, n.CreatedAt,
	)
	if pg.IsForeignKeyViolationError(err) {
		return notifications.ErrEventTypeNotFound
	}
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *Storage) GetNotification(ctx context.Context, id string) (notifications.Notification, error) {
	if !validUUID(id) {
		return notifications.Notification{}, notifications.ErrNotificationNotFound
	}
	n, err := scanNotification(s.pool.QueryRow(ctx, notificationSelect+` WHERE n.id = $1::text::uuid`, id))
	if pg.IsNotFoundError(err) {
		return notifications.Notification{}, notifications.ErrNotificationNotFound
	}
	if err != nil {
		return notifications.Notification{}, fmt.Errorf("get notification: %w", err)
	}
	return n, nil
}

// ListNotifications returns the user's notifications newest first, filtered
// and paginated by opts.
func (s *Storage) ListNotifications(ctx context.Context, userID string, opts notifications.ListOptions) ([]notifications.Notification, error) {
	var (
		where = []string{"n.user_id = $1"}
		args  = []any{userID}
	)
	if opts.OnlyUnread {
		where = append(where, "NOT n.read")
	}
	if len(opts.EventCodes) > 0 {
		args = append(args, opts.EventCodes)
		where = append(where, fmt.Sprintf("et.code = ANY($%d::text[])", len(args)))
	}
	if opts.Since != nil {
		args = append(args, *opts.Since)
		where = append(where, fmt.Sprintf("n.created_at >= $%d", len(args)))
	}

	query := notificationSelect + " WHERE " + strings.Join(where, " AND ") + " ORDER BY n.created_at DESC, n.id"
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return collect(rows, scanNotification)
}

// MarkNotificationsRead marks the user's unread notifications among ids as
// read. Ids that are not UUIDs are ignored.
func (s *Storage) MarkNotificationsRead(ctx context.Context, userID string, at time.Time, ids ...string) (int, error) {
	if len(ids) == 0 {
		tag, err := s.pool.Exec(ctx, `
			UPDATE notifications SET read = TRUE, read_at = $2
			WHERE user_id = $1 AND NOT read`, userID, at)
		if err != nil {
			return 0, fmt.Errorf("mark all notifications read: %w", err)
		}
		return int(tag.RowsAffected()), nil
	}

	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if validUUID(id) {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE notifications SET read = TRUE, read_at = $2
		WHERE user_id = $1 AND NOT read AND id = ANY($3::text[]::uuid[])`, userID, at, valid)
	if err != nil {
		return 0, fmt.Errorf("mark notifications read: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *Storage) CountUnread(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM notifications WHERE user_id = $1 AND NOT read`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return n, nil
}

func (s *Storage) CountNotificationsSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `
		SELECT count(*) FROM notifications WHERE user_id = $1 AND created_at >= $2`, userID, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count notifications: %w", err)
	}
	return n, nil
}

const deliveryColumns = `id::text, notification_id::text, channel, status, attempted_at, delivered_at,
	failed_at, error, retry_count, created_at, updated_at`

func scanDelivery(row pgx.Row) (notifications.DeliveryRecord, error) {
	var (
		r       notifications.DeliveryRecord
		channel string
		status  string
	)
	err := row.Scan(&r.ID, &r.NotificationID, &channel, &status, &r.AttemptedAt, &r.DeliveredAt,
		&r.FailedAt, &r.Error, &r.RetryCount, &r.CreatedAt, &r.UpdatedAt)
	r.Channel = notifications.Channel(channel)
	r.Status = notifications.DeliveryStatus(status)
	return r, err
}

// GetOrCreateDelivery inserts rec unless the (notification, channel) pair
// exists. A missing notification yields notifications.ErrNotificationNotFound.
func (s *Storage) GetOrCreateDelivery(ctx context.Context, rec notifications.DeliveryRecord) (notifications.DeliveryRecord, bool, error) {
	if !validUUID(rec.NotificationID) {
		return notifications.DeliveryRecord{}, false, notifications.ErrNotificationNotFound
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Status == "" {
		rec.Status = notifications.DeliveryPending
	}

	created, err := scanDelivery(s.pool.QueryRow(ctx, `
		INSERT INTO notification_deliveries (id, notification_id, channel, status)
		VALUES ($1::text::uuid, $2::text::uuid, $3, $4)
		ON CONFLICT (notification_id, channel) DO NOTHING
		RETURNING `+deliveryColumns,
		rec.ID, rec.NotificationID, string(rec.Channel), string(rec.Status),
	))
	if err == nil {
		return created, true, nil
	}
	if pg.IsForeignKeyViolationError(err) {
		return notifications.DeliveryRecord{}, false, notifications.ErrNotificationNotFound
	}
	if !pg.IsNotFoundError(err) {
		return notifications.DeliveryRecord{}, false, fmt.Errorf("insert delivery: %w", err)
	}

	existing, err := s.GetDelivery(ctx, rec.NotificationID, rec.Channel)
	if err != nil {
		return notifications.DeliveryRecord{}, false, err
	}
	return existing, false, nil
}

func (s *Storage) GetDelivery(ctx context.Context, notificationID string, ch notifications.Channel) (notifications.DeliveryRecord, error) {
	if !validUUID(notificationID) {
		return notifications.DeliveryRecord{}, notifications.ErrDeliveryNotFound
	}
	rec, err := scanDelivery(s.pool.QueryRow(ctx, `
		SELECT `+deliveryColumns+` FROM notification_deliveries
		WHERE notification_id = $1::text::uuid AND channel = $2`, notificationID, string(ch)))
	if pg.IsNotFoundError(err) {
		return notifications.DeliveryRecord{}, notifications.ErrDeliveryNotFound
	}
	if err != nil {
		return notifications.DeliveryRecord{}, fmt.Errorf("get delivery: %w", err)
	}
	return rec, nil
}

// SaveDelivery writes the mutable fields. retry_count never decreases.
func (s *Storage) SaveDelivery(ctx context.Context, rec notifications.DeliveryRecord) error {
	if !validUUID(rec.ID) {
		return notifications.ErrDeliveryNotFound
	}
	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE notification_deliveries
		SET status = $2, attempted_at = $3, delivered_at = $4, failed_at = $5, error = $6,
		    retry_count = GREATEST(retry_count, $7), updated_at = $8
		WHERE id = $1::text::uuid`,
		rec.ID, string(rec.Status), rec.AttemptedAt, rec.DeliveredAt, rec.FailedAt, rec.Error,
		rec.RetryCount, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("save delivery: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return notifications.ErrDeliveryNotFound
	}
	return nil
}

func (s *Storage) ListDeliveries(ctx context.Context, notificationID string) ([]notifications.DeliveryRecord, error) {
	if !validUUID(notificationID) {
		return []notifications.DeliveryRecord{}, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+deliveryColumns+` FROM notification_deliveries
		WHERE notification_id = $1::text::uuid
		ORDER BY array_position(ARRAY['in_app', 'email', 'sms'], channel)`, notificationID)
	if err != nil {
		return nil, fmt.Errorf("list deliveries: %w", err)
	}
	return collect(rows, scanDelivery)
}

const templateColumns = `id::text, event_type_id::text, channel, title_template, body_template, active,
	created_at, updated_at`

func scanTemplate(row pgx.Row) (notifications.Template, error) {
	var (
		t       notifications.Template
		channel string
	)
	err := row.Scan(&t.ID, &t.EventTypeID, &channel, &t.TitleTemplate, &t.BodyTemplate, &t.Active,
		&t.CreatedAt, &t.UpdatedAt)
	t.Channel = notifications.Channel(channel)
	return t, err
}

func (s *Storage) GetTemplate(ctx context.Context, eventTypeID string, ch notifications.Channel) (notifications.Template, error) {
	if !validUUID(eventTypeID) {
		return notifications.Template{}, notifications.ErrTemplateNotFound
	}
	tpl, err := scanTemplate(s.pool.QueryRow(ctx, `
		SELECT `+templateColumns+` FROM notification_templates
		WHERE event_type_id = $1::text::uuid AND channel = $2`, eventTypeID, string(ch)))
	if pg.IsNotFoundError(err) {
		return notifications.Template{}, notifications.ErrTemplateNotFound
	}
	if err != nil {
		return notifications.Template{}, fmt.Errorf("get template: %w", err)
	}
	return tpl, nil
}

func (s *Storage) GetOrCreateTemplate(ctx context.Context, tpl notifications.Template) (notifications.Template, bool, error) {
	if !validUUID(tpl.EventTypeID) {
		return notifications.Template{}, false, notifications.ErrEventTypeNotFound
	}
	if tpl.ID == "" {
		tpl.ID = uuid.NewString()
	}
	created, err := scanTemplate(s.pool.QueryRow(ctx, `
		INSERT INTO notification_templates (id, event_type_id, channel, title_template, body_template, active)
		VALUES ($1::text::uuid, $2::text::uuid, $3, $4, $5, $6)
		ON CONFLICT (event_type_id, channel) DO NOTHING
		RETURNING `+templateColumns,
		tpl.ID, tpl.EventTypeID, string(tpl.Channel), tpl.TitleTemplate, tpl.BodyTemplate, tpl.Active,
	))
	if err == nil {
		return created, true, nil
	}
	if pg.IsForeignKeyViolationError(err) {
		return notifications.Template{}, false, notifications.ErrEventTypeNotFound
	}
	if !pg.IsNotFoundError(err) {
		return notifications.Template{}, false, fmt.Errorf("insert template: %w", err)
	}

	existing, err := s.GetTemplate(ctx, tpl.EventTypeID, tpl.Channel)
	if err != nil {
		return notifications.Template{}, false, err
	}
	return existing, false, nil
}

func (s *Storage) UpsertTemplate(ctx context.Context, tpl notifications.Template) (notifications.Template, error) {
	if !validUUID(tpl.EventTypeID) {
		return notifications.Template{}, notifications.ErrEventTypeNotFound
	}
	if tpl.ID == "" {
		tpl.ID = uuid.NewString()
	}
	stored, err := scanTemplate(s.pool.QueryRow(ctx, `
		INSERT INTO notification_templates (id, event_type_id, channel, title_template, body_template, active)
		VALUES ($1::text::uuid, $2::text::uuid, $3, $4, $5, $6)
		ON CONFLICT (event_type_id, channel) DO UPDATE
		SET title_template = EXCLUDED.title_template,
		    body_template = EXCLUDED.body_template,
		    active = EXCLUDED.active,
		    updated_at = now()
		RETURNING `+templateColumns,
		tpl.ID, tpl.EventTypeID, string(tpl.Channel), tpl.TitleTemplate, tpl.BodyTemplate, tpl.Active,
	))
	if pg.IsForeignKeyViolationError(err) {
		return notifications.Template{}, notifications.ErrEventTypeNotFound
	}
	if err != nil {
		return notifications.Template{}, fmt.Errorf("upsert template: %w", err)
	}
	return stored, nil
}

func collect[T any](rows pgx.Rows, scan func(pgx.Row) (T, error)) ([]T, error) {
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

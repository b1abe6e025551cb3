package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/notifykit/pkg/notifications"
	"github.com/dmitrymomot/notifykit/pkg/pg"
)

// UserDirectory reads accounts from a table owned by the host application.
// The table needs the columns id, username, name, email, phone and is_active.
type UserDirectory struct {
	pool  *pgxpool.Pool
	table string
}

var _ notifications.UserDirectory = (*UserDirectory)(nil)

// DirectoryOption configures a UserDirectory.
type DirectoryOption func(*UserDirectory)

// WithUsersTable sets the accounts table name. Defaults to "users".
func WithUsersTable(name string) DirectoryOption {
	return func(d *UserDirectory) {
		if name != "" {
			d.table = name
		}
	}
}

// NewUserDirectory reads users from the pool. Returns ErrPoolNil for a nil pool.
func NewUserDirectory(pool *pgxpool.Pool, opts ...DirectoryOption) (*UserDirectory, error) {
	if pool == nil {
		return nil, ErrPoolNil
	}
	d := &UserDirectory{pool: pool, table: "users"}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func (d *UserDirectory) tableName() string {
	return pgx.Identifier{d.table}.Sanitize()
}

// GetUser returns the user with id, or notifications.ErrUserNotFound.
func (d *UserDirectory) GetUser(ctx context.Context, id string) (notifications.User, error) {
	var u notifications.User
	err := d.pool.QueryRow(ctx, `
		SELECT id::text, username, name, email, phone, is_active
		FROM `+d.tableName()+` WHERE id::text = $1`, id,
	).Scan(&u.ID, &u.Username, &u.Name, &u.Email, &u.Phone, &u.Active)
	if pg.IsNotFoundError(err) {
		return notifications.User{}, notifications.ErrUserNotFound
	}
	if err != nil {
		return notifications.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// ListActiveUserIDs returns the ids of rows with is_active set, ordered by id.
func (d *UserDirectory) ListActiveUserIDs(ctx context.Context) ([]string, error) {
	return d.listIDs(ctx, `SELECT id::text FROM `+d.tableName()+` WHERE is_active ORDER BY id`)
}

// ListUserIDs returns every id, ordered by id.
func (d *UserDirectory) ListUserIDs(ctx context.Context) ([]string, error) {
	return d.listIDs(ctx, `SELECT id::text FROM `+d.tableName()+` ORDER BY id`)
}

func (d *UserDirectory) listIDs(ctx context.Context, query string) ([]string, error) {
	rows, err := d.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return ids, nil
}

package notifications

import (
	"context"
	"slices"
	"sync"
)

// UserDirectory is the read-only view of accounts the pipeline addresses.
// Account storage itself is owned elsewhere.
type UserDirectory interface {
	// GetUser returns ErrUserNotFound for unknown ids.
	GetUser(ctx context.Context, id string) (User, error)
	ListActiveUserIDs(ctx context.Context) ([]string, error)
	ListUserIDs(ctx context.Context) ([]string, error)
}

// MemoryUserDirectory is an in-memory UserDirectory.
type MemoryUserDirectory struct {
	mu    sync.RWMutex
	users map[string]User
}

// NewMemoryUserDirectory creates a directory holding users.
func NewMemoryUserDirectory(users ...User) *MemoryUserDirectory {
	d := &MemoryUserDirectory{users: make(map[string]User, len(users))}
	for _, u := range users {
		d.users[u.ID] = u
	}
	return d
}

// Put adds or replaces a user.
func (d *MemoryUserDirectory) Put(u User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = u
}

// Delete removes the user with id, if present.
func (d *MemoryUserDirectory) Delete(id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.users, id)
}

func (d *MemoryUserDirectory) GetUser(_ context.Context, id string) (User, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

// ListActiveUserIDs returns the ids of active users in ascending order.
func (d *MemoryUserDirectory) ListActiveUserIDs(_ context.Context) ([]string, error) {
	return d.ids(true), nil
}

// ListUserIDs returns every user id in ascending order.
func (d *MemoryUserDirectory) ListUserIDs(_ context.Context) ([]string, error) {
	return d.ids(false), nil
}

func (d *MemoryUserDirectory) ids(activeOnly bool) []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]string, 0, len(d.users))
	for id, u := range d.users {
		if activeOnly && !u.Active {
			continue
		}
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

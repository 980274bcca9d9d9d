package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/garyjia/claim-workflow/internal/application/port"
	"github.com/garyjia/claim-workflow/internal/domain/identity"
)

// UserDirectory is an in-memory port.UserDirectory
type UserDirectory struct {
	mu     sync.RWMutex
	users  map[int64]identity.Identity
	nextID int64
}

// NewUserDirectory creates a directory seeded with users. Seeds with a zero ID get one assigned.
func NewUserDirectory(seed ...identity.Identity) *UserDirectory {
	d := &UserDirectory{users: make(map[int64]identity.Identity)}
	for _, u := range seed {
		u := u
		if u.ID == 0 {
			d.nextID++
			u.ID = d.nextID
		} else if u.ID > d.nextID {
			d.nextID = u.ID
		}
		d.users[u.ID] = u
	}
	return d
}

// Create stores a new identity
func (d *UserDirectory) Create(_ context.Context, user *identity.Identity) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.nextID++
	user.ID = d.nextID
	d.users[user.ID] = *user
	return nil
}

// GetByID returns a copy of the user
func (d *UserDirectory) GetByID(_ context.Context, id int64) (*identity.Identity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if u, ok := d.users[id]; ok {
		return &u, nil
	}
	return nil, nil
}

// List returns all users ordered by ID
func (d *UserDirectory) List(_ context.Context) ([]*identity.Identity, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*identity.Identity, 0, len(d.users))
	for _, u := range d.users {
		u := u
		out = append(out, &u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ListReports returns the IDs of users reporting to managerID
func (d *UserDirectory) ListReports(_ context.Context, managerID int64) ([]int64, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	ids := make([]int64, 0)
	for _, u := range d.users {
		if managerID != 0 && u.ManagerID == managerID {
			ids = append(ids, u.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// SetManager changes a user's manager
func (d *UserDirectory) SetManager(_ context.Context, userID, managerID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	u, ok := d.users[userID]
	if !ok {
		return fmt.Errorf("user %d not found", userID)
	}
	u.ManagerID = managerID
	d.users[userID] = u
	return nil
}

var _ port.UserDirectory = (*UserDirectory)(nil)

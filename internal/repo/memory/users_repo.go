package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/geocoder89/expensehub/internal/domain/user"
	"github.com/google/uuid"
)

type UsersRepo struct {
	mu         sync.RWMutex
	items      map[string]user.User
	byUsername map[string]string // username -> id
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		items:      make(map[string]user.User),
		byUsername: make(map[string]string),
	}
}

func (r *UsersRepo) Create(ctx context.Context, username, passwordHash string) (user.User, error) {
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}

	now := time.Now().UTC()
	u := user.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	key := usernameKey(username)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byUsername[key]; taken {
		return user.User{}, user.ErrUsernameTaken
	}

	r.items[u.ID] = u
	r.byUsername[key] = u.ID

	return u, nil
}

func (r *UsersRepo) GetByUsername(ctx context.Context, username string) (user.User, error) {
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byUsername[usernameKey(username)]
	if !ok {
		return user.User{}, user.ErrUserNotFound
	}

	return r.items[id], nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	if err := ctx.Err(); err != nil {
		return user.User{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.items[id]
	if !ok {
		return user.User{}, user.ErrUserNotFound
	}

	return u, nil
}

func (r *UsersRepo) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[id]
	if !ok {
		return user.ErrUserNotFound
	}

	u.PasswordHash = passwordHash
	u.UpdatedAt = time.Now().UTC()
	r.items[id] = u

	return nil
}

// Exists is used by the expense repo to keep the owner reference valid.
func (r *UsersRepo) Exists(id string) bool {
	r.mu.RLock()
	_, ok := r.items[id]
	r.mu.RUnlock()
	return ok
}

// usernames are unique exactly as typed, matching the postgres unique index
func usernameKey(username string) string {
	return strings.TrimSpace(username)
}

package repository

import (
	"context"
	"sync"
	"time"

	"github.com/AlibekovAA/social-auth/internal/common/clock"
	"github.com/AlibekovAA/social-auth/internal/user/domain"
)

// MemoryRepository enforces the same uniqueness rules as the users table.
type MemoryRepository struct {
	mu         sync.RWMutex
	clock      clock.Clock
	byID       map[domain.ID]domain.User
	byEmail    map[string]domain.ID
	byUsername map[string]domain.ID
}

func NewMemoryRepository(c clock.Clock) *MemoryRepository {
	if c == nil {
		c = clock.NewRealClock()
	}
	return &MemoryRepository{
		clock:      c,
		byID:       make(map[domain.ID]domain.User),
		byEmail:    make(map[string]domain.ID),
		byUsername: make(map[string]domain.ID),
	}
}

func (r *MemoryRepository) Create(_ context.Context, user domain.User) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byEmail[user.Email]; ok {
		return domain.User{}, ErrEmailAlreadyExists
	}
	if _, ok := r.byUsername[user.Username]; ok {
		return domain.User{}, ErrUsernameAlreadyExists
	}

	now := r.clock.Now()
	user.IsActive = true
	user.CreatedAt = now
	user.UpdatedAt = now

	r.byID[user.ID] = user
	r.byEmail[user.Email] = user.ID
	r.byUsername[user.Username] = user.ID
	return user, nil
}

func (r *MemoryRepository) FindByEmail(_ context.Context, email string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookup(r.byEmail[email])
}

func (r *MemoryRepository) FindByUsername(_ context.Context, username string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookup(r.byUsername[username])
}

func (r *MemoryRepository) FindByID(_ context.Context, id domain.ID) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lookup(id)
}

func (r *MemoryRepository) UpdateLastActive(_ context.Context, id domain.ID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	user.LastActiveAt = &at
	user.UpdatedAt = at
	r.byID[id] = user
	return nil
}

func (r *MemoryRepository) lookup(id domain.ID) (domain.User, error) {
	if id == "" {
		return domain.User{}, ErrUserNotFound
	}
	user, ok := r.byID[id]
	if !ok {
		return domain.User{}, ErrUserNotFound
	}
	return user, nil
}

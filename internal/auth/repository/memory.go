package repository

import (
	"context"
	"maps"
	"sync"
	"time"

	authdomain "github.com/AlibekovAA/social-auth/internal/auth/domain"
)

// MemoryRefreshTokenRepository keeps the ledger in process. A transaction
// holds the store lock for its whole body and restores the previous state
// when the body fails.
type MemoryRefreshTokenRepository struct {
	mu      sync.Mutex
	records map[string]authdomain.RefreshToken
}

func NewMemoryRefreshTokenRepository() *MemoryRefreshTokenRepository {
	return &MemoryRefreshTokenRepository{records: make(map[string]authdomain.RefreshToken)}
}

func (r *MemoryRefreshTokenRepository) TxManager() TxManager {
	return r
}

func (r *MemoryRefreshTokenRepository) Create(_ context.Context, token authdomain.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (*memoryTx)(r).create(token)
}

func (r *MemoryRefreshTokenRepository) FindActive(_ context.Context, hash, userID string, now time.Time) (authdomain.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (*memoryTx)(r).findActive(hash, userID, now)
}

func (r *MemoryRefreshTokenRepository) RevokeByID(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return (*memoryTx)(r).revoke(id)
}

func (r *MemoryRefreshTokenRepository) RevokeByTokenHash(_ context.Context, hash string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for id, rec := range r.records {
		if rec.TokenHash == hash && !rec.IsRevoked {
			rec.IsRevoked = true
			r.records[id] = rec
			n++
		}
	}
	return n, nil
}

// Get returns a record by id regardless of state. Used by tests.
func (r *MemoryRefreshTokenRepository) Get(id string) (authdomain.RefreshToken, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	return rec, ok
}

// All returns a copy of every record.
func (r *MemoryRefreshTokenRepository) All() []authdomain.RefreshToken {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]authdomain.RefreshToken, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec)
	}
	return out
}

func (r *MemoryRefreshTokenRepository) WithTx(ctx context.Context, fn func(context.Context, RefreshTokenTx) error) (err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := maps.Clone(r.records)
	defer func() {
		if p := recover(); p != nil {
			r.records = snapshot
			panic(p)
		}
		if err != nil {
			r.records = snapshot
		}
	}()

	return fn(ctx, (*memoryTx)(r))
}

// memoryTx operates on the records map and assumes the caller holds mu.
type memoryTx MemoryRefreshTokenRepository

func (t *memoryTx) FindActiveForUpdate(_ context.Context, hash, userID string, now time.Time) (authdomain.RefreshToken, error) {
	return t.findActive(hash, userID, now)
}

func (t *memoryTx) RevokeByID(_ context.Context, id string) error {
	return t.revoke(id)
}

func (t *memoryTx) Create(_ context.Context, token authdomain.RefreshToken) error {
	return t.create(token)
}

func (t *memoryTx) create(token authdomain.RefreshToken) error {
	t.records[token.ID] = token.Persisted()
	return nil
}

func (t *memoryTx) findActive(hash, userID string, now time.Time) (authdomain.RefreshToken, error) {
	for _, rec := range t.records {
		if rec.Matches(hash, userID) && rec.IsActive(now) {
			return rec, nil
		}
	}
	return authdomain.RefreshToken{}, ErrRefreshTokenNotFound
}

func (t *memoryTx) revoke(id string) error {
	rec, ok := t.records[id]
	if !ok || rec.IsRevoked {
		return ErrRefreshTokenNotFound
	}
	rec.IsRevoked = true
	t.records[id] = rec
	return nil
}

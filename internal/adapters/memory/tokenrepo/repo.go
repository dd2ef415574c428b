package tokenrepo

import (
	"context"
	"sync"
	"time"

	"github.com/traveal-app/traveal-api/internal/domain"
	"github.com/traveal-app/traveal-api/internal/ports/out/tokenrepo"
)

// Repo is an in-memory implementation of tokenrepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu    sync.RWMutex
	byJTI map[string]tokenrepo.Record
}

func NewRepo() *Repo {
	return &Repo{
		byJTI: make(map[string]tokenrepo.Record),
	}
}

func (r *Repo) Store(ctx context.Context, rec tokenrepo.Record) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byJTI[rec.JTI] = rec
	return nil
}

func (r *Repo) Get(ctx context.Context, jti string, now time.Time) (tokenrepo.Record, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.byJTI[jti]
	if !ok || !rec.ExpiresAt.After(now) {
		return tokenrepo.Record{}, tokenrepo.ErrNotFound
	}
	return rec, nil
}

func (r *Repo) Delete(ctx context.Context, jti string) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byJTI[jti]; !ok {
		return tokenrepo.ErrNotFound
	}
	delete(r.byJTI, jti)
	return nil
}

func (r *Repo) DeleteAllForUser(ctx context.Context, userID domain.UserID) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	for jti, rec := range r.byJTI {
		if rec.UserID == userID {
			delete(r.byJTI, jti)
		}
	}
	return nil
}

func (r *Repo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for jti, rec := range r.byJTI {
		if !rec.ExpiresAt.After(now) {
			delete(r.byJTI, jti)
			n++
		}
	}
	return n, nil
}

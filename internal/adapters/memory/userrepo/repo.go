package userrepo

import (
	"context"
	"sync"

	"github.com/traveal-app/traveal-api/internal/domain"
	"github.com/traveal-app/traveal-api/internal/ports/out/userrepo"
)

// Repo is an in-memory implementation of userrepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu       sync.RWMutex
	byID     map[domain.UserID]userrepo.User
	byUUID   map[string]domain.UserID
	byDevice map[string]domain.UserID
}

func NewRepo() *Repo {
	return &Repo{
		byID:     make(map[domain.UserID]userrepo.User),
		byUUID:   make(map[string]domain.UserID),
		byDevice: make(map[string]domain.UserID),
	}
}

func (r *Repo) Create(ctx context.Context, u userrepo.User) error {
	_ = ctx
	if u.ID == "" {
		return userrepo.ErrAlreadyExists
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[u.ID]; ok {
		return userrepo.ErrAlreadyExists
	}
	if _, ok := r.byUUID[u.UUID]; ok {
		return userrepo.ErrAlreadyExists
	}
	if u.DeviceID != nil {
		if _, ok := r.byDevice[*u.DeviceID]; ok {
			return userrepo.ErrDeviceAlreadyBound
		}
	}
	r.byID[u.ID] = cloneUser(u)
	r.byUUID[u.UUID] = u.ID
	if u.DeviceID != nil {
		r.byDevice[*u.DeviceID] = u.ID
	}
	return nil
}

func (r *Repo) Update(ctx context.Context, u userrepo.User) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	prev, ok := r.byID[u.ID]
	if !ok {
		return userrepo.ErrNotFound
	}
	if u.DeviceID != nil {
		if owner, bound := r.byDevice[*u.DeviceID]; bound && owner != u.ID {
			return userrepo.ErrDeviceAlreadyBound
		}
	}
	if prev.DeviceID != nil {
		delete(r.byDevice, *prev.DeviceID)
	}
	delete(r.byUUID, prev.UUID)
	r.byID[u.ID] = cloneUser(u)
	r.byUUID[u.UUID] = u.ID
	if u.DeviceID != nil {
		r.byDevice[*u.DeviceID] = u.ID
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.UserID) (userrepo.User, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.byID[id]
	if !ok {
		return userrepo.User{}, userrepo.ErrNotFound
	}
	return cloneUser(u), nil
}

func (r *Repo) GetByUUID(ctx context.Context, uuid string) (userrepo.User, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byUUID[uuid]
	if !ok {
		return userrepo.User{}, userrepo.ErrNotFound
	}
	return cloneUser(r.byID[id]), nil
}

func (r *Repo) GetByDeviceID(ctx context.Context, deviceID string) (userrepo.User, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byDevice[deviceID]
	if !ok {
		return userrepo.User{}, userrepo.ErrNotFound
	}
	return cloneUser(r.byID[id]), nil
}

func (r *Repo) Delete(ctx context.Context, id domain.UserID) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byID[id]
	if !ok {
		return userrepo.ErrNotFound
	}
	delete(r.byID, id)
	delete(r.byUUID, u.UUID)
	if u.DeviceID != nil {
		delete(r.byDevice, *u.DeviceID)
	}
	return nil
}

func cloneUser(u userrepo.User) userrepo.User {
	cp := u
	cp.DeviceID = cloneStringPtr(u.DeviceID)
	if u.Preferences != nil {
		cp.Preferences = clonePrefs(u.Preferences)
	}
	return cp
}

// clonePrefs copies the preferences tree one nested level deep, which is as
// deep as the default preference shape nests.
func clonePrefs(prefs map[string]any) map[string]any {
	cp := make(map[string]any, len(prefs))
	for k, v := range prefs {
		if m, ok := v.(map[string]any); ok {
			inner := make(map[string]any, len(m))
			for ik, iv := range m {
				inner[ik] = iv
			}
			cp[k] = inner
			continue
		}
		cp[k] = v
	}
	return cp
}

func cloneStringPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

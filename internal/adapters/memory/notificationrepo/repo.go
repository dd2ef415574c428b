package notificationrepo

import (
	"context"
	"sort"
	"sync"

	"github.com/traveal-app/traveal-api/internal/domain"
	"github.com/traveal-app/traveal-api/internal/ports/out/notificationrepo"
)

// Repo is an in-memory implementation of notificationrepo.Repository.
// It is safe for concurrent use.
type Repo struct {
	mu   sync.RWMutex
	byID map[domain.NotificationID]notificationrepo.Notification
}

func NewRepo() *Repo {
	return &Repo{
		byID: make(map[domain.NotificationID]notificationrepo.Notification),
	}
}

func (r *Repo) Create(ctx context.Context, n notificationrepo.Notification) error {
	_ = ctx
	if n.ID == "" {
		return notificationrepo.ErrAlreadyExists
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[n.ID]; ok {
		return notificationrepo.ErrAlreadyExists
	}
	r.byID[n.ID] = cloneNotification(n)
	return nil
}

func (r *Repo) ListForUser(ctx context.Context, userID domain.UserID, offset, limit int) ([]notificationrepo.Notification, int, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	matched := make([]notificationrepo.Notification, 0)
	for _, n := range r.byID {
		if n.UserID == userID {
			matched = append(matched, n)
		}
	}
	// Newest first; ID breaks ties so pagination stays stable.
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return string(a.ID) < string(b.ID)
	})

	total := len(matched)
	if offset >= total {
		return []notificationrepo.Notification{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	out := make([]notificationrepo.Notification, 0, end-offset)
	for _, n := range matched[offset:end] {
		out = append(out, cloneNotification(n))
	}
	return out, total, nil
}

func (r *Repo) UnreadCount(ctx context.Context, userID domain.UserID) (int, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, rec := range r.byID {
		if rec.UserID == userID && !rec.Read {
			n++
		}
	}
	return n, nil
}

func (r *Repo) MarkRead(ctx context.Context, userID domain.UserID, id domain.NotificationID) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.byID[id]
	if !ok || n.UserID != userID {
		return notificationrepo.ErrNotFound
	}
	n.Read = true
	r.byID[id] = n
	return nil
}

func (r *Repo) MarkAllRead(ctx context.Context, userID domain.UserID) (int, error) {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	updated := 0
	for id, n := range r.byID {
		if n.UserID == userID && !n.Read {
			n.Read = true
			r.byID[id] = n
			updated++
		}
	}
	return updated, nil
}

func (r *Repo) DeleteForUser(ctx context.Context, userID domain.UserID) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, n := range r.byID {
		if n.UserID == userID {
			delete(r.byID, id)
		}
	}
	return nil
}

func cloneNotification(n notificationrepo.Notification) notificationrepo.Notification {
	cp := n
	if n.Data != nil {
		cp.Data = make(map[string]any, len(n.Data))
		for k, v := range n.Data {
			cp.Data[k] = v
		}
	}
	return cp
}

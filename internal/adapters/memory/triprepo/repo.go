package triprepo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/traveal-app/traveal-api/internal/domain"
	"github.com/traveal-app/traveal-api/internal/ports/out/triprepo"
)

// Repo is an in-memory implementation of triprepo.Repository.
// It is safe for concurrent use: the mutex is the serialization point for
// the single-active-trip and monotonic-timestamp invariants.
type Repo struct {
	mu           sync.RWMutex
	byID         map[domain.TripID]triprepo.Trip
	activeByUser map[domain.UserID]domain.TripID
}

func NewRepo() *Repo {
	return &Repo{
		byID:         make(map[domain.TripID]triprepo.Trip),
		activeByUser: make(map[domain.UserID]domain.TripID),
	}
}

func (r *Repo) CreateActive(ctx context.Context, t triprepo.Trip) error {
	_ = ctx
	if t.ID == "" || t.Status != domain.TripStatusActive {
		return triprepo.ErrAlreadyExists
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[t.ID]; ok {
		return triprepo.ErrAlreadyExists
	}
	if _, ok := r.activeByUser[t.UserID]; ok {
		return triprepo.ErrActiveTripExists
	}
	r.byID[t.ID] = cloneTrip(t)
	r.activeByUser[t.UserID] = t.ID
	return nil
}

func (r *Repo) Save(ctx context.Context, t triprepo.Trip, prev domain.TripStatus) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.byID[t.ID]
	if !ok {
		return triprepo.ErrNotFound
	}
	if stored.Status != prev {
		return triprepo.ErrStatusConflict
	}
	if stored.Status == domain.TripStatusActive && t.Status != domain.TripStatusActive {
		delete(r.activeByUser, stored.UserID)
	}
	cp := cloneTrip(t)
	cp.Points = stored.Points
	r.byID[t.ID] = cp
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.TripID) (triprepo.Trip, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.byID[id]
	if !ok {
		return triprepo.Trip{}, triprepo.ErrNotFound
	}
	return cloneTrip(t), nil
}

func (r *Repo) GetActiveForUser(ctx context.Context, userID domain.UserID) (triprepo.Trip, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.activeByUser[userID]
	if !ok {
		return triprepo.Trip{}, triprepo.ErrNotFound
	}
	return cloneTrip(r.byID[id]), nil
}

func (r *Repo) AppendPoint(ctx context.Context, id domain.TripID, pt domain.LocationPoint) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byID[id]
	if !ok {
		return triprepo.ErrNotFound
	}
	if t.Status != domain.TripStatusActive {
		return triprepo.ErrTripNotActive
	}
	if n := len(t.Points); n > 0 && pt.Timestamp.Before(t.Points[n-1].Timestamp) {
		return triprepo.ErrPointOutOfOrder
	}
	t.Points = append(append([]domain.LocationPoint(nil), t.Points...), pt)
	r.byID[id] = t
	return nil
}

func (r *Repo) ListCompleted(ctx context.Context, userID domain.UserID, filter triprepo.ListFilter, offset, limit int) ([]triprepo.Trip, int, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	matched := make([]triprepo.Trip, 0)
	for _, t := range r.byID {
		if t.UserID != userID || t.Status != domain.TripStatusCompleted {
			continue
		}
		if !matchFilter(t, filter) {
			continue
		}
		matched = append(matched, t)
	}
	sortTrips(matched)

	total := len(matched)
	if offset >= total {
		return []triprepo.Trip{}, total, nil
	}
	end := offset + limit
	if limit <= 0 || end > total {
		end = total
	}
	out := make([]triprepo.Trip, 0, end-offset)
	for _, t := range matched[offset:end] {
		cp := cloneTrip(t)
		cp.Points = nil
		out = append(out, cp)
	}
	return out, total, nil
}

func (r *Repo) CountForUser(ctx context.Context, userID domain.UserID) (int, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, t := range r.byID {
		if t.UserID == userID && t.Status != domain.TripStatusDeleted {
			n++
		}
	}
	return n, nil
}

func (r *Repo) StatsForUser(ctx context.Context, userID domain.UserID) (triprepo.Stats, error) {
	_ = ctx
	r.mu.RLock()
	defer r.mu.RUnlock()
	stats := triprepo.Stats{ModeBreakdown: make(map[domain.TravelMode]int)}
	for _, t := range r.byID {
		if t.UserID != userID || t.Status != domain.TripStatusCompleted || !t.Validated {
			continue
		}
		stats.TotalTrips++
		if t.DistanceMeters != nil {
			stats.TotalDistanceMeters += *t.DistanceMeters
		}
		if t.Mode != nil {
			stats.ModeBreakdown[*t.Mode]++
		}
	}
	if stats.TotalTrips > 0 {
		stats.AverageDistanceMeters = stats.TotalDistanceMeters / float64(stats.TotalTrips)
	}
	return stats, nil
}

func (r *Repo) DeleteForUser(ctx context.Context, userID domain.UserID) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, t := range r.byID {
		if t.UserID == userID {
			delete(r.byID, id)
		}
	}
	delete(r.activeByUser, userID)
	return nil
}

func matchFilter(t triprepo.Trip, f triprepo.ListFilter) bool {
	if f.Mode != nil && (t.Mode == nil || *t.Mode != *f.Mode) {
		return false
	}
	if f.Validated != nil && t.Validated != *f.Validated {
		return false
	}
	if f.From != nil && t.StartedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && t.StartedAt.After(*f.To) {
		return false
	}
	return true
}

func sortTrips(ts []triprepo.Trip) {
	// Newest first; ID breaks ties so pagination stays stable.
	sort.Slice(ts, func(i, j int) bool {
		a, b := ts[i], ts[j]
		if !a.StartedAt.Equal(b.StartedAt) {
			return a.StartedAt.After(b.StartedAt)
		}
		return string(a.ID) < string(b.ID)
	})
}

func cloneTrip(t triprepo.Trip) triprepo.Trip {
	cp := t
	cp.StartAddress = cloneStringPtr(t.StartAddress)
	cp.EndAddress = cloneStringPtr(t.EndAddress)
	cp.EndLatitude = cloneFloatPtr(t.EndLatitude)
	cp.EndLongitude = cloneFloatPtr(t.EndLongitude)
	cp.EndedAt = cloneTimePtr(t.EndedAt)
	cp.DistanceMeters = cloneFloatPtr(t.DistanceMeters)
	if t.Mode != nil {
		m := *t.Mode
		cp.Mode = &m
	}
	if t.Purpose != nil {
		p := *t.Purpose
		cp.Purpose = &p
	}
	if t.Points != nil {
		cp.Points = append([]domain.LocationPoint(nil), t.Points...)
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

func cloneFloatPtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTimePtr(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

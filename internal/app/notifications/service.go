// Package notifications implements the read side of user notifications:
// listing, unread counts, and read-state updates. Creation happens in the
// services that produce notifications, such as trip validation.
package notifications

import (
	"context"
	"errors"

	"github.com/traveal-app/traveal-api/internal/domain"
	"github.com/traveal-app/traveal-api/internal/ports/out/notificationrepo"
	"github.com/traveal-app/traveal-api/pkg/apierror"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type ListInput struct {
	Page  int
	Limit int
}

type Service struct {
	notifs notificationrepo.Repository
}

func NewService(notifs notificationrepo.Repository) *Service {
	return &Service{notifs: notifs}
}

// List returns the user's notifications, newest first, plus the total count.
func (s *Service) List(ctx context.Context, userID domain.UserID, in ListInput) ([]domain.Notification, int, error) {
	page := in.Page
	if page < 1 {
		page = 1
	}
	limit := in.Limit
	if limit < 1 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	ns, total, err := s.notifs.ListForUser(ctx, userID, (page-1)*limit, limit)
	if err != nil {
		return nil, 0, err
	}
	out := make([]domain.Notification, 0, len(ns))
	for _, n := range ns {
		out = append(out, toDomain(n))
	}
	return out, total, nil
}

func (s *Service) UnreadCount(ctx context.Context, userID domain.UserID) (int, error) {
	return s.notifs.UnreadCount(ctx, userID)
}

func (s *Service) MarkRead(ctx context.Context, userID domain.UserID, id domain.NotificationID) error {
	if err := s.notifs.MarkRead(ctx, userID, id); err != nil {
		if errors.Is(err, notificationrepo.ErrNotFound) {
			return apierror.NotFound("NOTIFICATION_NOT_FOUND", "notification not found")
		}
		return err
	}
	return nil
}

// MarkAllRead marks every unread notification read and returns how many
// were updated.
func (s *Service) MarkAllRead(ctx context.Context, userID domain.UserID) (int, error) {
	return s.notifs.MarkAllRead(ctx, userID)
}

func toDomain(n notificationrepo.Notification) domain.Notification {
	out := domain.Notification{
		ID:        n.ID,
		UserID:    n.UserID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
	if n.Data != nil {
		out.Data = make(map[string]any, len(n.Data))
		for k, v := range n.Data {
			out.Data[k] = v
		}
	}
	return out
}

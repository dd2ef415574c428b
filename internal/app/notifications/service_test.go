package notifications

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	memnotificationrepo "github.com/traveal-app/traveal-api/internal/adapters/memory/notificationrepo"
	"github.com/traveal-app/traveal-api/internal/domain"
	"github.com/traveal-app/traveal-api/internal/ports/out/notificationrepo"
	"github.com/traveal-app/traveal-api/pkg/apierror"
)

const owner = domain.UserID("00000000-0000-0000-0000-000000000001")

func seed(t *testing.T, repo *memnotificationrepo.Repo, n int) []domain.NotificationID {
	t.Helper()
	base := time.Unix(1700000000, 0).UTC()
	ids := make([]domain.NotificationID, 0, n)
	for i := 0; i < n; i++ {
		id := domain.NotificationID(fmt.Sprintf("n-%03d", i))
		err := repo.Create(context.Background(), notificationrepo.Notification{
			ID:        id,
			UserID:    owner,
			Type:      domain.NotificationTypeSystem,
			Title:     fmt.Sprintf("notice %d", i),
			Message:   "hello",
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
		ids = append(ids, id)
	}
	return ids
}

func TestListPaginatesNewestFirst(t *testing.T) {
	t.Parallel()
	repo := memnotificationrepo.NewRepo()
	svc := NewService(repo)
	seed(t, repo, 25)

	ns, total, err := svc.List(context.Background(), owner, ListInput{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 25 || len(ns) != 20 {
		t.Fatalf("unexpected default page: total=%d len=%d", total, len(ns))
	}
	if ns[0].CreatedAt.Before(ns[1].CreatedAt) {
		t.Fatal("expected newest-first ordering")
	}

	ns, total, err = svc.List(context.Background(), owner, ListInput{Page: 2, Limit: 20})
	if err != nil || total != 25 || len(ns) != 5 {
		t.Fatalf("unexpected second page: total=%d len=%d err=%v", total, len(ns), err)
	}

	// An oversized limit is clamped rather than rejected.
	ns, _, err = svc.List(context.Background(), owner, ListInput{Limit: 10000})
	if err != nil || len(ns) != 25 {
		t.Fatalf("unexpected clamped page: len=%d err=%v", len(ns), err)
	}
}

func TestReadStateTransitions(t *testing.T) {
	t.Parallel()
	repo := memnotificationrepo.NewRepo()
	svc := NewService(repo)
	ids := seed(t, repo, 3)
	ctx := context.Background()

	n, err := svc.UnreadCount(ctx, owner)
	if err != nil || n != 3 {
		t.Fatalf("UnreadCount = %d, %v", n, err)
	}

	if err := svc.MarkRead(ctx, owner, ids[0]); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if n, _ = svc.UnreadCount(ctx, owner); n != 2 {
		t.Fatalf("UnreadCount after MarkRead = %d", n)
	}

	updated, err := svc.MarkAllRead(ctx, owner)
	if err != nil || updated != 2 {
		t.Fatalf("MarkAllRead = %d, %v", updated, err)
	}
	if n, _ = svc.UnreadCount(ctx, owner); n != 0 {
		t.Fatalf("UnreadCount after MarkAllRead = %d", n)
	}
}

func TestMarkReadUnknownOrForeign(t *testing.T) {
	t.Parallel()
	repo := memnotificationrepo.NewRepo()
	svc := NewService(repo)
	ids := seed(t, repo, 1)
	ctx := context.Background()

	for name, tc := range map[string]struct {
		user domain.UserID
		id   domain.NotificationID
	}{
		"unknown id":   {user: owner, id: "n-missing"},
		"foreign user": {user: "someone-else", id: ids[0]},
	} {
		err := svc.MarkRead(ctx, tc.user, tc.id)
		var ae *apierror.Error
		if !errors.As(err, &ae) || ae.Status != 404 || ae.Code != "NOTIFICATION_NOT_FOUND" {
			t.Fatalf("%s: expected 404 NOTIFICATION_NOT_FOUND, got %v", name, err)
		}
	}
}

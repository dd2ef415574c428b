package notificationrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/traveal-app/traveal-api/internal/adapters/postgres"
	"github.com/traveal-app/traveal-api/internal/domain"
	"github.com/traveal-app/traveal-api/internal/ports/out/notificationrepo"
)

// Repo is a Postgres implementation of notificationrepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

func (r *Repo) Create(ctx context.Context, n notificationrepo.Notification) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	notifID, err := uuid.Parse(string(n.ID))
	if err != nil {
		return fmt.Errorf("invalid notification id: %w", err)
	}
	userID, err := uuid.Parse(string(n.UserID))
	if err != nil {
		return fmt.Errorf("invalid user id: %w", err)
	}
	data := n.Data
	if data == nil {
		data = map[string]any{}
	}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode data: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO notifications (id, user_id, type, title, message, data, is_read, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, notifID, userID, string(n.Type), n.Title, n.Message, dataJSON, n.Read, n.CreatedAt.UTC())
	if err != nil {
		if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.UniqueViolationCode {
			return notificationrepo.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *Repo) ListForUser(ctx context.Context, userID domain.UserID, offset, limit int) ([]notificationrepo.Notification, int, error) {
	if r.pool == nil {
		return nil, 0, errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(userID))
	if err != nil {
		return []notificationrepo.Notification{}, 0, nil
	}

	var total int
	if err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1`, uid,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = total
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, user_id, type, title, message, data, is_read, created_at
		FROM notifications
		WHERE user_id = $1
		ORDER BY created_at DESC, id
		LIMIT $2 OFFSET $3
	`, uid, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]notificationrepo.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *Repo) UnreadCount(ctx context.Context, userID domain.UserID) (int, error) {
	if r.pool == nil {
		return 0, errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(userID))
	if err != nil {
		return 0, nil
	}
	var n int
	err = r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT is_read`, uid,
	).Scan(&n)
	return n, err
}

func (r *Repo) MarkRead(ctx context.Context, userID domain.UserID, id domain.NotificationID) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(userID))
	if err != nil {
		return notificationrepo.ErrNotFound
	}
	notifID, err := uuid.Parse(string(id))
	if err != nil {
		return notificationrepo.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE id = $1 AND user_id = $2`,
		notifID, uid)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notificationrepo.ErrNotFound
	}
	return nil
}

func (r *Repo) MarkAllRead(ctx context.Context, userID domain.UserID) (int, error) {
	if r.pool == nil {
		return 0, errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(userID))
	if err != nil {
		return 0, nil
	}
	tag, err := r.pool.Exec(ctx,
		`UPDATE notifications SET is_read = TRUE WHERE user_id = $1 AND NOT is_read`, uid)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (r *Repo) DeleteForUser(ctx context.Context, userID domain.UserID) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(userID))
	if err != nil {
		return nil
	}
	_, err = r.pool.Exec(ctx, `DELETE FROM notifications WHERE user_id = $1`, uid)
	return err
}

func scanNotification(row pgx.Row) (notificationrepo.Notification, error) {
	var (
		n        notificationrepo.Notification
		notifID  uuid.UUID
		userID   uuid.UUID
		typ      string
		dataJSON []byte
	)
	err := row.Scan(&notifID, &userID, &typ, &n.Title, &n.Message, &dataJSON, &n.Read, &n.CreatedAt)
	if err != nil {
		return notificationrepo.Notification{}, err
	}
	n.ID = domain.NotificationID(notifID.String())
	n.UserID = domain.UserID(userID.String())
	n.Type = domain.NotificationType(typ)
	if err := json.Unmarshal(dataJSON, &n.Data); err != nil {
		return notificationrepo.Notification{}, fmt.Errorf("decode data: %w", err)
	}
	n.CreatedAt = n.CreatedAt.UTC()
	return n, nil
}

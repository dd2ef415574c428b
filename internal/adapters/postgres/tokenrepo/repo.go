package tokenrepo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/traveal-app/traveal-api/internal/domain"
	"github.com/traveal-app/traveal-api/internal/ports/out/tokenrepo"
)

// Repo is a Postgres implementation of tokenrepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

func (r *Repo) Store(ctx context.Context, rec tokenrepo.Record) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	userID, err := uuid.Parse(string(rec.UserID))
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO refresh_tokens (jti, user_id, expires_at, created_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (jti) DO UPDATE
		SET expires_at = EXCLUDED.expires_at
	`, rec.JTI, userID, rec.ExpiresAt.UTC(), rec.CreatedAt.UTC())
	return err
}

func (r *Repo) Get(ctx context.Context, jti string, now time.Time) (tokenrepo.Record, error) {
	if r.pool == nil {
		return tokenrepo.Record{}, errors.New("nil postgres pool")
	}
	var (
		rec    tokenrepo.Record
		userID uuid.UUID
	)
	err := r.pool.QueryRow(ctx, `
		SELECT jti, user_id, expires_at, created_at
		FROM refresh_tokens
		WHERE jti = $1 AND expires_at > $2
	`, jti, now.UTC()).Scan(&rec.JTI, &userID, &rec.ExpiresAt, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return tokenrepo.Record{}, tokenrepo.ErrNotFound
		}
		return tokenrepo.Record{}, err
	}
	rec.UserID = domain.UserID(userID.String())
	rec.ExpiresAt = rec.ExpiresAt.UTC()
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, nil
}

func (r *Repo) Delete(ctx context.Context, jti string) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE jti = $1`, jti)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return tokenrepo.ErrNotFound
	}
	return nil
}

func (r *Repo) DeleteAllForUser(ctx context.Context, userID domain.UserID) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(userID))
	if err != nil {
		return nil
	}
	_, err = r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, uid)
	return err
}

func (r *Repo) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	if r.pool == nil {
		return 0, errors.New("nil postgres pool")
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM refresh_tokens WHERE expires_at <= $1`, now.UTC())
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

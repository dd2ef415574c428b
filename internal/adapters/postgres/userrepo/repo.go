package userrepo

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
	"github.com/traveal-app/traveal-api/internal/ports/out/userrepo"
)

// Repo is a Postgres implementation of userrepo.Repository.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

func (r *Repo) Create(ctx context.Context, u userrepo.User) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	userID, err := uuid.Parse(string(u.ID))
	if err != nil {
		return fmt.Errorf("invalid user id: %w", err)
	}
	externalUUID, err := uuid.Parse(u.UUID)
	if err != nil {
		return fmt.Errorf("invalid user uuid: %w", err)
	}
	consentJSON, prefsJSON, err := encodeJSONFields(u)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO users (
			id, uuid, device_id, onboarded, consent, preferences, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`,
		userID,
		externalUUID,
		u.DeviceID,
		u.Onboarded,
		consentJSON,
		prefsJSON,
		u.CreatedAt.UTC(),
		u.UpdatedAt.UTC(),
	)
	if err != nil {
		if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.UniqueViolationCode {
			if pe.ConstraintName == "users_device_id_unique" {
				return userrepo.ErrDeviceAlreadyBound
			}
			return userrepo.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *Repo) Update(ctx context.Context, u userrepo.User) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	userID, err := uuid.Parse(string(u.ID))
	if err != nil {
		return fmt.Errorf("invalid user id: %w", err)
	}
	consentJSON, prefsJSON, err := encodeJSONFields(u)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, `
		UPDATE users
		SET device_id = $2,
		    onboarded = $3,
		    consent = $4,
		    preferences = $5,
		    updated_at = $6
		WHERE id = $1
	`,
		userID,
		u.DeviceID,
		u.Onboarded,
		consentJSON,
		prefsJSON,
		u.UpdatedAt.UTC(),
	)
	if err != nil {
		if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.UniqueViolationCode && pe.ConstraintName == "users_device_id_unique" {
			return userrepo.ErrDeviceAlreadyBound
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return userrepo.ErrNotFound
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.UserID) (userrepo.User, error) {
	userID, err := uuid.Parse(string(id))
	if err != nil {
		return userrepo.User{}, userrepo.ErrNotFound
	}
	return r.getOne(ctx, `WHERE id = $1`, userID)
}

func (r *Repo) GetByUUID(ctx context.Context, external string) (userrepo.User, error) {
	externalUUID, err := uuid.Parse(external)
	if err != nil {
		return userrepo.User{}, userrepo.ErrNotFound
	}
	return r.getOne(ctx, `WHERE uuid = $1`, externalUUID)
}

func (r *Repo) GetByDeviceID(ctx context.Context, deviceID string) (userrepo.User, error) {
	return r.getOne(ctx, `WHERE device_id = $1`, deviceID)
}

func (r *Repo) Delete(ctx context.Context, id domain.UserID) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	userID, err := uuid.Parse(string(id))
	if err != nil {
		return userrepo.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return userrepo.ErrNotFound
	}
	return nil
}

func (r *Repo) getOne(ctx context.Context, where string, arg any) (userrepo.User, error) {
	if r.pool == nil {
		return userrepo.User{}, errors.New("nil postgres pool")
	}
	row := r.pool.QueryRow(ctx, `
		SELECT id, uuid, device_id, onboarded, consent, preferences, created_at, updated_at
		FROM users
	`+where, arg)

	var (
		u            userrepo.User
		userID       uuid.UUID
		externalUUID uuid.UUID
		consentJSON  []byte
		prefsJSON    []byte
	)
	err := row.Scan(&userID, &externalUUID, &u.DeviceID, &u.Onboarded, &consentJSON, &prefsJSON, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return userrepo.User{}, userrepo.ErrNotFound
		}
		return userrepo.User{}, err
	}
	u.ID = domain.UserID(userID.String())
	u.UUID = externalUUID.String()
	if err := json.Unmarshal(consentJSON, &u.Consent); err != nil {
		return userrepo.User{}, fmt.Errorf("decode consent: %w", err)
	}
	if err := json.Unmarshal(prefsJSON, &u.Preferences); err != nil {
		return userrepo.User{}, fmt.Errorf("decode preferences: %w", err)
	}
	u.CreatedAt = u.CreatedAt.UTC()
	u.UpdatedAt = u.UpdatedAt.UTC()
	return u, nil
}

func encodeJSONFields(u userrepo.User) (consentJSON, prefsJSON []byte, err error) {
	consentJSON, err = json.Marshal(u.Consent)
	if err != nil {
		return nil, nil, fmt.Errorf("encode consent: %w", err)
	}
	prefs := u.Preferences
	if prefs == nil {
		prefs = map[string]any{}
	}
	prefsJSON, err = json.Marshal(prefs)
	if err != nil {
		return nil, nil, fmt.Errorf("encode preferences: %w", err)
	}
	return consentJSON, prefsJSON, nil
}

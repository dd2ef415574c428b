package triprepo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/traveal-app/traveal-api/internal/adapters/postgres"
	"github.com/traveal-app/traveal-api/internal/domain"
	"github.com/traveal-app/traveal-api/internal/ports/out/triprepo"
)

// Repo is a Postgres implementation of triprepo.Repository. The
// single-active-trip invariant rests on the trips_user_active_unique partial
// index; the monotonic point timestamp invariant is enforced by AppendPoint
// under a row lock.
type Repo struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) *Repo {
	return &Repo{pool: pool}
}

const tripColumns = `
	id, user_id, status,
	start_latitude, start_longitude, start_address,
	end_latitude, end_longitude, end_address,
	started_at, ended_at,
	distance_meters, mode, purpose, companions, validated,
	created_at, updated_at`

func (r *Repo) CreateActive(ctx context.Context, t triprepo.Trip) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	tripID, err := uuid.Parse(string(t.ID))
	if err != nil {
		return fmt.Errorf("invalid trip id: %w", err)
	}
	userID, err := uuid.Parse(string(t.UserID))
	if err != nil {
		return fmt.Errorf("invalid user id: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO trips (
			id, user_id, status,
			start_latitude, start_longitude, start_address,
			started_at, companions, validated,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		tripID,
		userID,
		string(domain.TripStatusActive),
		t.StartLatitude,
		t.StartLongitude,
		t.StartAddress,
		t.StartedAt.UTC(),
		t.Companions,
		t.Validated,
		t.CreatedAt.UTC(),
		t.UpdatedAt.UTC(),
	)
	if err != nil {
		if pe, ok := postgres.AsPgError(err); ok && pe.Code == postgres.UniqueViolationCode {
			if pe.ConstraintName == "trips_user_active_unique" {
				return triprepo.ErrActiveTripExists
			}
			return triprepo.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *Repo) Save(ctx context.Context, t triprepo.Trip, prev domain.TripStatus) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	tripID, err := uuid.Parse(string(t.ID))
	if err != nil {
		return fmt.Errorf("invalid trip id: %w", err)
	}

	// The status predicate is the compare-and-set: a concurrent transition
	// between the caller's read and this write updates zero rows.
	tag, err := r.pool.Exec(ctx, `
		UPDATE trips
		SET status = $2,
		    end_latitude = $3,
		    end_longitude = $4,
		    end_address = $5,
		    ended_at = $6,
		    distance_meters = $7,
		    mode = $8,
		    purpose = $9,
		    companions = $10,
		    validated = $11,
		    updated_at = $12
		WHERE id = $1 AND status = $13
	`,
		tripID,
		string(t.Status),
		t.EndLatitude,
		t.EndLongitude,
		t.EndAddress,
		timePtrUTC(t.EndedAt),
		t.DistanceMeters,
		modeForDB(t.Mode),
		purposeForDB(t.Purpose),
		t.Companions,
		t.Validated,
		t.UpdatedAt.UTC(),
		string(prev),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var status string
		err := r.pool.QueryRow(ctx, `SELECT status FROM trips WHERE id = $1`, tripID).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return triprepo.ErrNotFound
		}
		if err != nil {
			return err
		}
		return triprepo.ErrStatusConflict
	}
	return nil
}

func (r *Repo) GetByID(ctx context.Context, id domain.TripID) (triprepo.Trip, error) {
	if r.pool == nil {
		return triprepo.Trip{}, errors.New("nil postgres pool")
	}
	tripID, err := uuid.Parse(string(id))
	if err != nil {
		return triprepo.Trip{}, triprepo.ErrNotFound
	}

	row := r.pool.QueryRow(ctx, `SELECT `+tripColumns+` FROM trips WHERE id = $1`, tripID)
	t, err := scanTrip(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return triprepo.Trip{}, triprepo.ErrNotFound
		}
		return triprepo.Trip{}, err
	}

	t.Points, err = r.loadPoints(ctx, tripID)
	if err != nil {
		return triprepo.Trip{}, err
	}
	return t, nil
}

func (r *Repo) GetActiveForUser(ctx context.Context, userID domain.UserID) (triprepo.Trip, error) {
	if r.pool == nil {
		return triprepo.Trip{}, errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(userID))
	if err != nil {
		return triprepo.Trip{}, triprepo.ErrNotFound
	}

	row := r.pool.QueryRow(ctx,
		`SELECT `+tripColumns+` FROM trips WHERE user_id = $1 AND status = $2`,
		uid, string(domain.TripStatusActive))
	t, err := scanTrip(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return triprepo.Trip{}, triprepo.ErrNotFound
		}
		return triprepo.Trip{}, err
	}

	tripID, _ := uuid.Parse(string(t.ID))
	t.Points, err = r.loadPoints(ctx, tripID)
	if err != nil {
		return triprepo.Trip{}, err
	}
	return t, nil
}

func (r *Repo) AppendPoint(ctx context.Context, id domain.TripID, pt domain.LocationPoint) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	tripID, err := uuid.Parse(string(id))
	if err != nil {
		return triprepo.ErrNotFound
	}

	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var status string
		err := tx.QueryRow(ctx,
			`SELECT status FROM trips WHERE id = $1 FOR UPDATE`, tripID,
		).Scan(&status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return triprepo.ErrNotFound
			}
			return err
		}
		if status != string(domain.TripStatusActive) {
			return triprepo.ErrTripNotActive
		}

		var last *time.Time
		err = tx.QueryRow(ctx,
			`SELECT MAX(recorded_at) FROM location_points WHERE trip_id = $1`, tripID,
		).Scan(&last)
		if err != nil {
			return err
		}
		if last != nil && pt.Timestamp.Before(*last) {
			return triprepo.ErrPointOutOfOrder
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO location_points (
				trip_id, latitude, longitude, accuracy, speed, altitude, recorded_at
			) VALUES ($1,$2,$3,$4,$5,$6,$7)
		`,
			tripID,
			pt.Latitude,
			pt.Longitude,
			pt.Accuracy,
			pt.Speed,
			pt.Altitude,
			pt.Timestamp.UTC(),
		)
		return err
	})
}

func (r *Repo) ListCompleted(ctx context.Context, userID domain.UserID, filter triprepo.ListFilter, offset, limit int) ([]triprepo.Trip, int, error) {
	if r.pool == nil {
		return nil, 0, errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(userID))
	if err != nil {
		return []triprepo.Trip{}, 0, nil
	}

	where := []string{"user_id = $1", "status = $2"}
	args := []any{uid, string(domain.TripStatusCompleted)}
	if filter.Mode != nil {
		args = append(args, string(*filter.Mode))
		where = append(where, fmt.Sprintf("mode = $%d", len(args)))
	}
	if filter.Validated != nil {
		args = append(args, *filter.Validated)
		where = append(where, fmt.Sprintf("validated = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, filter.From.UTC())
		where = append(where, fmt.Sprintf("started_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, filter.To.UTC())
		where = append(where, fmt.Sprintf("started_at <= $%d", len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM trips WHERE `+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = total
	}
	args = append(args, limit, offset)
	query := fmt.Sprintf(
		`SELECT %s FROM trips WHERE %s ORDER BY started_at DESC, id LIMIT $%d OFFSET $%d`,
		tripColumns, cond, len(args)-1, len(args),
	)
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]triprepo.Trip, 0)
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}

func (r *Repo) CountForUser(ctx context.Context, userID domain.UserID) (int, error) {
	if r.pool == nil {
		return 0, errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(userID))
	if err != nil {
		return 0, nil
	}
	var n int
	err = r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM trips WHERE user_id = $1 AND status <> $2`,
		uid, string(domain.TripStatusDeleted),
	).Scan(&n)
	return n, err
}

func (r *Repo) StatsForUser(ctx context.Context, userID domain.UserID) (triprepo.Stats, error) {
	if r.pool == nil {
		return triprepo.Stats{}, errors.New("nil postgres pool")
	}
	stats := triprepo.Stats{ModeBreakdown: make(map[domain.TravelMode]int)}
	uid, err := uuid.Parse(string(userID))
	if err != nil {
		return stats, nil
	}

	err = r.pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(SUM(distance_meters), 0)
		FROM trips
		WHERE user_id = $1 AND status = $2 AND validated
	`, uid, string(domain.TripStatusCompleted)).Scan(&stats.TotalTrips, &stats.TotalDistanceMeters)
	if err != nil {
		return triprepo.Stats{}, err
	}
	if stats.TotalTrips > 0 {
		stats.AverageDistanceMeters = stats.TotalDistanceMeters / float64(stats.TotalTrips)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT mode, COUNT(*)
		FROM trips
		WHERE user_id = $1 AND status = $2 AND validated AND mode IS NOT NULL
		GROUP BY mode
	`, uid, string(domain.TripStatusCompleted))
	if err != nil {
		return triprepo.Stats{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var mode string
		var count int
		if err := rows.Scan(&mode, &count); err != nil {
			return triprepo.Stats{}, err
		}
		stats.ModeBreakdown[domain.TravelMode(mode)] = count
	}
	if err := rows.Err(); err != nil {
		return triprepo.Stats{}, err
	}
	return stats, nil
}

func (r *Repo) DeleteForUser(ctx context.Context, userID domain.UserID) error {
	if r.pool == nil {
		return errors.New("nil postgres pool")
	}
	uid, err := uuid.Parse(string(userID))
	if err != nil {
		return nil
	}
	_, err = r.pool.Exec(ctx, `DELETE FROM trips WHERE user_id = $1`, uid)
	return err
}

func (r *Repo) loadPoints(ctx context.Context, tripID uuid.UUID) ([]domain.LocationPoint, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT latitude, longitude, accuracy, speed, altitude, recorded_at
		FROM location_points
		WHERE trip_id = $1
		ORDER BY recorded_at, id
	`, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []domain.LocationPoint
	for rows.Next() {
		var pt domain.LocationPoint
		if err := rows.Scan(&pt.Latitude, &pt.Longitude, &pt.Accuracy, &pt.Speed, &pt.Altitude, &pt.Timestamp); err != nil {
			return nil, err
		}
		pt.Timestamp = pt.Timestamp.UTC()
		points = append(points, pt)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return points, nil
}

func scanTrip(row pgx.Row) (triprepo.Trip, error) {
	var (
		t       triprepo.Trip
		tripID  uuid.UUID
		userID  uuid.UUID
		status  string
		mode    *string
		purpose *string
		endedAt *time.Time
	)
	err := row.Scan(
		&tripID, &userID, &status,
		&t.StartLatitude, &t.StartLongitude, &t.StartAddress,
		&t.EndLatitude, &t.EndLongitude, &t.EndAddress,
		&t.StartedAt, &endedAt,
		&t.DistanceMeters, &mode, &purpose, &t.Companions, &t.Validated,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return triprepo.Trip{}, err
	}
	t.ID = domain.TripID(tripID.String())
	t.UserID = domain.UserID(userID.String())
	t.Status = domain.TripStatus(status)
	if mode != nil {
		m := domain.TravelMode(*mode)
		t.Mode = &m
	}
	if purpose != nil {
		p := domain.TripPurpose(*purpose)
		t.Purpose = &p
	}
	t.StartedAt = t.StartedAt.UTC()
	if endedAt != nil {
		e := endedAt.UTC()
		t.EndedAt = &e
	}
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	return t, nil
}

func modeForDB(m *domain.TravelMode) *string {
	if m == nil {
		return nil
	}
	s := string(*m)
	return &s
}

func purposeForDB(p *domain.TripPurpose) *string {
	if p == nil {
		return nil
	}
	s := string(*p)
	return &s
}

func timePtrUTC(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

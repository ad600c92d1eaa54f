package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRegistry persists user profiles in PostgreSQL.
type PostgresRegistry struct {
	pool     *pgxpool.Pool
	ownsPool bool
}

func NewPostgresRegistry(ctx context.Context, databaseURL string) (*PostgresRegistry, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	r := &PostgresRegistry{pool: pool, ownsPool: true}
	if err := r.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return r, nil
}

// NewPostgresRegistryWithPool reuses an externally managed pool.
func NewPostgresRegistryWithPool(ctx context.Context, pool *pgxpool.Pool) (*PostgresRegistry, error) {
	r := &PostgresRegistry{pool: pool}
	if err := r.initSchema(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *PostgresRegistry) initSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS bot_users (
			telegram_id BIGINT PRIMARY KEY,
			username TEXT NOT NULL DEFAULT '',
			first_name TEXT NOT NULL DEFAULT '',
			last_name TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL,
			latitude DOUBLE PRECISION,
			longitude DOUBLE PRECISION,
			city TEXT,
			country TEXT,
			location_updated_at TIMESTAMPTZ,
			daily_weather BOOLEAN NOT NULL DEFAULT FALSE,
			notify_time TEXT NOT NULL DEFAULT '06:00',
			timezone TEXT NOT NULL DEFAULT 'Asia/Ho_Chi_Minh',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			last_active_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_bot_users_role ON bot_users (role);`,
		`CREATE INDEX IF NOT EXISTS idx_bot_users_daily ON bot_users (daily_weather);`,
	}
	for _, stmt := range stmts {
		if _, err := r.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init users schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

const profileColumns = `telegram_id, username, first_name, last_name, role,
	latitude, longitude, city, country, location_updated_at,
	daily_weather, notify_time, timezone, created_at, updated_at, last_active_at`

func (r *PostgresRegistry) GetOrCreate(ctx context.Context, id int64, seed Seed) (Profile, error) {
	ts := time.Now().UTC()

	row := r.pool.QueryRow(ctx,
		`UPDATE bot_users
		 SET username=$2, first_name=$3, last_name=$4, updated_at=$5, last_active_at=$5
		 WHERE telegram_id=$1
		 RETURNING `+profileColumns,
		id, seed.Username, seed.FirstName, seed.LastName, ts,
	)
	p, err := scanProfile(row)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, fmt.Errorf("refresh profile: %w", err)
	}

	// First registered user bootstraps as admin. Decided once, at creation.
	row = r.pool.QueryRow(ctx,
		`INSERT INTO bot_users (telegram_id, username, first_name, last_name, role,
			created_at, updated_at, last_active_at)
		 VALUES ($1, $2, $3, $4,
			CASE WHEN (SELECT count(*) FROM bot_users)=0 THEN 'admin' ELSE 'member' END,
			$5, $5, $5)
		 RETURNING `+profileColumns,
		id, seed.Username, seed.FirstName, seed.LastName, ts,
	)
	p, err = scanProfile(row)
	if err != nil {
		return Profile{}, fmt.Errorf("create profile: %w", err)
	}
	return p, nil
}

func (r *PostgresRegistry) Get(ctx context.Context, id int64) (Profile, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM bot_users WHERE telegram_id=$1`, id)
	p, err := scanProfile(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (r *PostgresRegistry) Update(ctx context.Context, id int64, upd Update) (Profile, error) {
	p, err := r.Get(ctx, id)
	if err != nil {
		return Profile{}, err
	}
	if upd.Username != nil {
		p.Username = *upd.Username
	}
	if upd.FirstName != nil {
		p.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		p.LastName = *upd.LastName
	}
	if upd.Location != nil {
		loc := *upd.Location
		if loc.UpdatedAt.IsZero() {
			loc.UpdatedAt = time.Now().UTC()
		}
		p.Location = &loc
	}
	if upd.DailyWeather != nil {
		p.Preferences.DailyWeather = *upd.DailyWeather
	}
	if upd.NotifyTime != nil {
		p.Preferences.NotifyTime = *upd.NotifyTime
	}
	if upd.Timezone != nil {
		p.Preferences.Timezone = *upd.Timezone
	}

	ts := time.Now().UTC()
	var lat, lon *float64
	var city, country *string
	var locUpdated *time.Time
	if p.Location != nil {
		lat, lon = &p.Location.Latitude, &p.Location.Longitude
		if p.Location.City != "" {
			city = &p.Location.City
		}
		if p.Location.Country != "" {
			country = &p.Location.Country
		}
		locUpdated = &p.Location.UpdatedAt
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE bot_users SET username=$2, first_name=$3, last_name=$4,
			latitude=$5, longitude=$6, city=$7, country=$8, location_updated_at=$9,
			daily_weather=$10, notify_time=$11, timezone=$12,
			updated_at=$13, last_active_at=$13
		 WHERE telegram_id=$1`,
		id, p.Username, p.FirstName, p.LastName,
		lat, lon, city, country, locUpdated,
		p.Preferences.DailyWeather, p.Preferences.NotifyTime, p.Preferences.Timezone, ts,
	)
	if err != nil {
		return Profile{}, fmt.Errorf("update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return Profile{}, ErrNotFound
	}
	p.UpdatedAt = ts
	p.LastActiveAt = ts
	return p, nil
}

func (r *PostgresRegistry) SetRole(ctx context.Context, id int64, role Role) error {
	p, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if p.Role == RoleAdmin && role != RoleAdmin {
		n, err := r.adminCount(ctx)
		if err != nil {
			return err
		}
		if n <= 1 {
			return ErrLastAdmin
		}
	}
	_, err = r.pool.Exec(ctx,
		`UPDATE bot_users SET role=$2, updated_at=now() WHERE telegram_id=$1`,
		id, string(role))
	if err != nil {
		return fmt.Errorf("set role: %w", err)
	}
	return nil
}

func (r *PostgresRegistry) Delete(ctx context.Context, id int64) error {
	p, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if p.Role == RoleAdmin {
		n, err := r.adminCount(ctx)
		if err != nil {
			return err
		}
		if n <= 1 {
			return ErrLastAdmin
		}
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM bot_users WHERE telegram_id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRegistry) ListAll(ctx context.Context) ([]Profile, error) {
	return r.list(ctx, `SELECT `+profileColumns+` FROM bot_users ORDER BY created_at ASC`)
}

func (r *PostgresRegistry) ListByRole(ctx context.Context, role Role) ([]Profile, error) {
	return r.list(ctx,
		`SELECT `+profileColumns+` FROM bot_users WHERE role=$1 ORDER BY created_at ASC`,
		string(role))
}

func (r *PostgresRegistry) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM bot_users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count profiles: %w", err)
	}
	return n, nil
}

func (r *PostgresRegistry) Close() error {
	if r.ownsPool {
		r.pool.Close()
	}
	return nil
}

func (r *PostgresRegistry) adminCount(ctx context.Context) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM bot_users WHERE role='admin'`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count admins: %w", err)
	}
	return n, nil
}

func (r *PostgresRegistry) list(ctx context.Context, query string, args ...any) ([]Profile, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var out []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile row: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profile rows: %w", err)
	}
	return out, nil
}

func scanProfile(row pgx.Row) (Profile, error) {
	var p Profile
	var role string
	var lat, lon *float64
	var city, country *string
	var locUpdated *time.Time

	err := row.Scan(&p.TelegramID, &p.Username, &p.FirstName, &p.LastName, &role,
		&lat, &lon, &city, &country, &locUpdated,
		&p.Preferences.DailyWeather, &p.Preferences.NotifyTime, &p.Preferences.Timezone,
		&p.CreatedAt, &p.UpdatedAt, &p.LastActiveAt)
	if err != nil {
		return Profile{}, err
	}
	p.Role = Role(role)
	if lat != nil && lon != nil {
		loc := &Location{Latitude: *lat, Longitude: *lon}
		if city != nil {
			loc.City = *city
		}
		if country != nil {
			loc.Country = *country
		}
		if locUpdated != nil {
			loc.UpdatedAt = *locUpdated
		}
		p.Location = loc
	}
	return p, nil
}

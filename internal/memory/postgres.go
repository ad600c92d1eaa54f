package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists conversational memory in PostgreSQL.
type PostgresStore struct {
	pool      *pgxpool.Pool
	retention time.Duration
	ownsPool  bool
}

func NewPostgresStore(ctx context.Context, databaseURL string, retention time.Duration) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	s := &PostgresStore{pool: pool, retention: retention, ownsPool: true}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// NewPostgresStoreWithPool reuses an externally managed pool.
func NewPostgresStoreWithPool(ctx context.Context, pool *pgxpool.Pool, retention time.Duration) (*PostgresStore, error) {
	s := &PostgresStore{pool: pool, retention: retention}
	if err := s.initSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS memory_turns (
			id TEXT PRIMARY KEY,
			chat_id BIGINT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_memory_turns_chat_created ON memory_turns (chat_id, created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init memory schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, chatID int64, turns []TurnRecord) error {
	for _, t := range turns {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = time.Now().UTC()
		}
		_, err := s.pool.Exec(ctx,
			`INSERT INTO memory_turns (id, chat_id, role, content, created_at)
			 VALUES ($1, $2, $3, $4, $5)`,
			t.ID, chatID, t.Role, t.Content, t.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("append turn: %w", err)
		}
	}
	return s.compact(ctx, chatID)
}

func (s *PostgresStore) Read(ctx context.Context, chatID int64) ([]TurnRecord, error) {
	if err := s.compact(ctx, chatID); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, chat_id, role, content, created_at
		 FROM memory_turns WHERE chat_id=$1 ORDER BY created_at ASC`,
		chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("query memory: %w", err)
	}
	defer rows.Close()

	var items []TurnRecord
	for rows.Next() {
		var t TurnRecord
		if err := rows.Scan(&t.ID, &t.ChatID, &t.Role, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan memory row: %w", err)
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memory rows: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) Clear(ctx context.Context, chatID int64) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM memory_turns WHERE chat_id=$1`, chatID); err != nil {
		return fmt.Errorf("clear memory: %w", err)
	}
	return nil
}

func (s *PostgresStore) Stats(ctx context.Context, chatID int64) (Stats, error) {
	cutoff := time.Now().UTC().Add(-s.retention)

	var st Stats
	var oldest *time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT count(*),
		        count(*) FILTER (WHERE role=$2),
		        min(created_at)
		 FROM memory_turns WHERE chat_id=$1 AND created_at >= $3`,
		chatID, RoleUser, cutoff,
	).Scan(&st.TotalTurns, &st.UserTurns, &oldest)
	if err != nil {
		return Stats{}, fmt.Errorf("memory stats: %w", err)
	}
	if oldest != nil {
		st.OldestTurnAge = time.Now().UTC().Sub(*oldest)
	}
	return st, nil
}

func (s *PostgresStore) Close() error {
	if s.ownsPool {
		s.pool.Close()
	}
	return nil
}

func (s *PostgresStore) compact(ctx context.Context, chatID int64) error {
	cutoff := time.Now().UTC().Add(-s.retention)
	if _, err := s.pool.Exec(ctx,
		`DELETE FROM memory_turns WHERE chat_id=$1 AND created_at < $2`,
		chatID, cutoff,
	); err != nil {
		return fmt.Errorf("compact memory: %w", err)
	}
	return nil
}

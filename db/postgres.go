package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"

	"fairplay/config"
	"fairplay/fairness"
	"fairplay/replay"
	"fairplay/verdict"
)

// PostgresStore archives validated game records.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// InitPostgres connects to databaseURL, pings and ensures the schema.
func InitPostgres(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	log.Info("Connecting to PostgreSQL")

	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}

	ctx, cancel := context.WithTimeout(ctx, config.PostgresInitTimeout)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	// Configure pool settings
	poolConfig.MaxConns = config.MaxOpenConns
	poolConfig.MinConns = config.MinIdleConns
	poolConfig.MaxConnLifetime = config.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("PostgreSQL connected")

	s := &PostgresStore{pool: pool}
	if err := s.InitSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the PostgreSQL connection pool.
func (s *PostgresStore) Close() {
	log.Info("Closing PostgreSQL connection")
	s.pool.Close()
}

// InitSchema creates the database tables if they don't exist.
func (s *PostgresStore) InitSchema(ctx context.Context) error {
	log.Info("Initializing database schema")

	gameRecordsSchema := `
	CREATE TABLE IF NOT EXISTS game_records (
		id TEXT PRIMARY KEY,
		game TEXT NOT NULL,
		submission JSONB NOT NULL,
		session JSONB,
		valid BOOLEAN NOT NULL,
		kind TEXT NOT NULL DEFAULT '',
		reason TEXT NOT NULL DEFAULT '',
		step INTEGER,
		calculated_score BIGINT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	ALTER TABLE game_records ADD COLUMN IF NOT EXISTS session JSONB;

	-- Index on game for per-game listings
	CREATE INDEX IF NOT EXISTS idx_game_records_game ON game_records(game, created_at DESC);

	-- Index on created_at for recent records
	CREATE INDEX IF NOT EXISTS idx_game_records_created_at ON game_records(created_at DESC);
	`

	if _, err := s.pool.Exec(ctx, gameRecordsSchema); err != nil {
		return fmt.Errorf("failed to create game_records table: %w", err)
	}

	log.Info("Database schema initialized")
	return nil
}

// SaveRecord inserts or replaces a game record.
func (s *PostgresStore) SaveRecord(ctx context.Context, r *replay.GameRecord) error {
	query := `
	INSERT INTO game_records (id, game, submission, session, valid, kind, reason, step, calculated_score, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (id) DO UPDATE SET
		submission = EXCLUDED.submission,
		session = EXCLUDED.session,
		valid = EXCLUDED.valid,
		kind = EXCLUDED.kind,
		reason = EXCLUDED.reason,
		step = EXCLUDED.step,
		calculated_score = EXCLUDED.calculated_score
	`

	var session []byte
	if r.Session != nil {
		var err error
		if session, err = json.Marshal(r.Session); err != nil {
			return fmt.Errorf("failed to encode session: %w", err)
		}
	}

	v := r.Verdict
	_, err := s.pool.Exec(ctx, query,
		r.ID, r.Game, []byte(r.Submission), session, v.Valid, string(v.Kind), v.Reason, v.Step, v.CalculatedScore, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save game record: %w", err)
	}
	return nil
}

const recordColumns = `id, game, submission, session, valid, kind, reason, step, calculated_score, created_at`

func scanRecord(row pgx.Row) (*replay.GameRecord, error) {
	var (
		r       replay.GameRecord
		kind    string
		session []byte
	)
	err := row.Scan(
		&r.ID, &r.Game, &r.Submission, &session,
		&r.Verdict.Valid, &kind, &r.Verdict.Reason, &r.Verdict.Step, &r.Verdict.CalculatedScore,
		&r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if session != nil {
		r.Session = new(fairness.Reveal)
		if err := json.Unmarshal(session, r.Session); err != nil {
			return nil, fmt.Errorf("failed to decode session: %w", err)
		}
	}
	r.Verdict.Kind = verdict.Kind(kind)
	r.CreatedAt = r.CreatedAt.UTC()
	return &r, nil
}

// LoadRecord fetches one record by id.
func (s *PostgresStore) LoadRecord(ctx context.Context, id string) (*replay.GameRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM game_records WHERE id = $1`, id)
	r, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, replay.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load game record: %w", err)
	}
	return r, nil
}

// ListRecords returns the newest records, optionally for one game.
func (s *PostgresStore) ListRecords(ctx context.Context, game string, limit int) ([]*replay.GameRecord, error) {
	if limit <= 0 {
		limit = config.DefaultRecordLimit
	}
	query := `SELECT ` + recordColumns + ` FROM game_records
	WHERE ($1 = '' OR game = $1)
	ORDER BY created_at DESC, id
	LIMIT $2`

	rows, err := s.pool.Query(ctx, query, game, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query game records: %w", err)
	}
	defer rows.Close()

	var out []*replay.GameRecord
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan game record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

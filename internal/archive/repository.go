// Package archive stores finished puzzle attempts in Postgres.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/park285/Cheese-Puzzle-bot/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS puzzle_attempts (
	id           BIGSERIAL PRIMARY KEY,
	session_uuid TEXT NOT NULL UNIQUE,
	channel      TEXT NOT NULL,
	puzzle_id    TEXT NOT NULL DEFAULT '',
	rating       INTEGER NOT NULL,
	start_fen    TEXT NOT NULL,
	outcome      TEXT NOT NULL,
	moves_san    JSONB NOT NULL DEFAULT '[]'::jsonb,
	pgn          TEXT NOT NULL DEFAULT '',
	last_input   TEXT NOT NULL DEFAULT '',
	started_at   TIMESTAMPTZ NOT NULL,
	ended_at     TIMESTAMPTZ NOT NULL,
	duration_ms  BIGINT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS puzzle_attempts_channel_ended ON puzzle_attempts (channel, ended_at DESC);
`

type Repository struct {
	db *sql.DB
}

// Open connects to databaseURL and verifies the connection within five seconds.
func Open(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Repository{db: db}, nil
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create puzzle_attempts: %w", err)
	}
	return nil
}

// RecordAttempt upserts the attempt keyed by its session id.
func (r *Repository) RecordAttempt(ctx context.Context, a *domain.PuzzleAttempt) error {
	if r == nil || r.db == nil {
		return nil
	}
	if a == nil || strings.TrimSpace(a.SessionUUID) == "" {
		return errors.New("attempt without session id")
	}
	movesSAN, err := json.Marshal(nonNil(a.MovesSAN))
	if err != nil {
		return fmt.Errorf("marshal moves_san: %w", err)
	}
	duration := a.Duration.Milliseconds()
	if duration < 0 {
		duration = 0
	}

	const q = `INSERT INTO puzzle_attempts (
		session_uuid, channel, puzzle_id, rating, start_fen, outcome,
		moves_san, pgn, last_input, started_at, ended_at, duration_ms
	) VALUES ($1,$2,$3,$4,$5,$6,$7::jsonb,$8,$9,$10,$11,$12)
	ON CONFLICT (session_uuid) DO UPDATE SET
		outcome=EXCLUDED.outcome,
		moves_san=EXCLUDED.moves_san,
		pgn=EXCLUDED.pgn,
		last_input=EXCLUDED.last_input,
		ended_at=EXCLUDED.ended_at,
		duration_ms=EXCLUDED.duration_ms`

	_, err = r.db.ExecContext(ctx, q,
		a.SessionUUID, a.Channel, a.PuzzleID, a.Rating, a.StartFEN, string(a.Outcome),
		string(movesSAN), BuildPGN(a), a.LastInput, a.StartedAt, a.EndedAt, duration,
	)
	if err != nil {
		return fmt.Errorf("upsert puzzle attempt: %w", err)
	}
	return nil
}

// RecentAttempts lists the latest attempts in channel, newest first.
func (r *Repository) RecentAttempts(ctx context.Context, channel string, limit int) ([]*domain.PuzzleAttempt, error) {
	if limit <= 0 {
		limit = 10
	}
	const q = `SELECT id, session_uuid, channel, puzzle_id, rating, start_fen, outcome,
		moves_san, last_input, started_at, ended_at, duration_ms
	FROM puzzle_attempts
	WHERE channel = $1
	ORDER BY ended_at DESC
	LIMIT $2`

	rows, err := r.db.QueryContext(ctx, q, channel, limit)
	if err != nil {
		return nil, fmt.Errorf("select puzzle attempts: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.PuzzleAttempt, 0, limit)
	for rows.Next() {
		var (
			a          domain.PuzzleAttempt
			outcome    string
			movesJSON  []byte
			durationMS int64
		)
		if err := rows.Scan(&a.ID, &a.SessionUUID, &a.Channel, &a.PuzzleID, &a.Rating, &a.StartFEN, &outcome,
			&movesJSON, &a.LastInput, &a.StartedAt, &a.EndedAt, &durationMS); err != nil {
			return nil, fmt.Errorf("scan puzzle attempt: %w", err)
		}
		if len(movesJSON) > 0 {
			if err := json.Unmarshal(movesJSON, &a.MovesSAN); err != nil {
				return nil, fmt.Errorf("decode moves_san: %w", err)
			}
		}
		a.Outcome = domain.AttemptOutcome(outcome)
		a.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, &a)
	}
	return out, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

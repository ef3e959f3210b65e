package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/park285/Cheese-Puzzle-bot/internal/board"
)

const defaultSessionTTL = 24 * time.Hour

type sessionRecord struct {
	ID        string    `json:"id"`
	Active    bool      `json:"active"`
	FEN       string    `json:"fen"`
	Line      []string  `json:"line"`
	Rating    int       `json:"rating"`
	PuzzleID  string    `json:"puzzle_id,omitempty"`
	StartFEN  string    `json:"start_fen,omitempty"`
	Played    []string  `json:"played,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// RedisStore keeps one JSON document per channel under puzzle:session:<channel>.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) key(channel string) string {
	return "puzzle:session:" + strings.TrimSpace(channel)
}

func (s *RedisStore) Get(ctx context.Context, channel string) (Session, bool, error) {
	raw, err := s.rdb.Get(ctx, s.key(channel)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Idle(), false, nil
	}
	if err != nil {
		return Idle(), false, fmt.Errorf("load session: %w", err)
	}
	var rec sessionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return Idle(), false, fmt.Errorf("decode session: %w", err)
	}
	out := Session{
		ID:        rec.ID,
		Active:    rec.Active,
		Line:      rec.Line,
		Rating:    rec.Rating,
		PuzzleID:  rec.PuzzleID,
		StartFEN:  rec.StartFEN,
		Played:    rec.Played,
		StartedAt: rec.StartedAt,
	}
	if rec.FEN != "" {
		pos, err := board.FromFEN(rec.FEN)
		if err != nil {
			return Idle(), false, fmt.Errorf("decode session position: %w", err)
		}
		out.Position = pos
	}
	return out, true, nil
}

func (s *RedisStore) Set(ctx context.Context, channel string, sess Session) error {
	rec := sessionRecord{
		ID:        sess.ID,
		Active:    sess.Active,
		FEN:       sess.Position.FEN(),
		Line:      sess.Line,
		Rating:    sess.Rating,
		PuzzleID:  sess.PuzzleID,
		StartFEN:  sess.StartFEN,
		Played:    sess.Played,
		StartedAt: sess.StartedAt,
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key(channel), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *RedisStore) Reset(ctx context.Context, channel string) error {
	if err := s.rdb.Del(ctx, s.key(channel)).Err(); err != nil {
		return fmt.Errorf("reset session: %w", err)
	}
	return nil
}

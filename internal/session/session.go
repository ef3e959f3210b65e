// Package session owns per-channel puzzle sessions: the Session value, the stores that
// hold it, per-channel locking and the state machine that drives it from chat commands.
package session

import (
	"context"
	"time"

	"github.com/park285/Cheese-Puzzle-bot/internal/board"
)

// Session is the puzzle state of one channel. The zero value is Idle.
//
// While Active, Position is the board the player moves on and Line[0] is the player's
// expected move. Position is immutable, so copies may share it; slices are never shared.
type Session struct {
	ID        string
	Active    bool
	Position  *board.Position
	Line      []string
	Rating    int
	PuzzleID  string
	StartFEN  string
	Played    []string
	StartedAt time.Time
}

// Idle returns a fresh inactive session.
func Idle() Session { return Session{} }

func (s Session) Clone() Session {
	out := s
	out.Line = cloneStrings(s.Line)
	out.Played = cloneStrings(s.Played)
	return out
}

// Store maps channel ids to at most one Session each.
// Get reports ok=false when the channel has no stored session and returns Idle().
type Store interface {
	Get(ctx context.Context, channel string) (Session, bool, error)
	Set(ctx context.Context, channel string, s Session) error
	Reset(ctx context.Context, channel string) error
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

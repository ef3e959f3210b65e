// Package puzzle supplies puzzle records: a starting position, a setup blunder and the
// forced line the player has to find.
package puzzle

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed marks a record that cannot start a puzzle.
var ErrMalformed = errors.New("malformed puzzle record")

// Record is one puzzle as delivered by a Source.
// Line alternates player and opponent moves, player first and last.
type Record struct {
	ID      string   `json:"id" yaml:"id"`
	FEN     string   `json:"fen" yaml:"fen"`
	Blunder string   `json:"blunder" yaml:"blunder"`
	Line    []string `json:"line" yaml:"line"`
	Rating  int      `json:"rating" yaml:"rating"`
}

// Source fetches one puzzle per call.
type Source interface {
	Fetch(ctx context.Context) (Record, error)
}

// Validate checks the shape of the record. Move legality is left to the board.
func (r Record) Validate() error {
	if strings.TrimSpace(r.FEN) == "" {
		return fmt.Errorf("%w: empty fen", ErrMalformed)
	}
	if strings.TrimSpace(r.Blunder) == "" {
		return fmt.Errorf("%w: empty blunder move", ErrMalformed)
	}
	if len(r.Line) == 0 {
		return fmt.Errorf("%w: empty forced line", ErrMalformed)
	}
	if len(r.Line)%2 == 0 {
		return fmt.Errorf("%w: forced line must end on a player move (len=%d)", ErrMalformed, len(r.Line))
	}
	for i, mv := range r.Line {
		if strings.TrimSpace(mv) == "" {
			return fmt.Errorf("%w: empty move at line[%d]", ErrMalformed, i)
		}
	}
	if r.Rating <= 0 {
		return fmt.Errorf("%w: rating %d", ErrMalformed, r.Rating)
	}
	return nil
}

// Clone returns a copy that shares no slice with r.
func (r Record) Clone() Record {
	out := r
	out.Line = append([]string(nil), r.Line...)
	return out
}

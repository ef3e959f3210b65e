// Package board wraps corentings/chess positions behind the small surface the puzzle
// session needs: parse a FEN, list legal moves, apply a move and compare notations.
package board

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

var (
	ErrInvalidFEN  = errors.New("invalid FEN")
	ErrIllegalMove = errors.New("illegal move")
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Move is a move that was applied to a position, in both notations.
type Move struct {
	SAN string
	UCI string
}

// Position is an immutable board state. Apply returns a new Position and leaves the
// receiver untouched, so a stored session never observes a half-applied move.
type Position struct {
	pos *nchess.Position
}

// FromFEN parses a FEN string. The literal "startpos" is accepted as the initial position.
func FromFEN(fen string) (*Position, error) {
	fen = strings.TrimSpace(fen)
	if fen == "" {
		return nil, ErrInvalidFEN
	}
	if strings.EqualFold(fen, "startpos") {
		fen = StartFEN
	}
	pos := &nchess.Position{}
	if err := pos.UnmarshalText([]byte(fen)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFEN, err)
	}
	return &Position{pos: pos}, nil
}

// FEN returns the position in Forsyth-Edwards notation.
func (p *Position) FEN() string {
	if p == nil || p.pos == nil {
		return ""
	}
	return p.pos.String()
}

// Turn returns "White" or "Black".
func (p *Position) Turn() string {
	if p == nil || p.pos == nil {
		return ""
	}
	return p.pos.Turn().Name()
}

// Board exposes the underlying board for rendering.
func (p *Position) Board() *nchess.Board {
	if p == nil || p.pos == nil {
		return nil
	}
	return p.pos.Board()
}

// LegalMoves lists every legal move in SAN, sorted.
func (p *Position) LegalMoves() []string {
	if p == nil || p.pos == nil {
		return nil
	}
	valid := p.pos.ValidMoves()
	out := make([]string, 0, len(valid))
	for i := range valid {
		out = append(out, nchess.AlgebraicNotation{}.Encode(p.pos, &valid[i]))
	}
	sort.Strings(out)
	return out
}

// Apply validates text against the legal moves of the position and returns the resulting
// position together with the normalized move.
func (p *Position) Apply(text string) (*Position, Move, error) {
	mv, err := p.decode(text)
	if err != nil {
		return nil, Move{}, err
	}
	applied := Move{
		SAN: nchess.AlgebraicNotation{}.Encode(p.pos, mv),
		UCI: nchess.UCINotation{}.Encode(p.pos, mv),
	}
	return &Position{pos: p.pos.Update(mv)}, applied, nil
}

// Matches reports whether played, a move already applied here, is the move expected
// denotes. An error means expected itself is not a legal move in this position.
func (p *Position) Matches(played Move, expected string) (bool, error) {
	want, err := p.decode(expected)
	if err != nil {
		return false, fmt.Errorf("expected move %q: %w", expected, err)
	}
	return nchess.UCINotation{}.Encode(p.pos, want) == played.UCI, nil
}

// uciShape matches coordinate notation. Such input is never handed to the SAN decoder,
// which would otherwise read "g8f6" as the pawn move f6.
var uciShape = regexp.MustCompile(`^[a-h][1-8][a-h][1-8][qrbn]?$`)

// decode resolves text to a legal move. Coordinate input is matched against the legal
// move list only; anything else goes through SAN. The returned move always comes from
// the legal move list so its tags (capture, check, castle) are populated.
func (p *Position) decode(text string) (*nchess.Move, error) {
	if p == nil || p.pos == nil {
		return nil, ErrIllegalMove
	}
	raw := strings.TrimSpace(text)
	if raw == "" {
		return nil, ErrIllegalMove
	}
	if lower := strings.ToLower(raw); uciShape.MatchString(lower) {
		candidate, err := (nchess.UCINotation{}).Decode(nil, lower)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrIllegalMove, raw)
		}
		valid := p.pos.ValidMoves()
		for i := range valid {
			if sameMove(&valid[i], candidate) {
				return &valid[i], nil
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrIllegalMove, raw)
	}
	mv, err := (nchess.AlgebraicNotation{}).Decode(p.pos, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrIllegalMove, raw)
	}
	return mv, nil
}

func sameMove(a, b *nchess.Move) bool {
	return a.S1() == b.S1() && a.S2() == b.S2() && a.Promo() == b.Promo()
}

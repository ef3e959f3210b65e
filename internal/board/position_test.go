package board

import (
	"errors"
	"slices"
	"testing"

	nchess "github.com/corentings/chess/v2"
)

func TestFromFEN(t *testing.T) {
	pos, err := FromFEN("startpos")
	if err != nil {
		t.Fatalf("startpos: %v", err)
	}
	if pos.FEN() != StartFEN {
		t.Fatalf("fen mismatch: %s", pos.FEN())
	}
	if pos.Turn() != "White" {
		t.Fatalf("turn = %s", pos.Turn())
	}

	for _, bad := range []string{"", "   ", "not a fen"} {
		if _, err := FromFEN(bad); !errors.Is(err, ErrInvalidFEN) {
			t.Fatalf("FromFEN(%q) err = %v, want ErrInvalidFEN", bad, err)
		}
	}
}

func TestLegalMovesStart(t *testing.T) {
	pos, _ := FromFEN(StartFEN)
	moves := pos.LegalMoves()
	if len(moves) != 20 {
		t.Fatalf("expected 20 legal moves, got %d: %v", len(moves), moves)
	}
	if !slices.IsSorted(moves) {
		t.Fatalf("moves not sorted: %v", moves)
	}
	for _, want := range []string{"e4", "Nf3", "a3"} {
		if !slices.Contains(moves, want) {
			t.Fatalf("missing %s in %v", want, moves)
		}
	}
}

func TestApplySANAndUCI(t *testing.T) {
	pos, _ := FromFEN(StartFEN)

	next, mv, err := pos.Apply("e4")
	if err != nil {
		t.Fatalf("apply e4: %v", err)
	}
	if mv.SAN != "e4" || mv.UCI != "e2e4" {
		t.Fatalf("unexpected move %+v", mv)
	}
	if next.Turn() != "Black" {
		t.Fatalf("turn after e4 = %s", next.Turn())
	}
	if pos.FEN() != StartFEN {
		t.Fatalf("receiver mutated: %s", pos.FEN())
	}

	_, mv, err = next.Apply("G8F6")
	if err != nil {
		t.Fatalf("apply uci: %v", err)
	}
	if mv.SAN != "Nf6" {
		t.Fatalf("SAN = %s, want Nf6", mv.SAN)
	}
}

func TestApplyIllegal(t *testing.T) {
	pos, _ := FromFEN(StartFEN)
	for _, in := range []string{"", "e5", "Ke2", "e2e5", "hello"} {
		if _, _, err := pos.Apply(in); !errors.Is(err, ErrIllegalMove) {
			t.Fatalf("Apply(%q) err = %v, want ErrIllegalMove", in, err)
		}
	}
}

func TestApplyCoordinatePieceMove(t *testing.T) {
	pos, _ := FromFEN(StartFEN)
	after, _, _ := pos.Apply("e4")

	for _, in := range []string{"g8f6", " g8f6 ", "G8F6"} {
		next, mv, err := after.Apply(in)
		if err != nil {
			t.Fatalf("Apply(%q): %v", in, err)
		}
		if mv.SAN != "Nf6" || mv.UCI != "g8f6" {
			t.Fatalf("Apply(%q) = %+v, want Nf6/g8f6", in, mv)
		}
		if next.Board().Piece(nchess.F6) != nchess.BlackKnight || next.Board().Piece(nchess.F7) != nchess.BlackPawn {
			t.Fatalf("Apply(%q) moved the wrong piece: %s", in, next.FEN())
		}
	}

	if _, _, err := after.Apply("g8g6"); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("g8g6 err = %v, want ErrIllegalMove", err)
	}
	if _, _, err := after.Apply("f8f6"); !errors.Is(err, ErrIllegalMove) {
		t.Fatalf("f8f6 err = %v, want ErrIllegalMove", err)
	}
}

func TestApplyCoordinateCastleAndPromotion(t *testing.T) {
	castle, _ := FromFEN("r3k2r/8/8/8/8/8/8/R3K2R w KQkq - 0 1")
	_, mv, err := castle.Apply("e1g1")
	if err != nil || mv.SAN != "O-O" {
		t.Fatalf("e1g1: mv=%+v err=%v", mv, err)
	}

	promo, _ := FromFEN("8/P7/8/8/8/8/8/k6K w - - 0 1")
	_, mv, err = promo.Apply("a7a8n")
	if err != nil || mv.UCI != "a7a8n" {
		t.Fatalf("a7a8n: mv=%+v err=%v", mv, err)
	}
}

func TestMatches(t *testing.T) {
	pos, _ := FromFEN(StartFEN)
	after, _, _ := pos.Apply("e4")

	for _, in := range []string{"Nf6", "g8f6"} {
		_, played, err := after.Apply(in)
		if err != nil {
			t.Fatalf("apply %q: %v", in, err)
		}
		for _, expected := range []string{"Nf6", "g8f6"} {
			ok, err := after.Matches(played, expected)
			if err != nil || !ok {
				t.Fatalf("played %q vs expected %q: ok=%v err=%v", in, expected, ok, err)
			}
		}
	}

	_, knight, _ := after.Apply("Nc6")
	ok, err := after.Matches(knight, "Nf6")
	if err != nil || ok {
		t.Fatalf("different moves matched: ok=%v err=%v", ok, err)
	}
	_, pawn, _ := after.Apply("f6")
	if ok, _ := after.Matches(pawn, "Nf6"); ok {
		t.Fatalf("pawn f6 matched knight Nf6")
	}
	if _, err := after.Matches(knight, "Nxe5"); err == nil {
		t.Fatalf("expected error for undecodable expected move")
	}
}

package session

import (
	"fmt"
	"net/url"
	"strings"
)

type ReplyKind string

const (
	ReplyPuzzle          ReplyKind = "puzzle"
	ReplyBusy            ReplyKind = "busy"
	ReplyResigned        ReplyKind = "resigned"
	ReplyNotFound        ReplyKind = "not_found"
	ReplyIllegal         ReplyKind = "illegal"
	ReplyWrong           ReplyKind = "wrong"
	ReplySolved          ReplyKind = "solved"
	ReplyContinue        ReplyKind = "continue"
	ReplyInternal        ReplyKind = "internal_error"
	ReplyUpstreamFailure ReplyKind = "upstream_failure"
	ReplyStoreFailure    ReplyKind = "store_failure"
)

// ShowsBoard reports whether the reply describes a live position worth rendering.
func (k ReplyKind) ShowsBoard() bool {
	switch k {
	case ReplyPuzzle, ReplyBusy, ReplyContinue, ReplyIllegal:
		return true
	default:
		return false
	}
}

// View is the data a reply is formatted from. It is built before the store is written
// and never references session slices.
type View struct {
	SessionID  string
	FEN        string
	Rating     int
	Turn       string
	LegalMoves []string
	// Played is the player's move in SAN, Opponent the forced reply that followed it.
	Played   string
	Opponent string
	Expected string
	Input    string
}

type Reply struct {
	Kind ReplyKind
	View View
	Text string
}

// Formatter turns a reply into chat text.
type Formatter interface {
	Format(kind ReplyKind, v View) string
}

// BoardURL is the board-image link for fen under base.
func BoardURL(base, fen string) string {
	return strings.TrimRight(base, "/") + "/puzzle/" + url.PathEscape(fen)
}

// PlainFormatter renders fixed English messages.
type PlainFormatter struct {
	ServerURL string
}

func (f PlainFormatter) Format(kind ReplyKind, v View) string {
	switch kind {
	case ReplyPuzzle:
		return f.describe(v)
	case ReplyBusy:
		return "There is already a puzzle in progress. Type `resign` to give up first.\n" + f.describe(v)
	case ReplyResigned:
		if v.Expected != "" {
			return fmt.Sprintf("Giving up already? The move was %s. Type `new` when you feel braver.", v.Expected)
		}
		return "Giving up already? Type `new` when you feel braver."
	case ReplyNotFound:
		return "No active puzzle. Type `new` to start one."
	case ReplyIllegal:
		return fmt.Sprintf("%q is not a legal move. Legal moves: %s", v.Input, strings.Join(v.LegalMoves, ", "))
	case ReplyWrong:
		return fmt.Sprintf("%s is not correct, puzzle abandoned. The move was %s. Type `new` to try another.", v.Played, v.Expected)
	case ReplySolved:
		return fmt.Sprintf("%s! Puzzle solved, well done. Type `new` for another.", v.Played)
	case ReplyContinue:
		return fmt.Sprintf("Correct! The opponent replied %s. %s to move. %s\nLegal moves: %s",
			v.Opponent, v.Turn, BoardURL(f.ServerURL, v.FEN), strings.Join(v.LegalMoves, ", "))
	case ReplyInternal:
		return "Internal error: this puzzle's solution data is inconsistent, so it was discarded. Type `new` for another."
	case ReplyStoreFailure:
		return "Something went wrong saving the puzzle state. Please try again."
	default:
		return "Something went wrong fetching a puzzle. Please try again."
	}
}

func (f PlainFormatter) describe(v View) string {
	return fmt.Sprintf("This puzzle is rated ELO %d. %s to move. %s\nLegal moves: %s",
		v.Rating, v.Turn, BoardURL(f.ServerURL, v.FEN), strings.Join(v.LegalMoves, ", "))
}

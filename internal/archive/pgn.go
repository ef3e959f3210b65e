package archive

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/park285/Cheese-Puzzle-bot/internal/domain"
)

// BuildPGN writes the attempt as a PGN game set up from its starting FEN.
func BuildPGN(a *domain.PuzzleAttempt) string {
	if a == nil {
		return ""
	}
	var b strings.Builder
	date := a.EndedAt
	b.WriteString("[Event \"Puzzle\"]\n")
	if !date.IsZero() {
		fmt.Fprintf(&b, "[Date \"%04d.%02d.%02d\"]\n", date.Year(), int(date.Month()), date.Day())
	}
	if a.PuzzleID != "" {
		fmt.Fprintf(&b, "[PuzzleId \"%s\"]\n", sanitizePGN(a.PuzzleID))
	}
	fmt.Fprintf(&b, "[PuzzleRating \"%d\"]\n", a.Rating)
	fmt.Fprintf(&b, "[Termination \"%s\"]\n", a.Outcome)
	if a.StartFEN != "" {
		b.WriteString("[SetUp \"1\"]\n")
		fmt.Fprintf(&b, "[FEN \"%s\"]\n", sanitizePGN(a.StartFEN))
	}
	b.WriteString("\n")
	b.WriteString(moveText(a.StartFEN, a.MovesSAN))
	return strings.TrimSpace(b.String())
}

// moveText numbers SAN moves starting from the side and move number in fen.
func moveText(fen string, moves []string) string {
	number, black := 1, false
	if fields := strings.Fields(fen); len(fields) >= 6 {
		black = fields[1] == "b"
		if n, err := strconv.Atoi(fields[5]); err == nil && n > 0 {
			number = n
		}
	}

	var b strings.Builder
	for i, mv := range moves {
		switch {
		case !black:
			fmt.Fprintf(&b, "%d. ", number)
		case i == 0:
			fmt.Fprintf(&b, "%d... ", number)
		}
		b.WriteString(strings.TrimSpace(mv))
		b.WriteByte(' ')
		if black {
			number++
		}
		black = !black
	}
	b.WriteString("*")
	return b.String()
}

func sanitizePGN(s string) string {
	s = strings.ReplaceAll(s, "\\", " ")
	s = strings.ReplaceAll(s, "\"", "'")
	return strings.TrimSpace(s)
}

package domain

import "time"

type AttemptOutcome string

const (
	OutcomeSolved        AttemptOutcome = "solved"
	OutcomeWrong         AttemptOutcome = "wrong"
	OutcomeResigned      AttemptOutcome = "resigned"
	OutcomeInternalError AttemptOutcome = "internal_error"
)

// PuzzleAttempt is one finished puzzle session in a channel.
type PuzzleAttempt struct {
	ID          int64
	SessionUUID string
	Channel     string
	PuzzleID    string
	Rating      int
	StartFEN    string
	Outcome     AttemptOutcome
	MovesSAN    []string
	LastInput   string
	StartedAt   time.Time
	EndedAt     time.Time
	Duration    time.Duration
}

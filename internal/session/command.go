package session

import "strings"

type CommandKind int

const (
	CommandMove CommandKind = iota
	CommandNew
	CommandResign
)

func (k CommandKind) String() string {
	switch k {
	case CommandNew:
		return "new"
	case CommandResign:
		return "resign"
	default:
		return "move"
	}
}

type Command struct {
	Kind CommandKind
	Text string
}

// Classify matches "new" and "resign" case-insensitively after trimming.
// Anything else is a move candidate.
func Classify(text string) Command {
	t := strings.TrimSpace(text)
	switch {
	case strings.EqualFold(t, "new"):
		return Command{Kind: CommandNew, Text: t}
	case strings.EqualFold(t, "resign"):
		return Command{Kind: CommandResign, Text: t}
	default:
		return Command{Kind: CommandMove, Text: t}
	}
}

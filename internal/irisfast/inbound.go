package irisfast

import "strings"

// CommandFilter turns Iris messages into bot commands: the room must be allowed
// (an empty allow-list admits every room) and the text must start with the prefix.
type CommandFilter struct {
	prefix string
	rooms  map[string]struct{}
}

func NewCommandFilter(prefix string, allowedRooms []string) *CommandFilter {
	f := &CommandFilter{prefix: strings.TrimSpace(prefix)}
	if len(allowedRooms) > 0 {
		f.rooms = make(map[string]struct{}, len(allowedRooms))
		for _, r := range allowedRooms {
			if r = strings.TrimSpace(r); r != "" {
				f.rooms[r] = struct{}{}
			}
		}
	}
	return f
}

// Command returns the room and the text after the prefix.
// ok is false for foreign rooms, unprefixed chatter and a bare prefix.
func (f *CommandFilter) Command(msg *Message) (room, text string, ok bool) {
	if msg == nil || strings.TrimSpace(msg.Room) == "" {
		return "", "", false
	}
	if f.rooms != nil {
		if _, allowed := f.rooms[msg.Room]; !allowed {
			return "", "", false
		}
	}
	raw := strings.TrimSpace(msg.Msg)
	if !strings.HasPrefix(raw, f.prefix) {
		return "", "", false
	}
	text = strings.TrimSpace(strings.TrimPrefix(raw, f.prefix))
	if text == "" {
		return "", "", false
	}
	return msg.Room, text, true
}

// Package slack parses Slack Events API payloads and posts replies back to Slack.
package slack

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	ErrBadPayload = errors.New("bad slack payload")
	// ErrNotTextMention marks a well-formed event that carries no user text for the bot.
	ErrNotTextMention = errors.New("not a text mention")
)

const (
	TypeURLVerification = "url_verification"
	TypeEventCallback   = "event_callback"
)

type envelope struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge"`
	TeamID    string `json:"team_id"`
	EventID   string `json:"event_id"`
	Event     *event `json:"event"`
}

type event struct {
	Type    string `json:"type"`
	Subtype string `json:"subtype"`
	Channel string `json:"channel"`
	User    string `json:"user"`
	Text    string `json:"text"`
	BotID   string `json:"bot_id"`
}

// Inbound is one user message addressed to the bot.
type Inbound struct {
	EventID string
	Channel string
	User    string
	Text    string
}

// Parsed is either a URL verification challenge or an inbound message.
type Parsed struct {
	Challenge string
	Inbound   *Inbound
}

var mentionPattern = regexp.MustCompile(`<@[A-Z0-9]+(\|[^>]*)?>`)

// ParseEvent decodes an Events API request body. Events that are not user text
// (bot messages, edits, joins, unsupported types, empty text) return ErrNotTextMention,
// as do message events that mention someone, since the app_mention copy is handled.
func ParseEvent(body []byte) (Parsed, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Parsed{}, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}

	switch env.Type {
	case TypeURLVerification:
		if env.Challenge == "" {
			return Parsed{}, fmt.Errorf("%w: empty challenge", ErrBadPayload)
		}
		return Parsed{Challenge: env.Challenge}, nil
	case TypeEventCallback:
	default:
		if env.Challenge != "" {
			return Parsed{Challenge: env.Challenge}, nil
		}
		return Parsed{}, fmt.Errorf("%w: type %q", ErrNotTextMention, env.Type)
	}

	ev := env.Event
	if ev == nil {
		return Parsed{}, fmt.Errorf("%w: missing event", ErrBadPayload)
	}
	if ev.Type != "app_mention" && ev.Type != "message" {
		return Parsed{}, fmt.Errorf("%w: event %q", ErrNotTextMention, ev.Type)
	}
	if ev.BotID != "" || ev.Subtype != "" {
		return Parsed{}, fmt.Errorf("%w: bot or subtype %q", ErrNotTextMention, ev.Subtype)
	}
	// Slack sends a mention twice: as app_mention and as message. Only the former counts.
	if ev.Type == "message" && mentionPattern.MatchString(ev.Text) {
		return Parsed{}, fmt.Errorf("%w: mention delivered as message", ErrNotTextMention)
	}
	if ev.Channel == "" {
		return Parsed{}, fmt.Errorf("%w: missing channel", ErrBadPayload)
	}
	text := strings.TrimSpace(mentionPattern.ReplaceAllString(ev.Text, ""))
	if text == "" {
		return Parsed{}, fmt.Errorf("%w: empty text", ErrNotTextMention)
	}
	return Parsed{Inbound: &Inbound{
		EventID: env.EventID,
		Channel: ev.Channel,
		User:    ev.User,
		Text:    text,
	}}, nil
}

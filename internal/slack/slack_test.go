package slack

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseChallenge(t *testing.T) {
	p, err := ParseEvent([]byte(`{"type":"url_verification","challenge":"abc123","token":"x"}`))
	if err != nil || p.Challenge != "abc123" || p.Inbound != nil {
		t.Fatalf("p=%+v err=%v", p, err)
	}
}

func TestParseMention(t *testing.T) {
	body := `{"type":"event_callback","event_id":"Ev1","event":{"type":"app_mention","channel":"C42","user":"U1","text":"<@U0BOT> Nf6"}}`
	p, err := ParseEvent([]byte(body))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	in := p.Inbound
	if in == nil || in.Channel != "C42" || in.User != "U1" || in.Text != "Nf6" || in.EventID != "Ev1" {
		t.Fatalf("inbound = %+v", in)
	}

	p, err = ParseEvent([]byte(`{"type":"event_callback","event":{"type":"app_mention","channel":"C1","user":"U1","text":"<@U0BOT|puzzlebot>   new  "}}`))
	if err != nil || p.Inbound.Text != "new" {
		t.Fatalf("labelled mention: %+v %v", p.Inbound, err)
	}

	p, err = ParseEvent([]byte(`{"type":"event_callback","event":{"type":"message","channel":"D1","user":"U1","text":"resign"}}`))
	if err != nil || p.Inbound.Text != "resign" {
		t.Fatalf("direct message: %+v %v", p.Inbound, err)
	}
}

func TestMentionDeliveredTwiceYieldsOneInbound(t *testing.T) {
	deliveries := []string{
		`{"type":"event_callback","event_id":"Ev1","event":{"type":"app_mention","channel":"C1","user":"U1","text":"<@U0BOT> Nf6","client_msg_id":"m1"}}`,
		`{"type":"event_callback","event_id":"Ev2","event":{"type":"message","channel":"C1","user":"U1","text":"<@U0BOT> Nf6","client_msg_id":"m1"}}`,
	}
	var inbound []*Inbound
	for _, d := range deliveries {
		p, err := ParseEvent([]byte(d))
		if err != nil {
			if !errors.Is(err, ErrNotTextMention) {
				t.Fatalf("%s: err = %v", d, err)
			}
			continue
		}
		inbound = append(inbound, p.Inbound)
	}
	if len(inbound) != 1 || inbound[0].EventID != "Ev1" || inbound[0].Text != "Nf6" {
		t.Fatalf("inbound = %+v", inbound)
	}
}

func TestParseNotTextMention(t *testing.T) {
	cases := []string{
		`{"type":"event_callback","event":{"type":"reaction_added","channel":"C1","user":"U1"}}`,
		`{"type":"event_callback","event":{"type":"message","channel":"C1","bot_id":"B1","text":"hi"}}`,
		`{"type":"event_callback","event":{"type":"message","subtype":"message_changed","channel":"C1"}}`,
		`{"type":"event_callback","event":{"type":"app_mention","channel":"C1","user":"U1","text":"<@U0BOT>"}}`,
		`{"type":"app_rate_limited"}`,
	}
	for _, c := range cases {
		if _, err := ParseEvent([]byte(c)); !errors.Is(err, ErrNotTextMention) {
			t.Fatalf("%s: err = %v", c, err)
		}
	}
}

func TestParseBadPayload(t *testing.T) {
	for _, c := range []string{`not json`, `{"type":"event_callback"}`, `{"type":"event_callback","event":{"type":"message","user":"U","text":"x"}}`} {
		if _, err := ParseEvent([]byte(c)); !errors.Is(err, ErrBadPayload) {
			t.Fatalf("%s: err = %v", c, err)
		}
	}
}

func TestSendTextWebhook(t *testing.T) {
	var got webhookMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &got)
		if r.Header.Get("Authorization") != "" {
			t.Errorf("webhook request carried a token")
		}
	}))
	defer srv.Close()

	if err := NewClient(srv.URL, "").SendText(context.Background(), "C1", "hello"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if got.Text != "hello" {
		t.Fatalf("got = %+v", got)
	}
}

func TestSendTextPostMessage(t *testing.T) {
	var got postMessageRequest
	var auth, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth, path = r.Header.Get("Authorization"), r.URL.Path
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &got)
		_, _ = io.WriteString(w, `{"ok":true}`)
	}))
	defer srv.Close()

	c := NewClient("", "xoxb-1", WithAPIBase(srv.URL))
	if err := c.SendText(context.Background(), "C9", "hi"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if auth != "Bearer xoxb-1" || path != "/chat.postMessage" || got.Channel != "C9" || got.Text != "hi" {
		t.Fatalf("auth=%q path=%q got=%+v", auth, path, got)
	}
}

func TestSendTextAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"ok":false,"error":"channel_not_found"}`)
	}))
	defer srv.Close()

	err := NewClient("", "xoxb-1", WithAPIBase(srv.URL)).SendText(context.Background(), "C9", "hi")
	if err == nil {
		t.Fatalf("expected api error")
	}
}

func TestSendTextUnconfigured(t *testing.T) {
	if err := NewClient("", "").SendText(context.Background(), "C1", "x"); err != nil {
		t.Fatalf("err = %v", err)
	}
}

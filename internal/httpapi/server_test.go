package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/park285/Cheese-Puzzle-bot/internal/board"
	"github.com/park285/Cheese-Puzzle-bot/internal/render"
	"github.com/park285/Cheese-Puzzle-bot/internal/session"
)

type call struct{ channel, text string }

type fakeCommands struct {
	mu    sync.Mutex
	calls []call
}

func (f *fakeCommands) Handle(_ context.Context, channel, text string) session.Reply {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{channel, text})
	return session.Reply{Kind: session.ReplyNotFound, Text: "No active puzzle."}
}

type fakeDeliverer struct {
	mu      sync.Mutex
	replies map[string]session.Reply
	done    chan struct{}
}

func (f *fakeDeliverer) Deliver(_ context.Context, channel string, r session.Reply) error {
	f.mu.Lock()
	f.replies[channel] = r
	f.mu.Unlock()
	f.done <- struct{}{}
	return nil
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeCommands, *fakeDeliverer) {
	t.Helper()
	cmds := &fakeCommands{}
	out := &fakeDeliverer{replies: map[string]session.Reply{}, done: make(chan struct{}, 4)}
	api := New(cmds, out, render.NewRenderer(16), WithLogger(zaptest.NewLogger(t)))
	srv := httptest.NewServer(api.Router())
	t.Cleanup(func() {
		srv.Close()
		_ = api.Shutdown(context.Background())
	})
	return srv, cmds, out
}

func post(t *testing.T, url, body string, header map[string]string) (*http.Response, string) {
	t.Helper()
	req, _ := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, string(b)
}

func TestSlackChallenge(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp, body := post(t, srv.URL+"/puzzle", `{"type":"url_verification","challenge":"xyz"}`, nil)
	var got map[string]string
	_ = json.Unmarshal([]byte(body), &got)
	if resp.StatusCode != http.StatusOK || got["challenge"] != "xyz" {
		t.Fatalf("status=%d body=%s", resp.StatusCode, body)
	}
}

func TestSlackEventDispatchesAsync(t *testing.T) {
	srv, cmds, out := newTestServer(t)
	body := `{"type":"event_callback","event_id":"Ev1","event":{"type":"app_mention","channel":"C7","user":"U1","text":"<@U0BOT> new"}}`
	resp, _ := post(t, srv.URL+"/puzzle", body, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	select {
	case <-out.done:
	case <-time.After(5 * time.Second):
		t.Fatalf("reply never delivered")
	}
	cmds.mu.Lock()
	defer cmds.mu.Unlock()
	if len(cmds.calls) != 1 || cmds.calls[0] != (call{"C7", "new"}) {
		t.Fatalf("calls = %+v", cmds.calls)
	}
	if out.replies["C7"].Kind != session.ReplyNotFound {
		t.Fatalf("replies = %+v", out.replies)
	}
}

func TestSlackRetriesAndNoiseAreAcked(t *testing.T) {
	srv, cmds, _ := newTestServer(t)
	body := `{"type":"event_callback","event":{"type":"message","channel":"C7","user":"U1","text":"Nf6"}}`
	if resp, _ := post(t, srv.URL+"/puzzle", body, map[string]string{"X-Slack-Retry-Num": "1"}); resp.StatusCode != http.StatusOK {
		t.Fatalf("retry status = %d", resp.StatusCode)
	}
	bot := `{"type":"event_callback","event":{"type":"message","channel":"C7","bot_id":"B1","text":"Correct!"}}`
	if resp, _ := post(t, srv.URL+"/puzzle", bot, nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("bot status = %d", resp.StatusCode)
	}
	time.Sleep(50 * time.Millisecond)
	cmds.mu.Lock()
	defer cmds.mu.Unlock()
	if len(cmds.calls) != 0 {
		t.Fatalf("calls = %+v", cmds.calls)
	}
}

func TestSlackBadPayload(t *testing.T) {
	srv, _, _ := newTestServer(t)
	if resp, _ := post(t, srv.URL+"/puzzle", `{{`, nil); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestBoardImage(t *testing.T) {
	srv, _, _ := newTestServer(t)
	url := session.BoardURL(srv.URL, board.StartFEN)
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" || !strings.HasPrefix(string(b), "\x89PNG") {
		t.Fatalf("status=%d type=%q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
}

func TestBoardImageBadFEN(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/puzzle/not-a-fen")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var got map[string]string
	_ = json.NewDecoder(resp.Body).Decode(&got)
	if resp.StatusCode != http.StatusInternalServerError || got["error"] != "Something went wrong" {
		t.Fatalf("status=%d body=%v", resp.StatusCode, got)
	}
}

func TestHealth(t *testing.T) {
	srv, _, _ := newTestServer(t)
	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

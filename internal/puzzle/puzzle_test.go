package puzzle

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestRecordValidate(t *testing.T) {
	good := Record{ID: "1", FEN: "startpos", Blunder: "e4", Line: []string{"Nf6", "e5", "Nd5"}, Rating: 1500}
	if err := good.Validate(); err != nil {
		t.Fatalf("valid record rejected: %v", err)
	}

	cases := map[string]func(r *Record){
		"no fen":      func(r *Record) { r.FEN = " " },
		"no blunder":  func(r *Record) { r.Blunder = "" },
		"empty line":  func(r *Record) { r.Line = nil },
		"even line":   func(r *Record) { r.Line = []string{"Nf6", "e5"} },
		"blank move":  func(r *Record) { r.Line = []string{"Nf6", "", "Nd5"} },
		"zero rating": func(r *Record) { r.Rating = 0 },
	}
	for name, mutate := range cases {
		r := good.Clone()
		mutate(&r)
		if err := r.Validate(); !errors.Is(err, ErrMalformed) {
			t.Fatalf("%s: err = %v, want ErrMalformed", name, err)
		}
	}
}

func TestRecordCloneIsolation(t *testing.T) {
	r := Record{Line: []string{"a", "b", "c"}}
	c := r.Clone()
	c.Line[0] = "x"
	if r.Line[0] != "a" {
		t.Fatalf("clone shares backing array")
	}
}

func TestBlundersSourceFetch(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"status":"ok","data":{"id":"abc","fenBefore":"rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1","blunderMove":"e4","forcedLine":["Nf6","e5","Nd5"],"elo":1500}}`)
	}))
	defer srv.Close()

	src := NewBlundersSource(srv.URL, WithFetchTimeout(2*time.Second))
	rec, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if gotBody != `{"type":"explore"}` {
		t.Fatalf("request body = %s", gotBody)
	}
	if rec.ID != "abc" || rec.Blunder != "e4" || rec.Rating != 1500 || len(rec.Line) != 3 {
		t.Fatalf("unexpected record %+v", rec)
	}
}

func TestBlundersSourceRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, `{"status":"ok","data":{"id":"x","fenBefore":"startpos","blunderMove":"e4","forcedLine":["Nf6"],"elo":1200}}`)
	}))
	defer srv.Close()

	rec, err := NewBlundersSource(srv.URL, WithFetchRetry(3)).Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
	if rec.Rating != 1200 {
		t.Fatalf("rating = %d", rec.Rating)
	}
}

func TestBlundersSourceMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"status":"ok","data":{"id":"x","fenBefore":"startpos","blunderMove":"e4","forcedLine":[],"elo":1200}}`)
	}))
	defer srv.Close()

	_, err := NewBlundersSource(srv.URL).Fetch(context.Background())
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
}

func TestBlundersSourceClientErrorNoRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	if _, err := NewBlundersSource(srv.URL, WithFetchRetry(3)).Fetch(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pack.yaml")
	content := `puzzles:
  - fen: startpos
    blunder: e4
    line: [Nf6, e5, Nd5]
    rating: 1500
  - id: second
    fen: startpos
    blunder: d4
    line: [d5]
    rating: 1100
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	src, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if src.Len() != 2 {
		t.Fatalf("len = %d", src.Len())
	}
	src.pick = func(int) int { return 0 }
	rec, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if rec.ID != "pack-1" {
		t.Fatalf("id = %s", rec.ID)
	}
	rec.Line[0] = "mutated"
	again, _ := src.Fetch(context.Background())
	if again.Line[0] != "Nf6" {
		t.Fatalf("fetch leaked internal slice")
	}
}

func TestParsePackRejectsBadRecord(t *testing.T) {
	_, err := ParsePack([]byte("puzzles:\n  - fen: startpos\n    blunder: e4\n    line: [Nf6, e5]\n    rating: 1500\n"))
	if !errors.Is(err, ErrMalformed) {
		t.Fatalf("err = %v, want ErrMalformed", err)
	}
	if _, err := ParsePack([]byte("puzzles: []\n")); !errors.Is(err, ErrMalformed) {
		t.Fatalf("empty pack err = %v", err)
	}
}

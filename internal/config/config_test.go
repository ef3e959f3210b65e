package config

import (
	"slices"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"PORT", "SERVER_URL", "SLACK_WEBHOOK_URL", "SLACK_BOT_TOKEN", "IRIS_BASE_URL", "IRIS_WS_URL",
		"BOT_PREFIX", "ALLOWED_ROOMS", "X_USER_ID", "X_USER_EMAIL", "X_SESSION_ID", "REDIS_URL",
		"DATABASE_URL", "PUZZLE_SESSION_TTL", "PUZZLE_SOURCE", "PUZZLE_API_URL", "PUZZLE_FILE",
		"PUZZLE_FETCH_TIMEOUT", "MESSAGES_DIR", "BOARD_SQUARE_SIZE", "IRIS_EGRESS",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "1337" || cfg.ServerURL != "http://localhost:1337" {
		t.Fatalf("server defaults: %+v", cfg)
	}
	if cfg.PuzzleSource != SourceBlunders || cfg.PuzzleFetchTimeout != 10*time.Second {
		t.Fatalf("puzzle defaults: %+v", cfg)
	}
	if cfg.SessionTTL() != 24*time.Hour || cfg.BoardSquareSize != 90 {
		t.Fatalf("ttl=%v square=%d", cfg.SessionTTL(), cfg.BoardSquareSize)
	}
	if cfg.KakaoEnabled() {
		t.Fatalf("kakao enabled without urls")
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "8080")
	t.Setenv("SERVER_URL", "https://bot.example.com/")
	t.Setenv("IRIS_BASE_URL", "http://iris:3000")
	t.Setenv("IRIS_WS_URL", "ws://iris:3000/ws")
	t.Setenv("BOT_PREFIX", "!퍼즐")
	t.Setenv("ALLOWED_ROOMS", " room1, ,room2 ")
	t.Setenv("PUZZLE_SOURCE", "FILE")
	t.Setenv("PUZZLE_FILE", "/tmp/pack.yaml")
	t.Setenv("PUZZLE_FETCH_TIMEOUT", "3")
	t.Setenv("PUZZLE_SESSION_TTL", "junk")
	t.Setenv("IRIS_EGRESS", "Auto")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ServerURL != "https://bot.example.com" {
		t.Fatalf("server url = %s", cfg.ServerURL)
	}
	if !cfg.KakaoEnabled() || !slices.Equal(cfg.AllowedRooms, []string{"room1", "room2"}) {
		t.Fatalf("kakao config: %+v", cfg)
	}
	if cfg.PuzzleSource != SourceFile || cfg.PuzzleFetchTimeout != 3*time.Second {
		t.Fatalf("puzzle config: %+v", cfg)
	}
	if cfg.IrisEgress != "auto" {
		t.Fatalf("egress = %q", cfg.IrisEgress)
	}
	if cfg.PuzzleSessionTTLSec != 86400 {
		t.Fatalf("invalid ttl should keep default, got %d", cfg.PuzzleSessionTTLSec)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := map[string]map[string]string{
		"file without path":   {"PUZZLE_SOURCE": "file"},
		"unknown source":      {"PUZZLE_SOURCE": "lichess"},
		"iris half set":       {"IRIS_BASE_URL": "http://iris"},
		"iris without prefix": {"IRIS_BASE_URL": "http://iris", "IRIS_WS_URL": "ws://iris/ws"},
		"unknown egress":      {"IRIS_EGRESS": "smtp"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

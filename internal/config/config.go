package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	SourceBlunders = "blunders"
	SourceFile     = "file"
)

type AppConfig struct {
	Port      string
	ServerURL string

	SlackWebhookURL string
	SlackBotToken   string

	IrisBaseURL string
	IrisWSURL   string
	IrisEgress  string

	BotPrefix string

	XUserID    string
	XUserEmail string
	XSessionID string

	AllowedRooms []string

	RedisURL    string
	DatabaseURL string

	PuzzleSessionTTLSec int
	PuzzleSource        string
	PuzzleAPIURL        string
	PuzzleFile          string
	PuzzleFetchTimeout  time.Duration

	MessagesDir     string
	BoardSquareSize int
}

// KakaoEnabled reports whether the Iris transport is configured.
func (c *AppConfig) KakaoEnabled() bool {
	return c.IrisBaseURL != "" && c.IrisWSURL != ""
}

func (c *AppConfig) SessionTTL() time.Duration {
	return time.Duration(c.PuzzleSessionTTLSec) * time.Second
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		Port:                "1337",
		ServerURL:           "http://localhost:1337",
		PuzzleSessionTTLSec: 86400,
		PuzzleSource:        SourceBlunders,
		PuzzleAPIURL:        "https://chessblunders.org/api/blunder/get",
		PuzzleFetchTimeout:  10 * time.Second,
		BoardSquareSize:     90,
		IrisEgress:          "http",
	}

	if v := strings.TrimSpace(os.Getenv("PORT")); v != "" {
		cfg.Port = v
	}
	if v := strings.TrimSpace(os.Getenv("SERVER_URL")); v != "" {
		cfg.ServerURL = strings.TrimRight(v, "/")
	}

	cfg.SlackWebhookURL = strings.TrimSpace(os.Getenv("SLACK_WEBHOOK_URL"))
	cfg.SlackBotToken = strings.TrimSpace(os.Getenv("SLACK_BOT_TOKEN"))

	cfg.IrisBaseURL = strings.TrimSpace(os.Getenv("IRIS_BASE_URL"))
	cfg.IrisWSURL = strings.TrimSpace(os.Getenv("IRIS_WS_URL"))
	if v := strings.TrimSpace(os.Getenv("IRIS_EGRESS")); v != "" {
		cfg.IrisEgress = strings.ToLower(v)
	}
	cfg.BotPrefix = strings.TrimSpace(os.Getenv("BOT_PREFIX"))

	cfg.XUserID = strings.TrimSpace(os.Getenv("X_USER_ID"))
	cfg.XUserEmail = strings.TrimSpace(os.Getenv("X_USER_EMAIL"))
	cfg.XSessionID = strings.TrimSpace(os.Getenv("X_SESSION_ID"))

	if v := strings.TrimSpace(os.Getenv("ALLOWED_ROOMS")); v != "" {
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				cfg.AllowedRooms = append(cfg.AllowedRooms, s)
			}
		}
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))

	if v := strings.TrimSpace(os.Getenv("PUZZLE_SESSION_TTL")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PuzzleSessionTTLSec = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("PUZZLE_SOURCE")); v != "" {
		cfg.PuzzleSource = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("PUZZLE_API_URL")); v != "" {
		cfg.PuzzleAPIURL = v
	}
	cfg.PuzzleFile = strings.TrimSpace(os.Getenv("PUZZLE_FILE"))
	if v := strings.TrimSpace(os.Getenv("PUZZLE_FETCH_TIMEOUT")); v != "" { // seconds
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PuzzleFetchTimeout = time.Duration(n) * time.Second
		}
	}

	cfg.MessagesDir = strings.TrimSpace(os.Getenv("MESSAGES_DIR"))
	if v := strings.TrimSpace(os.Getenv("BOARD_SQUARE_SIZE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.BoardSquareSize = n
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.ServerURL == "" {
		return errors.New("SERVER_URL is required")
	}
	switch c.PuzzleSource {
	case SourceBlunders:
	case SourceFile:
		if c.PuzzleFile == "" {
			return errors.New("PUZZLE_FILE is required when PUZZLE_SOURCE=file")
		}
	default:
		return errors.New("PUZZLE_SOURCE must be blunders or file")
	}
	if (c.IrisBaseURL == "") != (c.IrisWSURL == "") {
		return errors.New("IRIS_BASE_URL and IRIS_WS_URL must be set together")
	}
	switch c.IrisEgress {
	case "http", "ws", "auto":
	default:
		return errors.New("IRIS_EGRESS must be http, ws or auto")
	}
	if c.KakaoEnabled() && c.BotPrefix == "" {
		return errors.New("BOT_PREFIX is required when the Iris transport is enabled")
	}
	return nil
}

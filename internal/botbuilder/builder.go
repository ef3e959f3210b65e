// Package botbuilder assembles the puzzle bot from its configuration.
package botbuilder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/park285/Cheese-Puzzle-bot/internal/adapter/puzzlepresenter"
	"github.com/park285/Cheese-Puzzle-bot/internal/archive"
	"github.com/park285/Cheese-Puzzle-bot/internal/config"
	"github.com/park285/Cheese-Puzzle-bot/internal/httpapi"
	"github.com/park285/Cheese-Puzzle-bot/internal/irisfast"
	"github.com/park285/Cheese-Puzzle-bot/internal/msgcat"
	"github.com/park285/Cheese-Puzzle-bot/internal/puzzle"
	"github.com/park285/Cheese-Puzzle-bot/internal/render"
	"github.com/park285/Cheese-Puzzle-bot/internal/session"
	"github.com/park285/Cheese-Puzzle-bot/internal/slack"
)

// kakaoSeeMoreThreshold is the reply length (runes) past which Kakao replies are folded.
const kakaoSeeMoreThreshold = 300

type Deps struct {
	Machine  *session.Machine
	Store    session.Store
	Source   puzzle.Source
	Renderer *render.Renderer
	Catalog  *msgcat.Catalog
	API      *httpapi.Server

	Slack *puzzlepresenter.Presenter

	// Kakao is nil unless the Iris transport is configured.
	Kakao *KakaoDeps

	Redis   *redis.Client
	Archive *archive.Repository
}

type KakaoDeps struct {
	Client    *irisfast.Client
	WS        *irisfast.WebSocket
	Filter    *irisfast.CommandFilter
	Presenter *puzzlepresenter.Presenter
}

func New(cfg *config.AppConfig, logger *zap.Logger) (*Deps, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Deps{}
	ok := false
	defer func() {
		if !ok {
			_ = d.Close()
		}
	}()

	catalog, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		return nil, fmt.Errorf("load messages: %w", err)
	}
	d.Catalog = catalog
	d.Renderer = render.NewRenderer(cfg.BoardSquareSize)

	// Sessions and locks: Redis when configured, otherwise process memory.
	var locker session.Locker
	if strings.TrimSpace(cfg.RedisURL) != "" {
		opts, err := parseRedisURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		d.Redis = redis.NewClient(opts)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = d.Redis.Ping(ctx).Err()
		cancel()
		if err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		d.Store = session.NewRedisStore(d.Redis, cfg.SessionTTL())
		locker = session.NewRedisLocker(d.Redis, 0, session.WithLockLogger(logger.Named("lock")))
	} else {
		d.Store = session.NewMemoryStore()
		locker = session.NewLocalLocker()
	}

	d.Source, err = newSource(cfg)
	if err != nil {
		return nil, err
	}

	machineOpts := []session.Option{
		session.WithLocker(locker),
		session.WithLogger(logger.Named("session")),
		session.WithFormatter(puzzlepresenter.NewFormatter(catalog, cfg.ServerURL, "", logger)),
	}
	if strings.TrimSpace(cfg.DatabaseURL) != "" {
		d.Archive, err = archive.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = d.Archive.EnsureSchema(ctx)
		cancel()
		if err != nil {
			return nil, fmt.Errorf("archive schema: %w", err)
		}
		machineOpts = append(machineOpts, session.WithRecorder(d.Archive))
	}
	d.Machine = session.NewMachine(d.Store, d.Source, machineOpts...)

	slackClient := slack.NewClient(cfg.SlackWebhookURL, cfg.SlackBotToken, slack.WithLogger(logger.Named("slack")))
	d.Slack = puzzlepresenter.NewPresenter(slackClient.SendText, puzzlepresenter.WithLogger(logger))

	renderFailed, err := catalog.Render("http.render_failed", nil)
	if err != nil {
		renderFailed = ""
	}
	d.API = httpapi.New(d.Machine, d.Slack, d.Renderer,
		httpapi.WithLogger(logger.Named("http")),
		httpapi.WithRenderErrorText(renderFailed),
	)

	if cfg.KakaoEnabled() {
		d.Kakao = newKakao(cfg, catalog, d.Renderer, logger.Named("kakao"))
	}

	ok = true
	return d, nil
}

func newSource(cfg *config.AppConfig) (puzzle.Source, error) {
	switch cfg.PuzzleSource {
	case config.SourceFile:
		src, err := puzzle.LoadFile(cfg.PuzzleFile)
		if err != nil {
			return nil, fmt.Errorf("load puzzle file: %w", err)
		}
		return src, nil
	default:
		return puzzle.NewBlundersSource(cfg.PuzzleAPIURL, puzzle.WithFetchTimeout(cfg.PuzzleFetchTimeout)), nil
	}
}

func newKakao(cfg *config.AppConfig, catalog *msgcat.Catalog, renderer *render.Renderer, logger *zap.Logger) *KakaoDeps {
	headers := irisHeaders(cfg)
	client := irisfast.NewClient(cfg.IrisBaseURL, irisfast.WithHeaderProvider(headers))
	ws := irisfast.NewWebSocket(cfg.IrisWSURL, 5, time.Second,
		irisfast.WithWSHeaders(headers),
		irisfast.WithWSLogger(logger),
	)
	egress := irisfast.NewEgress(cfg.IrisEgress, client, ws, logger)

	header, err := catalog.Render("kakao.see_more", nil)
	if err != nil {
		header = ""
	}
	presenter := puzzlepresenter.NewPresenter(egress.SendText,
		puzzlepresenter.WithImages(renderer, egress.SendImage),
		puzzlepresenter.WithFormatter(puzzlepresenter.NewFormatter(catalog, cfg.ServerURL, cfg.BotPrefix+" ", logger)),
		puzzlepresenter.WithSeeMore(header, kakaoSeeMoreThreshold),
		puzzlepresenter.WithLogger(logger),
	)
	return &KakaoDeps{
		Client:    client,
		WS:        ws,
		Filter:    irisfast.NewCommandFilter(cfg.BotPrefix, cfg.AllowedRooms),
		Presenter: presenter,
	}
}

func irisHeaders(cfg *config.AppConfig) irisfast.HeaderProvider {
	return func() map[string]string {
		h := map[string]string{}
		if cfg.XUserID != "" {
			h["X-User-Id"] = cfg.XUserID
		}
		if cfg.XUserEmail != "" {
			h["X-User-Email"] = cfg.XUserEmail
		}
		if cfg.XSessionID != "" {
			h["X-Session-Id"] = cfg.XSessionID
		}
		return h
	}
}

// parseRedisURL accepts redis:// and rediss:// URLs with an optional /<db> path.
func parseRedisURL(raw string) (*redis.Options, error) {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "redis://") && !strings.HasPrefix(raw, "rediss://") {
		return nil, fmt.Errorf("unsupported scheme in %q", raw)
	}
	return redis.ParseURL(raw)
}

// Close releases Redis and Postgres connections.
func (d *Deps) Close() error {
	var errs []error
	if d.Redis != nil {
		errs = append(errs, d.Redis.Close())
	}
	if d.Archive != nil {
		errs = append(errs, d.Archive.Close())
	}
	return errors.Join(errs...)
}

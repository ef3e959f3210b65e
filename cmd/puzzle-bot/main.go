package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/park285/Cheese-Puzzle-bot/internal/botbuilder"
	appcfg "github.com/park285/Cheese-Puzzle-bot/internal/config"
	"github.com/park285/Cheese-Puzzle-bot/internal/irisfast"
	"github.com/park285/Cheese-Puzzle-bot/internal/obslog"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("dotenv: %v", err)
	}
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	deps, err := botbuilder.New(cfg, logger)
	if err != nil {
		logger.Fatal("bot init failed", zap.Error(err))
	}
	defer func() { _ = deps.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if deps.Kakao != nil {
		startKakao(ctx, deps.Kakao, deps, logger)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           deps.API.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		logger.Info("http_listening",
			zap.String("addr", srv.Addr),
			zap.String("server_url", cfg.ServerURL),
			zap.String("puzzle_source", cfg.PuzzleSource),
			zap.Bool("redis", deps.Redis != nil),
			zap.Bool("archive", deps.Archive != nil),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	stop()
	logger.Info("shutting_down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if deps.Kakao != nil {
		_ = deps.Kakao.WS.Close(shutdownCtx)
	}
	if err := deps.API.Shutdown(shutdownCtx); err != nil {
		logger.Warn("pending commands abandoned", zap.Error(err))
	}
}

func startKakao(ctx context.Context, k *botbuilder.KakaoDeps, deps *botbuilder.Deps, logger *zap.Logger) {
	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if irisCfg, err := k.Client.GetConfig(probeCtx); err != nil {
		logger.Warn("iris_config_unavailable", zap.Error(err))
	} else {
		logger.Info("iris_config", zap.String("bot", irisCfg.BotName), zap.Int("port", irisCfg.Port))
	}
	cancel()

	k.WS.OnStateChange(func(state irisfast.WebSocketState) {
		logger.Info("iris_ws_state", zap.String("state", string(state)))
	})
	k.WS.OnMessage(func(msg *irisfast.Message) {
		room, text, ok := k.Filter.Command(msg)
		if !ok {
			return
		}
		// Avoid blocking the WS loop
		go func() {
			hctx, cancel := context.WithTimeout(ctx, time.Minute)
			defer cancel()
			reply := deps.Machine.Handle(hctx, room, text)
			if err := k.Presenter.Deliver(hctx, room, reply); err != nil {
				logger.Warn("kakao_reply_failed",
					zap.String("room", room),
					zap.String("sender", msg.SenderName()),
					zap.String("kind", string(reply.Kind)),
					zap.Error(err),
				)
			}
		}()
	})

	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := k.WS.Connect(cctx); err != nil {
		// Connect keeps redialling in the background.
		logger.Warn("iris_ws_connect_failed", zap.Error(err))
	}
}

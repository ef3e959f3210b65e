// Package httpapi serves the Slack events endpoint and the board image endpoint.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/park285/Cheese-Puzzle-bot/internal/session"
	"github.com/park285/Cheese-Puzzle-bot/internal/slack"
)

const maxEventBody = 1 << 20

// CommandHandler runs one chat command for a channel.
type CommandHandler interface {
	Handle(ctx context.Context, channel, text string) session.Reply
}

// Deliverer sends a reply to a chat channel.
type Deliverer interface {
	Deliver(ctx context.Context, channel string, r session.Reply) error
}

type BoardRenderer interface {
	RenderFEN(ctx context.Context, fen string) ([]byte, error)
}

type Server struct {
	commands CommandHandler
	slackOut Deliverer
	renderer BoardRenderer
	logger   *zap.Logger

	renderFailed  string
	handleTimeout time.Duration

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

type Option func(*Server)

func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRenderErrorText sets the error message returned when a board image cannot be drawn.
func WithRenderErrorText(text string) Option {
	return func(s *Server) {
		if text != "" {
			s.renderFailed = text
		}
	}
}

func WithHandleTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.handleTimeout = d
		}
	}
}

func New(commands CommandHandler, slackOut Deliverer, renderer BoardRenderer, opts ...Option) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		commands:      commands,
		slackOut:      slackOut,
		renderer:      renderer,
		logger:        zap.NewNop(),
		renderFailed:  "Something went wrong",
		handleTimeout: time.Minute,
		baseCtx:       ctx,
		cancel:        cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/health"))

	r.Post("/puzzle", s.handleSlackEvent)
	r.Get("/puzzle/*", s.handleBoardImage)
	return r
}

// Shutdown cancels in-flight command handling and waits for it to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) handleSlackEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBody))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}
	parsed, err := slack.ParseEvent(body)
	switch {
	case errors.Is(err, slack.ErrNotTextMention):
		w.WriteHeader(http.StatusOK)
		return
	case err != nil:
		s.logger.Warn("slack_event_rejected", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad payload"})
		return
	}
	if parsed.Challenge != "" {
		writeJSON(w, http.StatusOK, map[string]string{"challenge": parsed.Challenge})
		return
	}

	// Slack redelivers events it thinks timed out; the first delivery is already being handled.
	if retry := r.Header.Get("X-Slack-Retry-Num"); retry != "" {
		s.logger.Debug("slack_retry_ignored", zap.String("event_id", parsed.Inbound.EventID), zap.String("retry", retry))
		w.WriteHeader(http.StatusOK)
		return
	}

	in := *parsed.Inbound
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.dispatch(in)
	}()
	w.WriteHeader(http.StatusOK)
}

func (s *Server) dispatch(in slack.Inbound) {
	ctx, cancel := context.WithTimeout(s.baseCtx, s.handleTimeout)
	defer cancel()
	reply := s.commands.Handle(ctx, in.Channel, in.Text)
	if s.slackOut == nil {
		return
	}
	if err := s.slackOut.Deliver(ctx, in.Channel, reply); err != nil {
		s.logger.Warn("slack_reply_failed",
			zap.String("channel", in.Channel),
			zap.String("kind", string(reply.Kind)),
			zap.Error(err),
		)
	}
}

func (s *Server) handleBoardImage(w http.ResponseWriter, r *http.Request) {
	fen, err := url.PathUnescape(chi.URLParam(r, "*"))
	if err == nil && s.renderer != nil {
		var png []byte
		png, err = s.renderer.RenderFEN(r.Context(), fen)
		if err == nil {
			w.Header().Set("Content-Type", "image/png")
			w.Header().Set("Cache-Control", "public, max-age=86400")
			_, _ = w.Write(png)
			return
		}
	}
	s.logger.Warn("board_render_failed", zap.String("fen", fen), zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": s.renderFailed})
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http_request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

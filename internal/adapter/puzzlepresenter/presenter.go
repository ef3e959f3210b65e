package puzzlepresenter

import (
	"context"
	"encoding/base64"
	"strings"

	"go.uber.org/zap"

	"github.com/park285/Cheese-Puzzle-bot/internal/board"
	"github.com/park285/Cheese-Puzzle-bot/internal/render"
	"github.com/park285/Cheese-Puzzle-bot/internal/session"
	"github.com/park285/Cheese-Puzzle-bot/internal/util"
)

type BoardRenderer interface {
	RenderPNG(ctx context.Context, pos *board.Position, opts render.Options) ([]byte, error)
}

// Presenter delivers a reply to one chat channel: the text first, then a board image
// when the reply shows a live position and an image sender is configured.
type Presenter struct {
	sendMessage func(ctx context.Context, channel, message string) error
	sendImage   func(ctx context.Context, channel, imageBase64 string) error
	renderer    BoardRenderer
	format      session.Formatter
	logger      *zap.Logger

	seeMoreHeader    string
	seeMoreThreshold int
}

type Option func(*Presenter)

func WithImages(r BoardRenderer, sendImage func(ctx context.Context, channel, imageBase64 string) error) Option {
	return func(p *Presenter) {
		p.renderer = r
		p.sendImage = sendImage
	}
}

// WithFormatter re-renders reply texts for this transport, e.g. with its own command prefix.
func WithFormatter(f session.Formatter) Option {
	return func(p *Presenter) { p.format = f }
}

// WithSeeMore folds messages longer than threshold runes behind Kakao's "see more".
func WithSeeMore(header string, threshold int) Option {
	return func(p *Presenter) {
		p.seeMoreHeader = header
		p.seeMoreThreshold = threshold
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(p *Presenter) {
		if l != nil {
			p.logger = l
		}
	}
}

func NewPresenter(sendMessage func(ctx context.Context, channel, message string) error, opts ...Option) *Presenter {
	p := &Presenter{sendMessage: sendMessage, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Deliver sends r to channel. Image failures are logged and do not fail the delivery.
func (p *Presenter) Deliver(ctx context.Context, channel string, r session.Reply) error {
	if p == nil {
		return nil
	}
	if p.format != nil {
		r.Text = p.format.Format(r.Kind, r.View)
	}
	if text := strings.TrimSpace(r.Text); text != "" && p.sendMessage != nil {
		msg := r.Text
		if p.seeMoreThreshold > 0 && len([]rune(msg)) > p.seeMoreThreshold {
			msg = util.ApplyKakaoSeeMorePadding(msg, p.seeMoreHeader)
		}
		if err := p.sendMessage(ctx, channel, msg); err != nil {
			return err
		}
	}

	if !r.Kind.ShowsBoard() || r.View.FEN == "" || p.renderer == nil || p.sendImage == nil {
		return nil
	}
	pos, err := board.FromFEN(r.View.FEN)
	if err != nil {
		p.logger.Warn("board_image_failed", zap.String("channel", channel), zap.Error(err))
		return nil
	}
	png, err := p.renderer.RenderPNG(ctx, pos, render.Options{Flip: pos.Turn() == "Black"})
	if err != nil {
		p.logger.Warn("board_image_failed", zap.String("channel", channel), zap.Error(err))
		return nil
	}
	if err := p.sendImage(ctx, channel, base64.StdEncoding.EncodeToString(png)); err != nil {
		p.logger.Warn("board_image_send_failed", zap.String("channel", channel), zap.Error(err))
	}
	return nil
}

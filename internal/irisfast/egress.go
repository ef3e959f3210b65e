package irisfast

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Egress sends replies back to a Kakao room.
type Egress interface {
	SendText(ctx context.Context, room, message string) error
	SendImage(ctx context.Context, room, imageBase64 string) error
}

const (
	EgressHTTP = "http"
	EgressWS   = "ws"
	EgressAuto = "auto"
)

// NewEgress picks the reply path. auto prefers the websocket while it is connected
// and falls back to HTTP once per reply.
func NewEgress(mode string, c *Client, ws *WebSocket, logger *zap.Logger) Egress {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case EgressWS:
		return &wsEgress{ws: ws}
	case EgressAuto:
		return &autoEgress{ws: &wsEgress{ws: ws}, http: c, logger: logger}
	default:
		return c
	}
}

// wsEgress writes ReplyRequest frames on the listener's connection.
type wsEgress struct{ ws *WebSocket }

func (w *wsEgress) SendText(ctx context.Context, room, message string) error {
	return w.ws.WriteJSON(ctx, ReplyRequest{Type: replyTypeText, Room: room, Data: message})
}

func (w *wsEgress) SendImage(ctx context.Context, room, imageBase64 string) error {
	return w.ws.WriteJSON(ctx, ReplyRequest{Type: replyTypeImage, Room: room, Data: imageBase64})
}

type autoEgress struct {
	ws     *wsEgress
	http   *Client
	logger *zap.Logger
}

func (a *autoEgress) SendText(ctx context.Context, room, message string) error {
	if a.ws.ws.State() == WSStateConnected {
		err := a.ws.SendText(ctx, room, message)
		if err == nil {
			return nil
		}
		a.logger.Warn("egress_fallback", zap.String("type", replyTypeText), zap.String("room", room), zap.Error(err))
	}
	return a.http.SendText(ctx, room, message)
}

func (a *autoEgress) SendImage(ctx context.Context, room, imageBase64 string) error {
	if a.ws.ws.State() == WSStateConnected {
		err := a.ws.SendImage(ctx, room, imageBase64)
		if err == nil {
			return nil
		}
		a.logger.Warn("egress_fallback", zap.String("type", replyTypeImage), zap.String("room", room), zap.Error(err))
	}
	return a.http.SendImage(ctx, room, imageBase64)
}

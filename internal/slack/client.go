package slack

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/park285/Cheese-Puzzle-bot/internal/jsonapi"
)

const defaultAPIBase = "https://slack.com/api"

// Client posts replies either through chat.postMessage (bot token) or an incoming webhook.
// With neither configured, replies are only logged.
type Client struct {
	webhookURL string
	token      string
	apiBase    string
	api        *jsonapi.Caller
	logger     *zap.Logger
}

type Option func(*Client)

func WithAPIBase(base string) Option {
	return func(c *Client) { c.apiBase = strings.TrimRight(base, "/") }
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.api.Timeout = d
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func NewClient(webhookURL, token string, opts ...Option) *Client {
	c := &Client{
		webhookURL: strings.TrimSpace(webhookURL),
		token:      strings.TrimSpace(token),
		apiBase:    defaultAPIBase,
		api:        jsonapi.New("slack", 10*time.Second, 16),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type webhookMessage struct {
	Text string `json:"text"`
}

type postMessageRequest struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

type apiResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func (c *Client) SendText(ctx context.Context, channel, text string) error {
	switch {
	case c.token != "":
		var resp apiResponse
		if err := c.post(ctx, c.apiBase+"/chat.postMessage", postMessageRequest{Channel: channel, Text: text}, &resp); err != nil {
			return err
		}
		if !resp.OK {
			return fmt.Errorf("slack chat.postMessage: %s", resp.Error)
		}
		return nil
	case c.webhookURL != "":
		return c.post(ctx, c.webhookURL, webhookMessage{Text: text}, nil)
	default:
		c.logger.Info("slack_reply_dropped", zap.String("channel", channel), zap.String("text", text))
		return nil
	}
}

func (c *Client) post(ctx context.Context, url string, in, out any) error {
	call := jsonapi.Call{Method: fasthttp.MethodPost, URL: url, Body: in}
	if c.token != "" && out != nil {
		call.Header = map[string]string{"Authorization": "Bearer " + c.token}
	}
	return c.api.DoJSON(ctx, call, out)
}

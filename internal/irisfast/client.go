package irisfast

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/park285/Cheese-Puzzle-bot/internal/jsonapi"
)

// HeaderProvider returns headers added to every Iris request, e.g. the bot identity.
type HeaderProvider func() map[string]string

// Client is the HTTP Egress to Iris. Reads are retried; replies go out once so a
// slow Iris never posts the same puzzle message twice.
type Client struct {
	base    string
	api     *jsonapi.Caller
	headers HeaderProvider
	reads   int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.api.Timeout = d
		}
	}
}

func WithHeaderProvider(h HeaderProvider) Option {
	return func(c *Client) { c.headers = h }
}

// WithRetry sets the attempt budget for reads such as GetConfig.
func WithRetry(attempts int) Option {
	return func(c *Client) { c.reads = attempts }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		base:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		api:   jsonapi.New("iris", 10*time.Second, 64),
		reads: 3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetConfig reads the Iris runtime configuration.
func (c *Client) GetConfig(ctx context.Context) (*Config, error) {
	var cfg Config
	call := c.call(fasthttp.MethodGet, "/config", nil)
	call.Attempts = c.reads
	if err := c.api.DoJSON(ctx, call, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Client) SendText(ctx context.Context, room, message string) error {
	return c.reply(ctx, replyTypeText, room, message)
}

func (c *Client) SendImage(ctx context.Context, room, imageBase64 string) error {
	return c.reply(ctx, replyTypeImage, room, imageBase64)
}

func (c *Client) reply(ctx context.Context, kind, room, data string) error {
	if strings.TrimSpace(room) == "" {
		return errors.New("iris reply: empty room")
	}
	call := c.call(fasthttp.MethodPost, "/reply", ReplyRequest{Type: kind, Room: room, Data: data})
	return c.api.DoJSON(ctx, call, nil)
}

func (c *Client) call(method, path string, body any) jsonapi.Call {
	call := jsonapi.Call{Method: method, URL: c.base + path, Body: body}
	if c.headers != nil {
		call.Header = c.headers()
	}
	return call
}

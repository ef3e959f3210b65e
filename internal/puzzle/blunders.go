package puzzle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/park285/Cheese-Puzzle-bot/internal/jsonapi"
)

// DefaultBlundersURL is the public chessblunders.org endpoint.
const DefaultBlundersURL = "https://chessblunders.org/api/blunder/get"

type blunderRequest struct {
	Type string `json:"type"`
}

type blunderResponse struct {
	Status string      `json:"status"`
	Data   blunderData `json:"data"`
}

type blunderData struct {
	ID          string   `json:"id"`
	FenBefore   string   `json:"fenBefore"`
	BlunderMove string   `json:"blunderMove"`
	ForcedLine  []string `json:"forcedLine"`
	Elo         int      `json:"elo"`
}

// BlundersSource asks chessblunders.org for an exploratory puzzle.
type BlundersSource struct {
	url     string
	api     *jsonapi.Caller
	retries int
}

type BlundersOption func(*BlundersSource)

func WithFetchTimeout(d time.Duration) BlundersOption {
	return func(s *BlundersSource) {
		if d > 0 {
			s.api.Timeout = d
		}
	}
}

func WithFetchRetry(n int) BlundersOption {
	return func(s *BlundersSource) { s.retries = n }
}

func NewBlundersSource(url string, opts ...BlundersOption) *BlundersSource {
	url = strings.TrimSpace(url)
	if url == "" {
		url = DefaultBlundersURL
	}
	s := &BlundersSource{
		url:     url,
		api:     jsonapi.New("blunder", 10*time.Second, 16),
		retries: 3,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Fetch retries transport failures and 429/5xx answers. A 2xx body that does not
// describe a playable puzzle fails with ErrMalformed right away.
func (s *BlundersSource) Fetch(ctx context.Context) (Record, error) {
	body, err := s.api.Do(ctx, jsonapi.Call{
		Method:   fasthttp.MethodPost,
		URL:      s.url,
		Body:     blunderRequest{Type: "explore"},
		Attempts: s.retries,
	})
	if err != nil {
		return Record{}, fmt.Errorf("fetch puzzle: %w", err)
	}
	return decodeBlunder(body)
}

func decodeBlunder(body []byte) (Record, error) {
	var out blunderResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return Record{}, fmt.Errorf("%w: decode response: %v", ErrMalformed, err)
	}
	if out.Status != "" && !strings.EqualFold(out.Status, "ok") {
		return Record{}, fmt.Errorf("%w: status %q", ErrMalformed, out.Status)
	}
	rec := Record{
		ID:      out.Data.ID,
		FEN:     out.Data.FenBefore,
		Blunder: out.Data.BlunderMove,
		Line:    out.Data.ForcedLine,
		Rating:  out.Data.Elo,
	}
	if err := rec.Validate(); err != nil {
		return Record{}, err
	}
	return rec, nil
}

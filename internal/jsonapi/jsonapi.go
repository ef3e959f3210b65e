// Package jsonapi is the fasthttp JSON round trip shared by the outbound clients
// (Iris replies, the puzzle API and Slack).
package jsonapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

const maxErrorBody = 512

// Caller sends JSON requests for one upstream. Service prefixes every error.
type Caller struct {
	Service string
	HTTP    *fasthttp.Client
	Timeout time.Duration
}

// New returns a Caller with its own fasthttp client.
func New(service string, timeout time.Duration, maxConns int) *Caller {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Caller{
		Service: service,
		HTTP:    &fasthttp.Client{ReadTimeout: timeout, WriteTimeout: timeout, MaxConnsPerHost: maxConns},
		Timeout: timeout,
	}
}

// Call describes one request. Body is marshalled when non-nil. Attempts below two
// means a single try.
type Call struct {
	Method   string
	URL      string
	Header   map[string]string
	Body     any
	Attempts int
}

// StatusError is a non-2xx answer from the upstream.
type StatusError struct {
	Service string
	Status  int
	Body    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s api error: status=%d body=%s", e.Service, e.Status, e.Body)
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	return RetryableStatus(e.Status)
}

// Do performs the call and returns the response body of the first 2xx answer.
// Transport errors and retryable statuses are retried with Backoff between attempts.
func (c *Caller) Do(ctx context.Context, call Call) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	method := call.Method
	if method == "" {
		method = fasthttp.MethodPost
	}
	req.Header.SetMethod(method)
	req.SetRequestURI(call.URL)
	req.Header.SetContentType("application/json; charset=utf-8")
	for k, v := range call.Header {
		if strings.TrimSpace(k) != "" && strings.TrimSpace(v) != "" {
			req.Header.Set(k, v)
		}
	}
	if call.Body != nil {
		payload, err := json.Marshal(call.Body)
		if err != nil {
			return nil, fmt.Errorf("%s: marshal request: %w", c.Service, err)
		}
		req.SetBody(payload)
	}

	attempts := max(call.Attempts, 1)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := Sleep(ctx, Backoff(attempt-1)); err != nil {
				return nil, lastErr
			}
		}
		if err := ctx.Err(); err != nil {
			if lastErr != nil {
				return nil, lastErr
			}
			return nil, err
		}
		if err := c.HTTP.DoDeadline(req, resp, Deadline(ctx, c.Timeout)); err != nil {
			lastErr = fmt.Errorf("%s request failed: %w", c.Service, err)
			continue
		}
		status := resp.StatusCode()
		if status < 200 || status >= 300 {
			lastErr = &StatusError{Service: c.Service, Status: status, Body: Truncate(string(resp.Body()), maxErrorBody)}
			if !RetryableStatus(status) {
				return nil, lastErr
			}
			continue
		}
		return append([]byte(nil), resp.Body()...), nil
	}
	if lastErr == nil {
		lastErr = errors.New(c.Service + ": no attempt made")
	}
	return nil, lastErr
}

// DoJSON runs Do and decodes a 2xx body into out when out is non-nil.
func (c *Caller) DoJSON(ctx context.Context, call Call, out any) error {
	body, err := c.Do(ctx, call)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", c.Service, err)
	}
	return nil
}

// Deadline is now+timeout, or the context deadline when that comes first.
func Deadline(ctx context.Context, timeout time.Duration) time.Time {
	own := time.Now().Add(timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(own) {
		return dl
	}
	return own
}

// Backoff doubles from 100ms and caps at 3.2s.
func Backoff(attempt int) time.Duration {
	attempt = min(max(attempt, 1), 6)
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

// Sleep waits for d or until ctx ends.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func RetryableStatus(code int) bool {
	switch code {
	case fasthttp.StatusTooManyRequests,
		fasthttp.StatusInternalServerError,
		fasthttp.StatusBadGateway,
		fasthttp.StatusServiceUnavailable,
		fasthttp.StatusGatewayTimeout:
		return true
	default:
		return false
	}
}

// Truncate cuts s to n bytes and marks the cut.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

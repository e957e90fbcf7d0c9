package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/politicas-backend/internal/platform/logger"
)

// StatusError is a non-2xx reply from an upstream API.
type StatusError struct {
	Service    string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s http %d: %s", e.Service, e.StatusCode, e.Message)
}

func (e *StatusError) HTTPStatusCode() int { return e.StatusCode }

// Client calls a bearer-authenticated JSON API, retrying transient failures
// with doubling, jittered backoff that honors Retry-After.
type Client struct {
	Service    string
	BaseURL    string
	Token      string
	HTTP       *http.Client
	Log        *logger.Logger
	MaxRetries int
	Backoff    time.Duration
	MaxBackoff time.Duration
	// ErrorMessage pulls a readable message out of an error body. Empty falls
	// back to the raw body.
	ErrorMessage func(body []byte) string
}

// Do sends body as JSON when non-nil and decodes a 2xx reply into out when non-nil.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) (http.Header, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("%s: encode %s: %w", c.Service, path, err)
		}
	}

	wait := c.Backoff
	if wait <= 0 {
		wait = time.Second
	}
	for attempt := 0; ; attempt++ {
		resp, raw, err := c.send(ctx, method, path, payload)
		if err == nil {
			if out != nil && len(raw) > 0 {
				if err := json.Unmarshal(raw, out); err != nil {
					return resp.Header, fmt.Errorf("%s: decode %s: %w", c.Service, path, err)
				}
			}
			return resp.Header, nil
		}
		if attempt >= c.MaxRetries || !IsRetryableError(err) {
			return nil, err
		}
		pause := JitterSleep(RetryAfterDuration(resp, wait, c.MaxBackoff))
		if c.Log != nil {
			c.Log.Warn("Upstream request retrying", "service", c.Service, "path", path, "attempt", attempt+1, "sleep", pause.String(), "error", err.Error())
		}
		if err := Sleep(ctx, pause); err != nil {
			return nil, err
		}
		wait *= 2
	}
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte) (*http.Response, []byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp, nil, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, raw, nil
	}
	serr := &StatusError{Service: c.Service, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	if c.ErrorMessage != nil {
		if msg := c.ErrorMessage(raw); msg != "" {
			serr.Message = msg
		}
	}
	return resp, raw, serr
}

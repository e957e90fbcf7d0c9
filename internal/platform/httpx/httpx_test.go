package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

type statusErr int

func (s statusErr) Error() string       { return fmt.Sprintf("status %d", int(s)) }
func (s statusErr) HTTPStatusCode() int { return int(s) }

func TestIsRetryableError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, true},
		{"429", statusErr(429), true},
		{"503", statusErr(503), true},
		{"400", statusErr(400), false},
		{"wrapped 502", fmt.Errorf("call: %w", statusErr(502)), true},
	}
	for _, tc := range cases {
		if got := IsRetryableError(tc.err); got != tc.want {
			t.Fatalf("%s: want=%v got=%v", tc.name, tc.want, got)
		}
	}
}

func TestRetryAfterDurationCapped(t *testing.T) {
	resp := &http.Response{Header: http.Header{"Retry-After": []string{"120"}}}
	if got := RetryAfterDuration(resp, time.Second, 10*time.Second); got != 10*time.Second {
		t.Fatalf("want cap 10s got=%s", got)
	}
	if got := RetryAfterDuration(nil, 2*time.Second, 0); got != 2*time.Second {
		t.Fatalf("want fallback 2s got=%s", got)
	}
}

func TestJitterSleepBounds(t *testing.T) {
	for i := 0; i < 50; i++ {
		got := JitterSleep(time.Second)
		if got < 800*time.Millisecond || got > 1200*time.Millisecond {
			t.Fatalf("jitter out of bounds: %s", got)
		}
	}
}

func TestClientDecodesAndReportsStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch atomic.AddInt32(&calls, 1) {
		case 1:
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusBadGateway)
		case 2:
			_, _ = w.Write([]byte(`{"ok":true}`))
		default:
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"message":"taken"}`))
		}
	}))
	defer srv.Close()

	c := &Client{
		Service:    "test",
		BaseURL:    srv.URL,
		Token:      "tok",
		MaxRetries: 1,
		Backoff:    time.Millisecond,
		ErrorMessage: func(body []byte) string {
			var e struct {
				Message string `json:"message"`
			}
			_ = json.Unmarshal(body, &e)
			return e.Message
		},
	}
	var out struct {
		OK bool `json:"ok"`
	}
	if _, err := c.Do(context.Background(), http.MethodGet, "/x", nil, &out); err != nil || !out.OK {
		t.Fatalf("Do: ok=%v err=%v", out.OK, err)
	}

	_, err := c.Do(context.Background(), http.MethodPost, "/x", map[string]string{"a": "b"}, nil)
	var serr *StatusError
	if !errors.As(err, &serr) || serr.StatusCode != http.StatusConflict || serr.Message != "taken" {
		t.Fatalf("want StatusError 409 got=%v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("calls: want=3 got=%d", got)
	}
}

package sendgrid

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yungbote/politicas-backend/internal/platform/httpx"
	"github.com/yungbote/politicas-backend/internal/platform/logger"
)

func TestSendPostsMailAndRetries(t *testing.T) {
	var calls int32
	var got mailSend
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if r.URL.Path != "/v3/mail/send" {
			t.Errorf("path: got=%s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer key" {
			t.Errorf("auth header: got=%q", r.Header.Get("Authorization"))
		}
		if n == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("X-Message-Id", "msg-1")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c, err := New(logger.Nop(), Config{
		APIKey:           "key",
		BaseURL:          srv.URL,
		DefaultFromEmail: "no-reply@example.cl",
		MaxRetries:       2,
		Timeout:          2 * time.Second,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	res, err := c.Send(context.Background(), SendEmailRequest{
		To:      []EmailAddress{{Email: "ana@example.cl"}},
		Subject: "Hola",
		Text:    "cuerpo",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if res.MessageID != "msg-1" {
		t.Fatalf("message id: got=%q", res.MessageID)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("calls: want=2 got=%d", calls)
	}
	if got.From.Email != "no-reply@example.cl" || got.Subject != "Hola" {
		t.Fatalf("wire body: %+v", got)
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	if _, err := New(logger.Nop(), Config{}); err != ErrNotConfigured {
		t.Fatalf("want ErrNotConfigured got=%v", err)
	}
}

func TestSendDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errors":[{"message":"bad from"}]}`))
	}))
	defer srv.Close()

	c, _ := New(logger.Nop(), Config{APIKey: "key", BaseURL: srv.URL, DefaultFromEmail: "a@b.cl", MaxRetries: 3})
	_, err := c.Send(context.Background(), SendEmailRequest{
		To: []EmailAddress{{Email: "x@y.cl"}}, Subject: "s", HTML: "<p>h</p>",
	})
	var serr *httpx.StatusError
	if !errors.As(err, &serr) || serr.StatusCode != http.StatusBadRequest || serr.Message != "bad from" {
		t.Fatalf("want StatusError 400 got=%v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("calls: want=1 got=%d", calls)
	}
}

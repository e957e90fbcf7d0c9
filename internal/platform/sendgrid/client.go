package sendgrid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/yungbote/politicas-backend/internal/platform/envutil"
	"github.com/yungbote/politicas-backend/internal/platform/httpx"
	"github.com/yungbote/politicas-backend/internal/platform/logger"
)

// Client sends transactional mail through the v3 Mail Send API.
type Client interface {
	Send(ctx context.Context, req SendEmailRequest) (*SendEmailResult, error)
}

type Config struct {
	APIKey           string
	BaseURL          string
	DefaultFromEmail string
	DefaultFromName  string
	Timeout          time.Duration
	MaxRetries       int
}

func ConfigFromEnv() Config {
	return Config{
		APIKey:           envutil.String("SENDGRID_API_KEY", ""),
		BaseURL:          envutil.String("SENDGRID_BASE_URL", defaultBaseURL),
		DefaultFromEmail: envutil.String("SENDGRID_FROM_EMAIL", ""),
		DefaultFromName:  envutil.String("SENDGRID_FROM_NAME", "Políticas de Privacidad"),
		Timeout:          envutil.Seconds("SENDGRID_TIMEOUT_SECONDS", 15*time.Second),
		MaxRetries:       envutil.Int("SENDGRID_MAX_RETRIES", 3),
	}
}

const defaultBaseURL = "https://api.sendgrid.com"

// ErrNotConfigured is returned by New when no API key is available.
var ErrNotConfigured = errors.New("sendgrid: missing SENDGRID_API_KEY")

type EmailAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type SendEmailRequest struct {
	From       EmailAddress
	To         []EmailAddress
	Subject    string
	Text       string
	HTML       string
	Categories []string
}

type SendEmailResult struct {
	MessageID string
}

type client struct {
	api  *httpx.Client
	from EmailAddress
}

func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNotConfigured
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &client{
		api: &httpx.Client{
			Service:      "sendgrid",
			BaseURL:      base,
			Token:        cfg.APIKey,
			HTTP:         &http.Client{Timeout: cfg.Timeout},
			Log:          log.With("client", "SendGridClient"),
			MaxRetries:   max(cfg.MaxRetries, 0),
			Backoff:      time.Second,
			MaxBackoff:   10 * time.Second,
			ErrorMessage: firstErrorMessage,
		},
		from: EmailAddress{Email: cfg.DefaultFromEmail, Name: cfg.DefaultFromName},
	}, nil
}

// mailSend is the /v3/mail/send body.
type mailSend struct {
	Personalizations []struct {
		To []EmailAddress `json:"to"`
	} `json:"personalizations"`
	From       EmailAddress `json:"from"`
	Subject    string       `json:"subject"`
	Content    []content    `json:"content"`
	Categories []string     `json:"categories,omitempty"`
}

type content struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

func (c *client) Send(ctx context.Context, req SendEmailRequest) (*SendEmailResult, error) {
	body, err := c.build(req)
	if err != nil {
		return nil, err
	}
	header, err := c.api.Do(ctx, http.MethodPost, "/v3/mail/send", body, nil)
	if err != nil {
		return nil, err
	}
	return &SendEmailResult{MessageID: strings.TrimSpace(header.Get("X-Message-Id"))}, nil
}

func (c *client) build(req SendEmailRequest) (*mailSend, error) {
	from := req.From
	if strings.TrimSpace(from.Email) == "" {
		from = c.from
	}
	switch {
	case strings.TrimSpace(from.Email) == "":
		return nil, fmt.Errorf("sendgrid: sender required (set SENDGRID_FROM_EMAIL)")
	case len(req.To) == 0:
		return nil, fmt.Errorf("sendgrid: recipient required")
	case strings.TrimSpace(req.Subject) == "":
		return nil, fmt.Errorf("sendgrid: subject required")
	}

	msg := &mailSend{From: from, Subject: strings.TrimSpace(req.Subject), Categories: req.Categories}
	msg.Personalizations = make([]struct {
		To []EmailAddress `json:"to"`
	}, 1)
	msg.Personalizations[0].To = req.To
	// text/plain must precede text/html.
	if t := strings.TrimSpace(req.Text); t != "" {
		msg.Content = append(msg.Content, content{Type: "text/plain", Value: t})
	}
	if h := strings.TrimSpace(req.HTML); h != "" {
		msg.Content = append(msg.Content, content{Type: "text/html", Value: h})
	}
	if len(msg.Content) == 0 {
		return nil, fmt.Errorf("sendgrid: text or html body required")
	}
	return msg, nil
}

func firstErrorMessage(body []byte) string {
	var e struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if json.Unmarshal(body, &e) != nil || len(e.Errors) == 0 {
		return ""
	}
	return e.Errors[0].Message
}

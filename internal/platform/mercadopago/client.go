package mercadopago

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yungbote/politicas-backend/internal/platform/envutil"
	"github.com/yungbote/politicas-backend/internal/platform/httpx"
	"github.com/yungbote/politicas-backend/internal/platform/logger"
)

// Client talks to the Mercado Pago Checkout Pro REST API.
type Client interface {
	CreatePreference(ctx context.Context, req PreferenceRequest) (*Preference, error)
	GetPayment(ctx context.Context, paymentID string) (*Payment, error)
}

type Config struct {
	AccessToken   string
	WebhookSecret string
	BaseURL       string
	Timeout       time.Duration
	MaxRetries    int
}

func ConfigFromEnv() Config {
	return Config{
		AccessToken:   envutil.String("MERCADOPAGO_ACCESS_TOKEN", ""),
		WebhookSecret: envutil.String("MERCADOPAGO_WEBHOOK_SECRET", ""),
		BaseURL:       envutil.String("MERCADOPAGO_BASE_URL", "https://api.mercadopago.com"),
		Timeout:       envutil.Seconds("MERCADOPAGO_TIMEOUT_SECONDS", 20*time.Second),
		MaxRetries:    envutil.Int("MERCADOPAGO_MAX_RETRIES", 2),
	}
}

// Configured reports whether live provider calls are possible.
func (c Config) Configured() bool {
	return strings.TrimSpace(c.AccessToken) != ""
}

var ErrNotConfigured = errors.New("mercadopago: missing MERCADOPAGO_ACCESS_TOKEN")

func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if !cfg.Configured() {
		return nil, ErrNotConfigured
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.mercadopago.com"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	return &client{api: &httpx.Client{
		Service:      "mercadopago",
		BaseURL:      cfg.BaseURL,
		Token:        cfg.AccessToken,
		HTTP:         &http.Client{Timeout: cfg.Timeout},
		Log:          log.With("client", "MercadoPagoClient"),
		MaxRetries:   max(cfg.MaxRetries, 0),
		Backoff:      500 * time.Millisecond,
		MaxBackoff:   5 * time.Second,
		ErrorMessage: apiMessage,
	}}, nil
}

type client struct {
	api *httpx.Client
}

type Item struct {
	ID         string  `json:"id,omitempty"`
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	CurrencyID string  `json:"currency_id"`
	UnitPrice  float64 `json:"unit_price"`
}

type BackURLs struct {
	Success string `json:"success,omitempty"`
	Failure string `json:"failure,omitempty"`
	Pending string `json:"pending,omitempty"`
}

type Payer struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

type PreferenceRequest struct {
	Items             []Item            `json:"items"`
	Payer             *Payer            `json:"payer,omitempty"`
	ExternalReference string            `json:"external_reference"`
	BackURLs          *BackURLs         `json:"back_urls,omitempty"`
	AutoReturn        string            `json:"auto_return,omitempty"`
	NotificationURL   string            `json:"notification_url,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

type Preference struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

type Payment struct {
	ID                int64   `json:"id"`
	Status            string  `json:"status"`
	StatusDetail      string  `json:"status_detail"`
	ExternalReference string  `json:"external_reference"`
	TransactionAmount float64 `json:"transaction_amount"`
	CurrencyID        string  `json:"currency_id"`
}

// Provider payment statuses.
const (
	StatusApproved    = "approved"
	StatusPending     = "pending"
	StatusInProcess   = "in_process"
	StatusAuthorized  = "authorized"
	StatusRejected    = "rejected"
	StatusCancelled   = "cancelled"
	StatusRefunded    = "refunded"
	StatusChargedBack = "charged_back"
	StatusInMediation = "in_mediation"
)

func (c *client) CreatePreference(ctx context.Context, req PreferenceRequest) (*Preference, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("mercadopago: at least one item required")
	}
	if strings.TrimSpace(req.ExternalReference) == "" {
		return nil, fmt.Errorf("mercadopago: external_reference required")
	}
	var out Preference
	if _, err := c.api.Do(ctx, http.MethodPost, "/checkout/preferences", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *client) GetPayment(ctx context.Context, paymentID string) (*Payment, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, fmt.Errorf("mercadopago: payment id required")
	}
	var out Payment
	if _, err := c.api.Do(ctx, http.MethodGet, "/v1/payments/"+url.PathEscape(paymentID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func apiMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &e) != nil {
		return ""
	}
	return e.Message
}

package mercadopago

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yungbote/politicas-backend/internal/platform/logger"
)

func TestCreatePreferenceAndGetPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/checkout/preferences":
			var body PreferenceRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "pay-1", body.ExternalReference)
			require.Len(t, body.Items, 1)
			_, _ = w.Write([]byte(`{"id":"pref-9","init_point":"https://mp/checkout/pref-9"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/v1/payments/123":
			_, _ = w.Write([]byte(`{"id":123,"status":"approved","external_reference":"pay-1"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c, err := New(logger.Nop(), Config{AccessToken: "tok", BaseURL: srv.URL})
	require.NoError(t, err)

	pref, err := c.CreatePreference(context.Background(), PreferenceRequest{
		Items:             []Item{{Title: "Plan", Quantity: 1, CurrencyID: "CLP", UnitPrice: 29990}},
		ExternalReference: "pay-1",
	})
	require.NoError(t, err)
	require.Equal(t, "pref-9", pref.ID)
	require.Equal(t, "https://mp/checkout/pref-9", pref.InitPoint)

	p, err := c.GetPayment(context.Background(), "123")
	require.NoError(t, err)
	require.Equal(t, StatusApproved, p.Status)
	require.Equal(t, "pay-1", p.ExternalReference)
}

func TestNewRequiresAccessToken(t *testing.T) {
	_, err := New(logger.Nop(), Config{})
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestParseNotification(t *testing.T) {
	n, err := ParseNotification([]byte(`{"type":"payment","data":{"id":"555"}}`), "", "")
	require.NoError(t, err)
	require.True(t, n.IsPayment())
	require.Equal(t, "555", n.Data.ID)

	n, err = ParseNotification(nil, "payment", "777")
	require.NoError(t, err)
	require.True(t, n.IsPayment())

	n, err = ParseNotification([]byte(`{"type":"merchant_order","data":{"id":"1"}}`), "", "")
	require.NoError(t, err)
	require.False(t, n.IsPayment())
}

func TestVerifySignature(t *testing.T) {
	secret := "s3cr3t"
	manifest := "id:555;request-id:req-1;ts:1700000000;"
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(manifest))
	sig := hex.EncodeToString(mac.Sum(nil))

	require.NoError(t, VerifySignature(secret, "ts=1700000000,v1="+sig, "req-1", "555"))
	require.ErrorIs(t, VerifySignature(secret, "ts=1700000000,v1=deadbeef", "req-1", "555"), ErrBadSignature)
	require.ErrorIs(t, VerifySignature(secret, "", "req-1", "555"), ErrBadSignature)
}

package mercadopago

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Notification is the webhook body sent for payment events.
type Notification struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Data   struct {
		ID string `json:"id"`
	} `json:"data"`
}

// ParseNotification accepts both the JSON body and the legacy query form (?type=payment&data.id=...).
func ParseNotification(body []byte, queryType, queryDataID string) (Notification, error) {
	var n Notification
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &n); err != nil {
			return n, fmt.Errorf("mercadopago: decode notification: %w", err)
		}
	}
	if n.Type == "" {
		n.Type = strings.TrimSpace(queryType)
	}
	if n.Data.ID == "" {
		n.Data.ID = strings.TrimSpace(queryDataID)
	}
	return n, nil
}

// IsPayment reports whether the notification concerns a payment resource.
func (n Notification) IsPayment() bool {
	return (n.Type == "payment" || strings.HasPrefix(n.Action, "payment.")) && n.Data.ID != ""
}

var ErrBadSignature = errors.New("mercadopago: invalid webhook signature")

// VerifySignature checks the x-signature header ("ts=...,v1=...") against
// the manifest "id:<data.id>;request-id:<x-request-id>;ts:<ts>;".
func VerifySignature(secret, xSignature, xRequestID, dataID string) error {
	var ts, v1 string
	for _, part := range strings.Split(xSignature, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.TrimSpace(kv[0]) {
		case "ts":
			ts = strings.TrimSpace(kv[1])
		case "v1":
			v1 = strings.TrimSpace(kv[1])
		}
	}
	if ts == "" || v1 == "" {
		return ErrBadSignature
	}
	var manifest strings.Builder
	if dataID != "" {
		manifest.WriteString("id:" + strings.ToLower(dataID) + ";")
	}
	if xRequestID != "" {
		manifest.WriteString("request-id:" + xRequestID + ";")
	}
	manifest.WriteString("ts:" + ts + ";")

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(manifest.String()))
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(v1))) {
		return ErrBadSignature
	}
	return nil
}

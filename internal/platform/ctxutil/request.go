package ctxutil

import (
	"context"

	"github.com/google/uuid"
)

type requestDataKey struct{}

// RequestData is attached once per HTTP request and enriched by auth.
type RequestData struct {
	RequestID string
	TraceID   string
	ClientIP  string
	UserAgent string

	TokenString string
	SessionID   uuid.UUID
	UserID      uuid.UUID
	Role        string
}

func WithRequestData(ctx context.Context, rd *RequestData) context.Context {
	return context.WithValue(ctx, requestDataKey{}, rd)
}

func GetRequestData(ctx context.Context) *RequestData {
	if ctx == nil {
		return nil
	}
	rd, _ := ctx.Value(requestDataKey{}).(*RequestData)
	return rd
}

// UserID returns the authenticated user or uuid.Nil.
func UserID(ctx context.Context) uuid.UUID {
	if rd := GetRequestData(ctx); rd != nil {
		return rd.UserID
	}
	return uuid.Nil
}

// Client returns the caller's IP and user agent, empty when unknown.
func Client(ctx context.Context) (ip, userAgent string) {
	if rd := GetRequestData(ctx); rd != nil {
		return rd.ClientIP, rd.UserAgent
	}
	return "", ""
}

// RequestID is empty outside an HTTP request.
func RequestID(ctx context.Context) string {
	if rd := GetRequestData(ctx); rd != nil {
		return rd.RequestID
	}
	return ""
}

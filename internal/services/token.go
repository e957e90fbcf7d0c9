package services

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"

	"github.com/yungbote/politicas-backend/internal/data/repos"
	types "github.com/yungbote/politicas-backend/internal/domain"
	"github.com/yungbote/politicas-backend/internal/platform/dbctx"
	"github.com/yungbote/politicas-backend/internal/platform/logger"
)

const (
	VerificationTokenTTL = 24 * time.Hour
	ResetTokenTTL        = time.Hour

	resetIdentifierPrefix = "reset:"
	tokenBytes            = 32
)

// ErrTokenInvalid covers unknown, expired and already-used tokens alike.
var ErrTokenInvalid = errors.New("token is invalid or has expired")

type TokenService interface {
	IssueVerification(dbc dbctx.Context, email string) (string, error)
	IssuePasswordReset(dbc dbctx.Context, email string) (string, error)
	// Verify consumes raw on any hit and returns the identifier it was issued for.
	Verify(dbc dbctx.Context, raw string) (string, error)
	ConsumeVerification(dbc dbctx.Context, raw string) (string, error)
	ConsumePasswordReset(dbc dbctx.Context, raw string) (string, error)
	CleanupExpired(dbc dbctx.Context) (int64, error)
}

type tokenService struct {
	db    *gorm.DB
	log   *logger.Logger
	repo  repos.VerificationTokenRepo
	clock clockwork.Clock
}

func NewTokenService(db *gorm.DB, log *logger.Logger, repo repos.VerificationTokenRepo, clock clockwork.Clock) TokenService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &tokenService{
		db:    db,
		log:   log.With("service", "TokenService"),
		repo:  repo,
		clock: clock,
	}
}

func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func ResetIdentifier(email string) string {
	return resetIdentifierPrefix + email
}

func (s *tokenService) IssueVerification(dbc dbctx.Context, email string) (string, error) {
	return s.issue(dbc, normalizeEmail(email), VerificationTokenTTL)
}

func (s *tokenService) IssuePasswordReset(dbc dbctx.Context, email string) (string, error) {
	return s.issue(dbc, ResetIdentifier(normalizeEmail(email)), ResetTokenTTL)
}

func (s *tokenService) issue(dbc dbctx.Context, identifier string, ttl time.Duration) (string, error) {
	if identifier == "" || identifier == resetIdentifierPrefix {
		return "", fmt.Errorf("token identifier required")
	}
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	raw := hex.EncodeToString(buf)

	write := func(inner dbctx.Context) error {
		if err := s.repo.DeleteByIdentifiers(inner, []string{identifier}); err != nil {
			return fmt.Errorf("delete previous tokens: %w", err)
		}
		return s.repo.Create(inner, &types.VerificationToken{
			Identifier: identifier,
			TokenHash:  HashToken(raw),
			ExpiresAt:  s.clock.Now().Add(ttl),
		})
	}

	if dbc.Tx != nil {
		if err := write(dbc); err != nil {
			return "", err
		}
		return raw, nil
	}
	if err := s.db.WithContext(dbc.Ctx).Transaction(func(tx *gorm.DB) error {
		return write(dbctx.Context{Ctx: dbc.Ctx, Tx: tx})
	}); err != nil {
		s.log.Warn("Issue token failed", "error", err)
		return "", err
	}
	return raw, nil
}

func (s *tokenService) Verify(dbc dbctx.Context, raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrTokenInvalid
	}
	hash := HashToken(raw)
	found, err := s.repo.GetByHash(dbc, hash)
	if err != nil {
		return "", fmt.Errorf("lookup token: %w", err)
	}
	if found == nil {
		return "", ErrTokenInvalid
	}
	// Single use: the row goes away on every hit. A concurrent verifier that
	// deleted it first wins; this one reports invalid.
	n, err := s.repo.DeleteByHash(dbc, hash)
	if err != nil {
		return "", fmt.Errorf("consume token: %w", err)
	}
	if n == 0 {
		return "", ErrTokenInvalid
	}
	if !s.clock.Now().Before(found.ExpiresAt) {
		return "", ErrTokenInvalid
	}
	return found.Identifier, nil
}

func (s *tokenService) ConsumeVerification(dbc dbctx.Context, raw string) (string, error) {
	id, err := s.Verify(dbc, raw)
	if err != nil {
		return "", err
	}
	if strings.HasPrefix(id, resetIdentifierPrefix) {
		return "", ErrTokenInvalid
	}
	return id, nil
}

func (s *tokenService) ConsumePasswordReset(dbc dbctx.Context, raw string) (string, error) {
	id, err := s.Verify(dbc, raw)
	if err != nil {
		return "", err
	}
	email, ok := strings.CutPrefix(id, resetIdentifierPrefix)
	if !ok || email == "" {
		return "", ErrTokenInvalid
	}
	return email, nil
}

func (s *tokenService) CleanupExpired(dbc dbctx.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(dbc, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("delete expired tokens: %w", err)
	}
	if n > 0 {
		s.log.Info("Expired verification tokens removed", "count", n)
	}
	return n, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"

	"github.com/yungbote/politicas-backend/internal/data/repos"
	types "github.com/yungbote/politicas-backend/internal/domain"
	"github.com/yungbote/politicas-backend/internal/domain/audit"
	"github.com/yungbote/politicas-backend/internal/platform/apierr"
	"github.com/yungbote/politicas-backend/internal/platform/ctxutil"
	"github.com/yungbote/politicas-backend/internal/platform/dbctx"
	"github.com/yungbote/politicas-backend/internal/platform/logger"
)

type RegisterInput struct {
	Email            string
	Password         string
	Name             string
	CompanyName      string
	CompanyRut       string
	Phone            string
	AcceptsMarketing bool
	UTMSource        string
	UTMMedium        string
	UTMCampaign      string
}

// Session is the token pair handed to the client after login or refresh.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	ExpiresIn    int64     `json:"expires_in"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*types.User, error)
	Login(ctx context.Context, email, password string) (*types.User, *Session, error)
	Refresh(ctx context.Context, refreshToken string) (*Session, error)
	Logout(ctx context.Context) error
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)

	SendVerification(ctx context.Context) error
	VerifyEmail(ctx context.Context, token string) error
	// ForgotPassword never reports whether the email exists.
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error

	GetAccessTTL() time.Duration
}

type AuthConfig struct {
	JWTSecretKey string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
}

type authService struct {
	db            *gorm.DB
	log           *logger.Logger
	userRepo      repos.UserRepo
	sessions      repos.SessionRepo
	tokens        TokenService
	mailer        Mailer
	audit         AuditService
	clock         clockwork.Clock
	jwtSecretKey  []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

func NewAuthService(
	db *gorm.DB,
	log *logger.Logger,
	userRepo repos.UserRepo,
	sessions repos.SessionRepo,
	tokens TokenService,
	mailer Mailer,
	auditService AuditService,
	clock clockwork.Clock,
	cfg AuthConfig,
) AuthService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 30 * 24 * time.Hour
	}
	return &authService{
		db:            db,
		log:           log.With("service", "AuthService"),
		userRepo:      userRepo,
		sessions:      sessions,
		tokens:        tokens,
		mailer:        mailer,
		audit:         auditService,
		clock:         clock,
		jwtSecretKey:  []byte(cfg.JWTSecretKey),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
	}
}

func (as *authService) GetAccessTTL() time.Duration { return as.accessTTL }

func errEmailTaken() *apierr.Error {
	return &apierr.Error{
		Status: http.StatusBadRequest,
		Code:   "email_taken",
		Err:    errors.New("email already registered"),
		Fields: map[string]string{"email": "Este correo ya está registrado"},
	}
}

func (as *authService) Register(ctx context.Context, in RegisterInput) (*types.User, error) {
	in.Email = normalizeEmail(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	in.CompanyName = strings.TrimSpace(in.CompanyName)
	in.Phone = strings.TrimSpace(in.Phone)

	fe := fieldErrors{}
	fe.email("email", in.Email)
	fe.password("password", in.Password)
	fe.required("name", in.Name, "El nombre es obligatorio")
	fe.maxLen("name", in.Name, 120)
	fe.maxLen("companyName", in.CompanyName, 200)
	companyRut := fe.rut("companyRut", in.CompanyRut)
	if !fe.empty() {
		return nil, apierr.Validation(fe)
	}

	exists, err := as.userRepo.EmailExists(dbctx.Context{Ctx: ctx}, in.Email)
	if err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return nil, errEmailTaken()
	}

	hashed, err := hashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &types.User{
		ID:               uuid.New(),
		Email:            in.Email,
		Password:         hashed,
		Name:             in.Name,
		CompanyName:      in.CompanyName,
		CompanyRut:       companyRut,
		Phone:            in.Phone,
		AcceptsMarketing: in.AcceptsMarketing,
		UTMSource:        strings.TrimSpace(in.UTMSource),
		UTMMedium:        strings.TrimSpace(in.UTMMedium),
		UTMCampaign:      strings.TrimSpace(in.UTMCampaign),
	}

	err = as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if _, err := as.userRepo.Create(dbc, []*types.User{user}); err != nil {
			return err
		}
		return as.audit.Record(dbc, AuditEntry{
			Actor:        &user.ID,
			Action:       audit.ActionUserRegistered,
			ResourceType: audit.ResourceUser,
			ResourceID:   user.ID.String(),
			Details:      map[string]any{"utm_source": user.UTMSource, "utm_campaign": user.UTMCampaign},
		})
	})
	if errors.Is(err, repos.ErrDuplicateEmail) {
		return nil, errEmailTaken()
	}
	if err != nil {
		as.log.Error("Register user failed", "error", err)
		return nil, fmt.Errorf("create user: %w", err)
	}

	// Registration succeeds even when the verification email cannot be sent.
	if err := as.sendVerification(ctx, user); err != nil {
		as.log.Warn("Verification email after registration failed", "user_id", user.ID, "error", err)
	}
	return user, nil
}

func (as *authService) Login(ctx context.Context, email, password string) (*types.User, *Session, error) {
	email = normalizeEmail(email)
	invalid := apierr.New(http.StatusUnauthorized, "invalid_credentials", errors.New("invalid email or password"))
	if email == "" || password == "" {
		return nil, nil, invalid
	}

	users, err := as.userRepo.GetByEmails(dbctx.Context{Ctx: ctx}, []string{email})
	if err != nil {
		return nil, nil, fmt.Errorf("load user: %w", err)
	}
	if len(users) == 0 || !checkPassword(users[0].Password, password) {
		return nil, nil, invalid
	}
	user := users[0]

	var session *Session
	err = as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		now := as.clock.Now()
		if err := as.userRepo.RecordLogin(dbc, user.ID, now); err != nil {
			return fmt.Errorf("record login: %w", err)
		}
		s, err := as.createSession(dbc, user)
		if err != nil {
			return err
		}
		session = s
		return as.audit.Record(dbc, AuditEntry{
			Actor:        &user.ID,
			Action:       audit.ActionUserLogin,
			ResourceType: audit.ResourceUser,
			ResourceID:   user.ID.String(),
		})
	})
	if err != nil {
		as.log.Error("Login failed", "user_id", user.ID, "error", err)
		return nil, nil, err
	}
	now := as.clock.Now()
	user.LastLoginAt = &now
	user.LoginCount++
	return user, session, nil
}

func (as *authService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, apierr.Unauthorized("refresh token required")
	}
	var (
		session *Session
		expired bool
	)
	err := as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		existing, err := as.sessions.GetByRefreshToken(dbc, refreshToken)
		if err != nil {
			return fmt.Errorf("load refresh token: %w", err)
		}
		if existing == nil {
			return apierr.Unauthorized("invalid refresh token")
		}
		if !as.clock.Now().Before(existing.ExpiresAt) {
			expired = true
			_, err := as.sessions.Delete(dbc, existing.ID)
			return err
		}
		// Rotation claims the old row first; a concurrent refresh loses here.
		n, err := as.sessions.Delete(dbc, existing.ID)
		if err != nil {
			return fmt.Errorf("remove old session: %w", err)
		}
		if n == 0 {
			return apierr.Unauthorized("invalid refresh token")
		}
		users, err := as.userRepo.GetByIDs(dbc, []uuid.UUID{existing.UserID})
		if err != nil {
			return fmt.Errorf("load user for refresh: %w", err)
		}
		if len(users) == 0 {
			return apierr.Unauthorized("invalid refresh token")
		}
		s, err := as.createSession(dbc, users[0])
		if err != nil {
			return err
		}
		session = s
		return nil
	})
	if err != nil {
		return nil, err
	}
	if expired {
		return nil, apierr.Unauthorized("refresh token expired")
	}
	return session, nil
}

func (as *authService) Logout(ctx context.Context) error {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return apierr.Unauthorized("unauthorized")
	}
	if rd.SessionID == uuid.Nil {
		return nil
	}
	if _, err := as.sessions.Delete(dbctx.Context{Ctx: ctx}, rd.SessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

type accessClaims struct {
	SessionID string `json:"sid"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

func (as *authService) createSession(dbc dbctx.Context, user *types.User) (*Session, error) {
	now := as.clock.Now()
	sessionID := uuid.New()
	accessExp := now.Add(as.accessTTL)
	claims := accessClaims{
		SessionID: sessionID.String(),
		Role:      string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(accessExp),
		},
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(as.jwtSecretKey)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refresh := uuid.NewString()
	if err := as.sessions.Create(dbc, &types.UserToken{
		ID:           sessionID,
		UserID:       user.ID,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    now.Add(as.refreshTTL),
	}); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &Session{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    int64(as.accessTTL / time.Second),
		ExpiresAt:    accessExp,
	}, nil
}

func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	claims := &accessClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return as.jwtSecretKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(as.clock.Now))
	if err != nil || !token.Valid {
		return ctx, apierr.Unauthorized("invalid or expired token")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ctx, apierr.Unauthorized("invalid token subject")
	}
	sessionID, err := uuid.Parse(claims.SessionID)
	if err != nil {
		return ctx, apierr.Unauthorized("invalid token session")
	}

	dbc := dbctx.Context{Ctx: ctx}
	session, err := as.sessions.Get(dbc, sessionID)
	if err != nil {
		return ctx, fmt.Errorf("load session: %w", err)
	}
	if session == nil || session.UserID != userID || session.AccessToken != tokenString {
		return ctx, apierr.Unauthorized("session revoked")
	}
	users, err := as.userRepo.GetByIDs(dbc, []uuid.UUID{userID})
	if err != nil {
		return ctx, fmt.Errorf("load user: %w", err)
	}
	if len(users) == 0 {
		return ctx, apierr.Unauthorized("unknown user")
	}

	rd := &ctxutil.RequestData{}
	if existing := ctxutil.GetRequestData(ctx); existing != nil {
		cp := *existing
		rd = &cp
	}
	rd.TokenString = tokenString
	rd.SessionID = sessionID
	rd.UserID = userID
	// Role comes from the row, not the claim, so demotions apply immediately.
	rd.Role = string(users[0].Role)
	return ctxutil.WithRequestData(ctx, rd), nil
}

func (as *authService) SendVerification(ctx context.Context) error {
	user, err := as.currentUser(ctx)
	if err != nil {
		return err
	}
	if user.EmailVerified() {
		return apierr.BadRequest("already_verified", "email already verified")
	}
	if err := as.sendVerification(ctx, user); err != nil {
		return apierr.New(http.StatusInternalServerError, "email_send_failed", err)
	}
	return nil
}

func (as *authService) sendVerification(ctx context.Context, user *types.User) error {
	raw, err := as.tokens.IssueVerification(dbctx.Context{Ctx: ctx}, user.Email)
	if err != nil {
		return err
	}
	return as.mailer.SendVerification(ctx, user.Email, user.Name, raw)
}

func (as *authService) VerifyEmail(ctx context.Context, token string) error {
	// The token is spent even if the rest fails.
	email, err := as.tokens.ConsumeVerification(dbctx.Context{Ctx: ctx}, token)
	if errors.Is(err, ErrTokenInvalid) {
		return apierr.BadRequest("invalid_token", "the verification link is invalid or has expired")
	}
	if err != nil {
		return err
	}
	return as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		users, err := as.userRepo.GetByEmails(dbc, []string{email})
		if err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		if len(users) == 0 {
			return apierr.BadRequest("invalid_token", "the verification link is invalid or has expired")
		}
		user := users[0]
		if user.EmailVerified() {
			return nil
		}
		if err := as.userRepo.UpdateFields(dbc, user.ID, map[string]any{"email_verified_at": as.clock.Now()}); err != nil {
			return fmt.Errorf("mark email verified: %w", err)
		}
		return as.audit.Record(dbc, AuditEntry{
			Actor:        &user.ID,
			Action:       audit.ActionUserEmailVerified,
			ResourceType: audit.ResourceUser,
			ResourceID:   user.ID.String(),
		})
	})
}

func (as *authService) ForgotPassword(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return nil
	}
	users, err := as.userRepo.GetByEmails(dbctx.Context{Ctx: ctx}, []string{email})
	if err != nil {
		as.log.Warn("Forgot password lookup failed", "error", err)
		return nil
	}
	if len(users) == 0 {
		return nil
	}
	raw, err := as.tokens.IssuePasswordReset(dbctx.Context{Ctx: ctx}, email)
	if err != nil {
		as.log.Warn("Issue reset token failed", "user_id", users[0].ID, "error", err)
		return nil
	}
	if err := as.mailer.SendPasswordReset(ctx, users[0].Email, users[0].Name, raw); err != nil {
		as.log.Warn("Password reset email failed", "user_id", users[0].ID, "error", err)
	}
	return nil
}

func (as *authService) ResetPassword(ctx context.Context, token, newPassword string) error {
	fe := fieldErrors{}
	fe.password("password", newPassword)
	if !fe.empty() {
		return apierr.Validation(fe)
	}
	hashed, err := hashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	invalid := apierr.BadRequest("invalid_token", "the reset link is invalid or has expired")
	email, err := as.tokens.ConsumePasswordReset(dbctx.Context{Ctx: ctx}, token)
	if errors.Is(err, ErrTokenInvalid) {
		return invalid
	}
	if err != nil {
		return err
	}
	return as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		users, err := as.userRepo.GetByEmails(dbc, []string{email})
		if err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		if len(users) == 0 {
			return invalid
		}
		user := users[0]
		if err := as.userRepo.UpdateFields(dbc, user.ID, map[string]any{"password": hashed}); err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		if _, err := as.sessions.DeleteForUsers(dbc, []uuid.UUID{user.ID}); err != nil {
			return fmt.Errorf("revoke sessions: %w", err)
		}
		return as.audit.Record(dbc, AuditEntry{
			Actor:        &user.ID,
			Action:       audit.ActionUserPasswordReset,
			ResourceType: audit.ResourceUser,
			ResourceID:   user.ID.String(),
		})
	})
}

func (as *authService) currentUser(ctx context.Context) (*types.User, error) {
	userID := ctxutil.UserID(ctx)
	if userID == uuid.Nil {
		return nil, apierr.Unauthorized("unauthorized")
	}
	users, err := as.userRepo.GetByIDs(dbctx.Context{Ctx: ctx}, []uuid.UUID{userID})
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if len(users) == 0 {
		return nil, apierr.Unauthorized("unauthorized")
	}
	return users[0], nil
}

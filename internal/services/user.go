package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/politicas-backend/internal/data/repos"
	types "github.com/yungbote/politicas-backend/internal/domain"
	"github.com/yungbote/politicas-backend/internal/domain/audit"
	"github.com/yungbote/politicas-backend/internal/platform/apierr"
	"github.com/yungbote/politicas-backend/internal/platform/ctxutil"
	"github.com/yungbote/politicas-backend/internal/platform/dbctx"
	"github.com/yungbote/politicas-backend/internal/platform/logger"
)

// ProfileUpdate carries only the fields the client sent.
type ProfileUpdate struct {
	Name             *string
	CompanyName      *string
	CompanyRut       *string
	Phone            *string
	AcceptsMarketing *bool
}

type UserService interface {
	GetMe(dbc dbctx.Context) (*types.User, error)
	UpdateProfile(ctx context.Context, in ProfileUpdate) (*types.User, error)
	// ChangePassword keeps the calling session and revokes every other one.
	ChangePassword(ctx context.Context, currentPassword, newPassword string) error
	// DeleteAccount removes the caller and everything they own in one transaction.
	DeleteAccount(ctx context.Context, password string) error
}

type AccountRepos struct {
	Users              repos.UserRepo
	Sessions           repos.SessionRepo
	UserIdentities     repos.UserIdentityRepo
	VerificationTokens repos.VerificationTokenRepo
	Policies           repos.PolicyRepo
	PolicyVersions     repos.PolicyVersionRepo
	PolicyDownloads    repos.PolicyDownloadRepo
	Payments           repos.PaymentRepo
	AuditLogs          repos.AuditLogRepo
	WizardAnalytics    repos.WizardAnalyticsRepo
}

type userService struct {
	db    *gorm.DB
	log   *logger.Logger
	repos AccountRepos
	audit AuditService
}

func NewUserService(db *gorm.DB, log *logger.Logger, accountRepos AccountRepos, auditService AuditService) UserService {
	return &userService{
		db:    db,
		log:   log.With("service", "UserService"),
		repos: accountRepos,
		audit: auditService,
	}
}

func (us *userService) GetMe(dbc dbctx.Context) (*types.User, error) {
	rd := ctxutil.GetRequestData(dbc.Ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		us.log.Warn("User id not set in request data")
		return nil, apierr.Unauthorized("unauthorized")
	}
	found, err := us.repos.Users.GetByIDs(dbc, []uuid.UUID{rd.UserID})
	if err != nil {
		return nil, fmt.Errorf("error fetching user: %w", err)
	}
	if len(found) == 0 || found[0] == nil {
		return nil, apierr.Unauthorized("user does not exist")
	}
	return found[0], nil
}

func (us *userService) UpdateProfile(ctx context.Context, in ProfileUpdate) (*types.User, error) {
	userID := ctxutil.UserID(ctx)
	if userID == uuid.Nil {
		return nil, apierr.Unauthorized("unauthorized")
	}

	fe := fieldErrors{}
	fields := map[string]any{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		fe.required("name", name, "El nombre es obligatorio")
		fe.maxLen("name", name, 120)
		fields["name"] = name
	}
	if in.CompanyName != nil {
		company := strings.TrimSpace(*in.CompanyName)
		fe.maxLen("companyName", company, 200)
		fields["company_name"] = company
	}
	if in.CompanyRut != nil {
		fields["company_rut"] = fe.rut("companyRut", *in.CompanyRut)
	}
	if in.Phone != nil {
		phone := strings.TrimSpace(*in.Phone)
		fe.maxLen("phone", phone, 30)
		fields["phone"] = phone
	}
	if in.AcceptsMarketing != nil {
		fields["accepts_marketing"] = *in.AcceptsMarketing
	}
	if !fe.empty() {
		return nil, apierr.Validation(fe)
	}

	var out *types.User
	if err := us.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if len(fields) > 0 {
			if err := us.repos.Users.UpdateFields(dbc, userID, fields); err != nil {
				return fmt.Errorf("update profile: %w", err)
			}
			changed := make([]string, 0, len(fields))
			for k := range fields {
				changed = append(changed, k)
			}
			if err := us.audit.Record(dbc, AuditEntry{
				Actor:        &userID,
				Action:       audit.ActionUserProfileUpdated,
				ResourceType: audit.ResourceUser,
				ResourceID:   userID.String(),
				Details:      map[string]any{"fields": changed},
			}); err != nil {
				return err
			}
		}
		u, err := us.repos.Users.GetByIDs(dbc, []uuid.UUID{userID})
		if err != nil || len(u) == 0 {
			return fmt.Errorf("failed to reload user")
		}
		out = u[0]
		return nil
	}); err != nil {
		return nil, err
	}
	return out, nil
}

func (us *userService) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return apierr.Unauthorized("unauthorized")
	}
	fe := fieldErrors{}
	fe.password("newPassword", newPassword)
	if !fe.empty() {
		return apierr.Validation(fe)
	}
	user, err := us.GetMe(dbctx.Context{Ctx: ctx})
	if err != nil {
		return err
	}
	if !checkPassword(user.Password, currentPassword) {
		return apierr.Validation(map[string]string{"currentPassword": "La contraseña actual no es correcta"})
	}
	hashed, err := hashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	return us.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if err := us.repos.Users.UpdateFields(dbc, user.ID, map[string]any{"password": hashed}); err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		revoked, err := us.repos.Sessions.DeleteForUsers(dbc, []uuid.UUID{user.ID}, rd.SessionID)
		if err != nil {
			return fmt.Errorf("revoke sessions: %w", err)
		}
		return us.audit.Record(dbc, AuditEntry{
			Actor:        &user.ID,
			Action:       audit.ActionUserPasswordChanged,
			ResourceType: audit.ResourceUser,
			ResourceID:   user.ID.String(),
			Details:      map[string]any{"revoked_sessions": revoked},
		})
	})
}

func (us *userService) DeleteAccount(ctx context.Context, password string) error {
	user, err := us.GetMe(dbctx.Context{Ctx: ctx})
	if err != nil {
		return err
	}
	if !checkPassword(user.Password, password) {
		return apierr.Validation(map[string]string{"password": "La contraseña no es correcta"})
	}

	err = us.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return us.deleteAll(dbctx.Context{Ctx: ctx, Tx: tx}, user)
	})
	if err != nil {
		us.log.Error("Account deletion rolled back", "user_id", user.ID, "error", err)
		return apierr.New(http.StatusInternalServerError, "account_delete_failed", errors.New("could not delete account"))
	}
	us.log.Info("Account deleted", "user_id", user.ID)
	return nil
}

func (us *userService) deleteAll(dbc dbctx.Context, user *types.User) error {
	ids := []uuid.UUID{user.ID}
	policies, err := us.repos.Policies.GetByUserIDs(dbc, ids)
	if err != nil {
		return fmt.Errorf("load policies: %w", err)
	}
	policyIDs := make([]uuid.UUID, 0, len(policies))
	for _, p := range policies {
		policyIDs = append(policyIDs, p.ID)
	}

	steps := []struct {
		name string
		run  func() error
	}{
		{"downloads", func() error {
			if err := us.repos.PolicyDownloads.FullDeleteByPolicyIDs(dbc, policyIDs); err != nil {
				return err
			}
			return us.repos.PolicyDownloads.FullDeleteByUserIDs(dbc, ids)
		}},
		{"versions", func() error { return us.repos.PolicyVersions.FullDeleteByPolicyIDs(dbc, policyIDs) }},
		{"policies", func() error { return us.repos.Policies.FullDeleteByUserIDs(dbc, ids) }},
		{"audit logs", func() error { return us.repos.AuditLogs.FullDeleteByUserIDs(dbc, ids) }},
		{"payments", func() error { return us.repos.Payments.FullDeleteByUserIDs(dbc, ids) }},
		{"sessions", func() error {
			_, err := us.repos.Sessions.DeleteForUsers(dbc, ids)
			return err
		}},
		{"identities", func() error { return us.repos.UserIdentities.DeleteForUsers(dbc, ids) }},
		{"verification tokens", func() error {
			return us.repos.VerificationTokens.DeleteByIdentifiers(dbc, []string{user.Email, ResetIdentifier(user.Email)})
		}},
		{"wizard analytics", func() error { return us.repos.WizardAnalytics.DetachUserIDs(dbc, ids) }},
		{"user", func() error { return us.repos.Users.FullDeleteByIDs(dbc, ids) }},
	}
	for _, s := range steps {
		if err := s.run(); err != nil {
			return fmt.Errorf("delete %s: %w", s.name, err)
		}
	}
	return nil
}

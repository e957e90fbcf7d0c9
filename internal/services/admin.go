package services

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yungbote/politicas-backend/internal/data/repos"
	types "github.com/yungbote/politicas-backend/internal/domain"
	"github.com/yungbote/politicas-backend/internal/domain/analytics"
	"github.com/yungbote/politicas-backend/internal/domain/audit"
	domainbilling "github.com/yungbote/politicas-backend/internal/domain/billing"
	"github.com/yungbote/politicas-backend/internal/domain/policy"
	"github.com/yungbote/politicas-backend/internal/domain/user"
	"github.com/yungbote/politicas-backend/internal/modules/wizard"
	"github.com/yungbote/politicas-backend/internal/platform/apierr"
	"github.com/yungbote/politicas-backend/internal/platform/ctxutil"
	"github.com/yungbote/politicas-backend/internal/platform/dbctx"
	"github.com/yungbote/politicas-backend/internal/platform/logger"
)

const (
	csvBatchSize     = 500
	defaultPageSize  = 50
	maxPageSize      = 200
	statsWindow      = 30 * 24 * time.Hour
	defaultFunnelDay = 30
	csvTimeLayout    = "2006-01-02 15:04:05"
)

// UsersCSVHeader is the column order of the admin user export.
var UsersCSVHeader = []string{
	"ID", "Email", "Nombre", "Empresa", "RUT Empresa", "Teléfono", "Plan", "Rol",
	"Fecha Registro", "Último Login", "Cantidad Logins", "Cantidad Políticas",
	"UTM Source", "UTM Medium", "UTM Campaign", "Acepta Marketing",
}

type DashboardStats struct {
	TotalUsers        int64                          `json:"total_users"`
	NewUsers30d       int64                          `json:"new_users_30d"`
	UsersByTier       map[user.Tier]int64            `json:"users_by_tier"`
	TotalPolicies     int64                          `json:"total_policies"`
	PoliciesByStatus  map[policy.Status]int64        `json:"policies_by_status"`
	PaymentsByStatus  map[domainbilling.Status]int64 `json:"payments_by_status"`
	Revenue30d        int64                          `json:"revenue_30d"`
	DownloadsByFormat map[policy.Format]int64        `json:"downloads_by_format_30d"`
	GeneratedAt       time.Time                      `json:"generated_at"`
}

type FunnelStep struct {
	Step           int     `json:"step"`
	Title          string  `json:"title"`
	Started        int64   `json:"started"`
	Completed      int64   `json:"completed"`
	Abandoned      int64   `json:"abandoned"`
	Errors         int64   `json:"errors"`
	AvgTimeSpent   float64 `json:"avg_time_spent_sec"`
	CompletionRate float64 `json:"completion_rate"`
}

type WizardFunnel struct {
	Days     int          `json:"days"`
	Sessions int64        `json:"sessions"`
	Steps    []FunnelStep `json:"steps"`
}

type AdminUser struct {
	*types.User
	PolicyCount int64 `json:"policy_count"`
}

type AdminUserUpdate struct {
	Tier *user.Tier
	Role *user.Role
}

type AdminService interface {
	Stats(ctx context.Context) (*DashboardStats, error)
	WizardFunnel(ctx context.Context, days int) (*WizardFunnel, error)
	ListUsers(ctx context.Context, filter repos.UserListFilter) ([]AdminUser, int64, error)
	// UpdateUser changes tier and/or role. Role changes need CapEditUserRole.
	UpdateUser(ctx context.Context, userID uuid.UUID, in AdminUserUpdate) (*types.User, error)
	ListAuditLogs(ctx context.Context, filter repos.AuditLogFilter) ([]*types.AuditLog, int64, error)
	// ExportUsersCSV streams every user to w in registration order.
	ExportUsersCSV(ctx context.Context, w io.Writer) error
}

type adminService struct {
	db        *gorm.DB
	log       *logger.Logger
	users     repos.UserRepo
	policies  repos.PolicyRepo
	downloads repos.PolicyDownloadRepo
	payments  repos.PaymentRepo
	wizard    repos.WizardAnalyticsRepo
	audit     AuditService
	clock     clockwork.Clock
}

func NewAdminService(
	db *gorm.DB,
	log *logger.Logger,
	users repos.UserRepo,
	policies repos.PolicyRepo,
	downloads repos.PolicyDownloadRepo,
	payments repos.PaymentRepo,
	wizardRepo repos.WizardAnalyticsRepo,
	auditService AuditService,
	clock clockwork.Clock,
) AdminService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &adminService{
		db:        db,
		log:       log.With("service", "AdminService"),
		users:     users,
		policies:  policies,
		downloads: downloads,
		payments:  payments,
		wizard:    wizardRepo,
		audit:     auditService,
		clock:     clock,
	}
}

// callerCan re-checks the capability the route guard already enforced.
func callerCan(ctx context.Context, c user.Capability) (uuid.UUID, error) {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return uuid.Nil, apierr.Unauthorized("unauthorized")
	}
	if !user.Role(rd.Role).Can(c) {
		return uuid.Nil, apierr.Forbidden("forbidden", "insufficient permissions")
	}
	return rd.UserID, nil
}

func sumCounts[K comparable](m map[K]int64) int64 {
	var n int64
	for _, v := range m {
		n += v
	}
	return n
}

func (as *adminService) Stats(ctx context.Context) (*DashboardStats, error) {
	if _, err := callerCan(ctx, user.CapViewAnalytics); err != nil {
		return nil, err
	}
	now := as.clock.Now()
	since := now.Add(-statsWindow)
	out := &DashboardStats{GeneratedAt: now}

	g, gctx := errgroup.WithContext(ctx)
	dbc := dbctx.Context{Ctx: gctx}
	g.Go(func() (err error) {
		out.UsersByTier, err = as.users.CountByTier(dbc)
		return err
	})
	g.Go(func() (err error) {
		out.NewUsers30d, err = as.users.CountCreatedSince(dbc, since)
		return err
	})
	g.Go(func() (err error) {
		out.PoliciesByStatus, err = as.policies.CountByStatus(dbc)
		return err
	})
	g.Go(func() (err error) {
		out.PaymentsByStatus, err = as.payments.CountByStatus(dbc)
		return err
	})
	g.Go(func() (err error) {
		out.Revenue30d, err = as.payments.SumCompletedSince(dbc, since)
		return err
	})
	g.Go(func() (err error) {
		out.DownloadsByFormat, err = as.downloads.CountByFormatSince(dbc, since)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("admin stats: %w", err)
	}
	out.TotalUsers = sumCounts(out.UsersByTier)
	out.TotalPolicies = sumCounts(out.PoliciesByStatus)
	return out, nil
}

func (as *adminService) WizardFunnel(ctx context.Context, days int) (*WizardFunnel, error) {
	if _, err := callerCan(ctx, user.CapViewAnalytics); err != nil {
		return nil, err
	}
	if days <= 0 || days > 365 {
		days = defaultFunnelDay
	}
	since := as.clock.Now().Add(-time.Duration(days) * 24 * time.Hour)

	var (
		cells    []repos.StepActionCount
		sessions int64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		cells, err = as.wizard.CountByStepAction(dbctx.Context{Ctx: gctx}, since)
		return err
	})
	g.Go(func() (err error) {
		sessions, err = as.wizard.CountSessions(dbctx.Context{Ctx: gctx}, since)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("wizard funnel: %w", err)
	}

	steps := make([]FunnelStep, wizard.TotalSteps)
	for i := range steps {
		steps[i].Step = i + 1
		if s, ok := wizard.StepByNumber(i + 1); ok {
			steps[i].Title = s.Title
		}
	}
	var timeWeighted [wizard.TotalSteps]float64
	var timeSamples [wizard.TotalSteps]int64
	for _, c := range cells {
		if c.Step < 1 || c.Step > wizard.TotalSteps {
			continue
		}
		fs := &steps[c.Step-1]
		switch c.Action {
		case analytics.ActionStarted:
			fs.Started += c.Count
		case analytics.ActionCompleted:
			fs.Completed += c.Count
		case analytics.ActionAbandoned:
			fs.Abandoned += c.Count
		case analytics.ActionError:
			fs.Errors += c.Count
		}
		if c.AvgTimeSpent > 0 {
			timeWeighted[c.Step-1] += c.AvgTimeSpent * float64(c.Count)
			timeSamples[c.Step-1] += c.Count
		}
	}
	for i := range steps {
		if timeSamples[i] > 0 {
			steps[i].AvgTimeSpent = math.Round(timeWeighted[i]/float64(timeSamples[i])*10) / 10
		}
		if steps[i].Started > 0 {
			steps[i].CompletionRate = math.Round(float64(steps[i].Completed)/float64(steps[i].Started)*1000) / 10
		}
	}
	return &WizardFunnel{Days: days, Sessions: sessions, Steps: steps}, nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (as *adminService) ListUsers(ctx context.Context, filter repos.UserListFilter) ([]AdminUser, int64, error) {
	if _, err := callerCan(ctx, user.CapViewUsers); err != nil {
		return nil, 0, err
	}
	filter.Limit, filter.Offset = clampPage(filter.Limit, filter.Offset)
	dbc := dbctx.Context{Ctx: ctx}
	list, total, err := as.users.List(dbc, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}
	ids := make([]uuid.UUID, 0, len(list))
	for _, u := range list {
		ids = append(ids, u.ID)
	}
	counts, err := as.policies.CountByUserIDs(dbc, ids)
	if err != nil {
		return nil, 0, fmt.Errorf("count policies: %w", err)
	}
	out := make([]AdminUser, 0, len(list))
	for _, u := range list {
		out = append(out, AdminUser{User: u, PolicyCount: counts[u.ID]})
	}
	return out, total, nil
}

func (as *adminService) UpdateUser(ctx context.Context, userID uuid.UUID, in AdminUserUpdate) (*types.User, error) {
	actor, err := callerCan(ctx, user.CapEditUserTier)
	if err != nil {
		return nil, err
	}
	fe := fieldErrors{}
	fields := map[string]any{}
	if in.Tier != nil {
		if !in.Tier.Valid() {
			fe["subscriptionTier"] = "Plan no válido"
		} else {
			fields["subscription_tier"] = *in.Tier
		}
	}
	if in.Role != nil {
		if _, err := callerCan(ctx, user.CapEditUserRole); err != nil {
			return nil, apierr.Forbidden("forbidden", "only a super admin can change roles")
		}
		switch {
		case !in.Role.Valid():
			fe["role"] = "Rol no válido"
		case userID == actor:
			fe["role"] = "No puedes cambiar tu propio rol"
		default:
			fields["role"] = *in.Role
		}
	}
	if !fe.empty() {
		return nil, apierr.Validation(fe)
	}

	var out *types.User
	err = as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		found, err := as.users.GetByIDs(dbc, []uuid.UUID{userID})
		if err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		if len(found) == 0 {
			return apierr.NotFound("user_not_found", "user not found")
		}
		before := found[0]
		if len(fields) > 0 {
			if err := as.users.UpdateFields(dbc, userID, fields); err != nil {
				return fmt.Errorf("update user: %w", err)
			}
			details := map[string]any{}
			if in.Tier != nil {
				details["tier"] = map[string]any{"from": before.SubscriptionTier, "to": *in.Tier}
			}
			if in.Role != nil {
				details["role"] = map[string]any{"from": before.Role, "to": *in.Role}
			}
			if err := as.audit.Record(dbc, AuditEntry{
				Actor:        &actor,
				Action:       audit.ActionUserAdminUpdated,
				ResourceType: audit.ResourceUser,
				ResourceID:   userID.String(),
				Details:      details,
			}); err != nil {
				return err
			}
		}
		reloaded, err := as.users.GetByIDs(dbc, []uuid.UUID{userID})
		if err != nil || len(reloaded) == 0 {
			return errors.New("failed to reload user")
		}
		out = reloaded[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	as.log.Info("User updated by admin", "target_user_id", userID, "actor_id", actor)
	return out, nil
}

func (as *adminService) ListAuditLogs(ctx context.Context, filter repos.AuditLogFilter) ([]*types.AuditLog, int64, error) {
	if _, err := callerCan(ctx, user.CapViewAuditLogs); err != nil {
		return nil, 0, err
	}
	filter.Limit, filter.Offset = clampPage(filter.Limit, filter.Offset)
	return as.audit.List(dbctx.Context{Ctx: ctx}, filter)
}

func formatCSVTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.UTC().Format(csvTimeLayout)
}

func userCSVRow(u *types.User, policies int64) []string {
	marketing := "No"
	if u.AcceptsMarketing {
		marketing = "Sí"
	}
	created := u.CreatedAt
	return []string{
		u.ID.String(),
		u.Email,
		u.Name,
		u.CompanyName,
		u.CompanyRut,
		u.Phone,
		string(u.SubscriptionTier),
		string(u.Role),
		formatCSVTime(&created),
		formatCSVTime(u.LastLoginAt),
		strconv.Itoa(u.LoginCount),
		strconv.FormatInt(policies, 10),
		u.UTMSource,
		u.UTMMedium,
		u.UTMCampaign,
		marketing,
	}
}

func (as *adminService) ExportUsersCSV(ctx context.Context, w io.Writer) error {
	actor, err := callerCan(ctx, user.CapExportUsers)
	if err != nil {
		return err
	}
	n, err := WriteUsersCSV(ctx, w, as.users, as.policies)
	if err != nil {
		as.log.Error("User export aborted", "rows", n, "error", err)
		return err
	}
	if err := as.audit.Record(dbctx.Context{Ctx: ctx}, AuditEntry{
		Actor:        &actor,
		Action:       audit.ActionUsersExported,
		ResourceType: audit.ResourceUser,
		Details:      map[string]any{"rows": n},
	}); err != nil {
		as.log.Warn("Export audit not recorded", "error", err)
	}
	return nil
}

// WriteUsersCSV pages through users by (created_at, id) and writes one row each.
// It is shared with the operator CLI and returns the number of data rows written.
func WriteUsersCSV(ctx context.Context, w io.Writer, users repos.UserRepo, policies repos.PolicyRepo) (int, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(UsersCSVHeader); err != nil {
		return 0, err
	}
	var (
		n         int
		afterTime time.Time
		afterID   uuid.UUID
	)
	dbc := dbctx.Context{Ctx: ctx}
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		batch, err := users.ListAfter(dbc, afterTime, afterID, csvBatchSize)
		if err != nil {
			return n, fmt.Errorf("list users: %w", err)
		}
		if len(batch) == 0 {
			break
		}
		ids := make([]uuid.UUID, 0, len(batch))
		for _, u := range batch {
			ids = append(ids, u.ID)
		}
		counts, err := policies.CountByUserIDs(dbc, ids)
		if err != nil {
			return n, fmt.Errorf("count policies: %w", err)
		}
		for _, u := range batch {
			if err := cw.Write(userCSVRow(u, counts[u.ID])); err != nil {
				return n, err
			}
			n++
		}
		cw.Flush()
		if err := cw.Error(); err != nil {
			return n, err
		}
		last := batch[len(batch)-1]
		afterTime, afterID = last.CreatedAt, last.ID
		if len(batch) < csvBatchSize {
			break
		}
	}
	cw.Flush()
	return n, cw.Error()
}

// errExportForbidden is returned to handlers that need a status before streaming.
var errExportForbidden = apierr.New(http.StatusForbidden, "forbidden", errors.New("insufficient permissions"))

// CanExportUsers lets the handler fail before it commits CSV headers.
func CanExportUsers(ctx context.Context) error {
	if _, err := callerCan(ctx, user.CapExportUsers); err != nil {
		if ae, ok := apierr.As(err); ok && ae.Status == http.StatusUnauthorized {
			return err
		}
		return errExportForbidden
	}
	return nil
}

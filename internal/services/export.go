package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/yungbote/politicas-backend/internal/data/repos"
	types "github.com/yungbote/politicas-backend/internal/domain"
	"github.com/yungbote/politicas-backend/internal/domain/audit"
	"github.com/yungbote/politicas-backend/internal/domain/policy"
	"github.com/yungbote/politicas-backend/internal/domain/user"
	"github.com/yungbote/politicas-backend/internal/modules/export"
	"github.com/yungbote/politicas-backend/internal/observability"
	"github.com/yungbote/politicas-backend/internal/platform/apierr"
	"github.com/yungbote/politicas-backend/internal/platform/ctxutil"
	"github.com/yungbote/politicas-backend/internal/platform/dbctx"
	"github.com/yungbote/politicas-backend/internal/platform/gcp"
	"github.com/yungbote/politicas-backend/internal/platform/logger"
)

// Artifact is a rendered export ready to be written to the response.
type Artifact struct {
	Filename    string
	ContentType string
	Data        []byte
	Watermarked bool
}

type ExportService interface {
	// Generate renders a complete policy and records the download.
	Generate(ctx context.Context, policyID uuid.UUID, format policy.Format) (*Artifact, error)
	ListDownloads(ctx context.Context, policyID uuid.UUID) ([]*types.PolicyDownload, error)
	// SharedHTML and SharedPreview serve public links; both are always watermarked.
	SharedHTML(ctx context.Context, token string) (*Artifact, error)
	SharedPreview(ctx context.Context, token string) (*Artifact, error)
}

type exportService struct {
	db         *gorm.DB
	log        *logger.Logger
	userRepo   repos.UserRepo
	policyRepo repos.PolicyRepo
	downloads  repos.PolicyDownloadRepo
	policies   PolicyService
	audit      AuditService
	registry   *export.Registry
	archive    gcp.ArchiveStore
	clock      clockwork.Clock
}

// NewExportService wires the exporter. archive may be nil, in which case
// artifacts are not kept.
func NewExportService(
	db *gorm.DB,
	log *logger.Logger,
	userRepo repos.UserRepo,
	policyRepo repos.PolicyRepo,
	downloads repos.PolicyDownloadRepo,
	policies PolicyService,
	auditService AuditService,
	archive gcp.ArchiveStore,
	clock clockwork.Clock,
) ExportService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &exportService{
		db:         db,
		log:        log.With("service", "ExportService"),
		userRepo:   userRepo,
		policyRepo: policyRepo,
		downloads:  downloads,
		policies:   policies,
		audit:      auditService,
		registry:   export.DefaultRegistry(),
		archive:    archive,
		clock:      clock,
	}
}

func (es *exportService) Generate(ctx context.Context, policyID uuid.UUID, format policy.Format) (*Artifact, error) {
	userID, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	if !format.Valid() {
		return nil, apierr.BadRequest("invalid_format", "format must be PDF, DOCX or HTML")
	}
	start := es.clock.Now()

	dbc := dbctx.Context{Ctx: ctx}
	users, err := es.userRepo.GetByIDs(dbc, []uuid.UUID{userID})
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if len(users) == 0 {
		return nil, apierr.Unauthorized("user does not exist")
	}
	tier := users[0].SubscriptionTier

	p, err := loadOwned(dbc, es.policyRepo, policyID, userID)
	if err != nil {
		return nil, err
	}
	if !p.Complete() {
		observability.Current().ObserveExport(string(format), false, "incomplete", 0)
		return nil, apierr.BadRequest("policy_incomplete", "policy must be complete before exporting")
	}
	watermark := tier == user.TierFree
	if format == policy.FormatDOCX && watermark {
		observability.Current().ObserveExport(string(format), true, "forbidden", 0)
		return nil, apierr.Forbidden("feature_not_available", "DOCX export requires a paid plan")
	}

	art, err := es.render(ctx, p, format, watermark)
	if err != nil {
		observability.Current().ObserveExport(string(format), watermark, "error", 0)
		return nil, err
	}

	ip, ua := ctxutil.Client(ctx)
	dl := &types.PolicyDownload{
		ID:          uuid.New(),
		PolicyID:    p.ID,
		UserID:      userID,
		Format:      format,
		Watermarked: watermark,
		IPAddress:   ip,
		UserAgent:   ua,
	}
	dl.ArchiveKey = es.archiveArtifact(ctx, dl, art)

	err = es.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txc := dbctx.Context{Ctx: ctx, Tx: tx}
		if err := es.downloads.Create(txc, dl); err != nil {
			return fmt.Errorf("record download: %w", err)
		}
		return es.audit.Record(txc, policyAudit(userID, audit.ActionPolicyExported, p.ID, map[string]any{
			"format":      string(format),
			"watermarked": watermark,
		}))
	})
	if err != nil {
		observability.Current().ObserveExport(string(format), watermark, "error", 0)
		return nil, err
	}
	observability.Current().ObserveExport(string(format), watermark, "ok", es.clock.Since(start))
	return art, nil
}

func (es *exportService) render(ctx context.Context, p *types.Policy, format policy.Format, watermark bool) (*Artifact, error) {
	_, span := observability.Tracer("export").Start(ctx, "export.render")
	defer span.End()
	span.SetAttributes(
		attribute.String("policy.id", p.ID.String()),
		attribute.String("export.format", string(format)),
		attribute.Bool("export.watermarked", watermark),
	)

	r, err := es.registry.Get(format)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("renderer: %w", err)
	}
	doc := export.BuildDocument(p.Name, p.Payloads(), es.clock.Now())
	data, err := r.Render(doc, export.Options{Watermark: watermark})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		es.log.Error("Render failed", "policy_id", p.ID, "format", format, "error", err)
		return nil, fmt.Errorf("render %s: %w", strings.ToLower(string(format)), err)
	}
	span.SetAttributes(attribute.Int("export.bytes", len(data)))
	return &Artifact{
		Filename:    export.Filename(p.Name, r.Extension()),
		ContentType: r.ContentType(),
		Data:        data,
		Watermarked: watermark,
	}, nil
}

// archiveArtifact returns the object key, or "" when archiving is off or failed.
func (es *exportService) archiveArtifact(ctx context.Context, dl *types.PolicyDownload, art *Artifact) string {
	if es.archive == nil {
		return ""
	}
	key := fmt.Sprintf("exports/%s/%s/%s-%s",
		dl.UserID, dl.PolicyID, es.clock.Now().UTC().Format("20060102T150405Z"), art.Filename)
	putCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()
	if err := es.archive.Put(putCtx, key, art.ContentType, art.Data); err != nil {
		es.log.Warn("Export archive failed", "policy_id", dl.PolicyID, "key", key, "error", err)
		return ""
	}
	return key
}

func (es *exportService) ListDownloads(ctx context.Context, policyID uuid.UUID) ([]*types.PolicyDownload, error) {
	userID, err := requireCaller(ctx)
	if err != nil {
		return nil, err
	}
	dbc := dbctx.Context{Ctx: ctx}
	if _, err := loadOwned(dbc, es.policyRepo, policyID, userID); err != nil {
		return nil, err
	}
	out, err := es.downloads.ListByPolicyID(dbc, policyID)
	if err != nil {
		return nil, fmt.Errorf("list downloads: %w", err)
	}
	if out == nil {
		out = []*types.PolicyDownload{}
	}
	return out, nil
}

func (es *exportService) SharedHTML(ctx context.Context, token string) (*Artifact, error) {
	p, err := es.policies.GetShared(ctx, token)
	if err != nil {
		return nil, err
	}
	return es.render(ctx, p, policy.FormatHTML, true)
}

func (es *exportService) SharedPreview(ctx context.Context, token string) (*Artifact, error) {
	p, err := es.policies.GetShared(ctx, token)
	if err != nil {
		return nil, err
	}
	doc := export.BuildDocument(p.Name, p.Payloads(), es.clock.Now())
	data, err := export.RenderPreviewPNG(export.PreviewCard{
		Title:         doc.Title,
		Company:       doc.Company,
		CompletionPct: p.CompletionPct,
		Watermark:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("render preview: %w", err)
	}
	return &Artifact{
		Filename:    export.Filename(p.Name, "png"),
		ContentType: "image/png",
		Data:        data,
		Watermarked: true,
	}, nil
}

package services

import (
	"bytes"
	"net/http"
	"strings"
	"testing"

	"github.com/yungbote/politicas-backend/internal/domain/audit"
	"github.com/yungbote/politicas-backend/internal/domain/policy"
	"github.com/yungbote/politicas-backend/internal/domain/user"
	"github.com/yungbote/politicas-backend/internal/modules/export"
)

func TestExportRequiresCompletePolicy(t *testing.T) {
	env := newTestEnv(t)
	_, ctx := env.seedUser(t, user.TierProfessional, user.RoleUser)
	p, err := env.policy.Create(ctx, "A medias")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := env.policy.SaveStep(ctx, p.ID, 1, stepPayload(1)); err != nil {
		t.Fatalf("SaveStep: %v", err)
	}
	_, err = env.export.Generate(ctx, p.ID, policy.FormatPDF)
	requireAPIError(t, err, http.StatusBadRequest, "policy_incomplete")
}

func TestExportFreeTierIsWatermarkedAndGated(t *testing.T) {
	env := newTestEnv(t)
	u, ctx := env.seedUser(t, user.TierFree, user.RoleUser)
	p := completePolicy(t, env, u)

	_, err := env.export.Generate(ctx, p.ID, policy.FormatDOCX)
	requireAPIError(t, err, http.StatusForbidden, "feature_not_available")

	art, err := env.export.Generate(ctx, p.ID, policy.FormatHTML)
	if err != nil {
		t.Fatalf("Generate html: %v", err)
	}
	if !art.Watermarked || !strings.Contains(string(art.Data), export.WatermarkText) {
		t.Fatalf("free html export must carry the watermark")
	}
	if art.Filename != "politica-acme.html" {
		t.Fatalf("filename=%q", art.Filename)
	}

	pdf, err := env.export.Generate(ctx, p.ID, policy.FormatPDF)
	if err != nil {
		t.Fatalf("Generate pdf: %v", err)
	}
	if !bytes.HasPrefix(pdf.Data, []byte("%PDF")) || pdf.ContentType != "application/pdf" {
		t.Fatalf("not a pdf: %q", pdf.Data[:8])
	}

	downloads, err := env.export.ListDownloads(ctx, p.ID)
	if err != nil {
		t.Fatalf("ListDownloads: %v", err)
	}
	if len(downloads) != 2 {
		t.Fatalf("downloads=%d want 2", len(downloads))
	}
	for _, d := range downloads {
		if !d.Watermarked || d.IPAddress != "203.0.113.7" || d.UserAgent != "go-test" {
			t.Fatalf("download row=%+v", d)
		}
	}
	if !hasString(env.auditActions(t, u.ID), audit.ActionPolicyExported) {
		t.Fatalf("missing export audit")
	}
}

func TestExportPaidTierHasNoWatermark(t *testing.T) {
	env := newTestEnv(t)
	u, ctx := env.seedUser(t, user.TierProfessional, user.RoleUser)
	p := completePolicy(t, env, u)

	docx, err := env.export.Generate(ctx, p.ID, policy.FormatDOCX)
	if err != nil {
		t.Fatalf("Generate docx: %v", err)
	}
	if docx.Watermarked || !bytes.HasPrefix(docx.Data, []byte("PK")) || docx.Filename != "politica-acme.docx" {
		t.Fatalf("docx watermarked=%v filename=%q", docx.Watermarked, docx.Filename)
	}
	html, err := env.export.Generate(ctx, p.ID, policy.FormatHTML)
	if err != nil {
		t.Fatalf("Generate html: %v", err)
	}
	if strings.Contains(string(html.Data), export.WatermarkText) {
		t.Fatalf("paid html must not carry the watermark")
	}
}

func TestSharedHTMLIsAlwaysWatermarked(t *testing.T) {
	env := newTestEnv(t)
	u, ctx := env.seedUser(t, user.TierEnterprise, user.RoleUser)
	p := completePolicy(t, env, u)
	shared, err := env.policy.Share(ctx, p.ID)
	if err != nil {
		t.Fatalf("Share: %v", err)
	}

	art, err := env.export.SharedHTML(ctx, *shared.ShareToken)
	if err != nil {
		t.Fatalf("SharedHTML: %v", err)
	}
	if !strings.Contains(string(art.Data), export.WatermarkText) {
		t.Fatalf("shared view must carry the watermark")
	}
	downloads, err := env.export.ListDownloads(ctx, p.ID)
	if err != nil {
		t.Fatalf("ListDownloads: %v", err)
	}
	if len(downloads) != 0 {
		t.Fatalf("public views are not downloads, got %d", len(downloads))
	}

	_, err = env.export.SharedHTML(ctx, "no-existe")
	requireAPIError(t, err, http.StatusNotFound, "policy_not_found")
}

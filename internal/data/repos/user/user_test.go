package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/politicas-backend/internal/data/repos/testutil"
	types "github.com/yungbote/politicas-backend/internal/domain"
	"github.com/yungbote/politicas-backend/internal/domain/user"
	"github.com/yungbote/politicas-backend/internal/platform/dbctx"
)

func TestUserRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewUserRepo(db, testutil.Logger(t))

	u := &types.User{
		ID:       uuid.New(),
		Email:    "  Ana@Example.CL ",
		Password: "pw",
		Name:     "Ana",
	}
	if _, err := repo.Create(dbc, []*types.User{u}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if u.Email != "ana@example.cl" {
		t.Fatalf("email not normalized: %q", u.Email)
	}
	if u.SubscriptionTier != user.TierFree || u.Role != user.RoleUser {
		t.Fatalf("defaults not applied: tier=%s role=%s", u.SubscriptionTier, u.Role)
	}

	dup := &types.User{Email: "ANA@example.cl", Password: "pw", Name: "Otra"}
	if _, err := repo.Create(dbc, []*types.User{dup}); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("duplicate Create: want ErrDuplicateEmail, got %v", err)
	}
}

func TestUserRepoQueries(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Of(ctx)
	repo := NewUserRepo(db, testutil.Logger(t))

	a := testutil.SeedUser(t, ctx, db, user.TierFree)
	b := testutil.SeedUser(t, ctx, db, user.TierProfessional)
	c := testutil.SeedUser(t, ctx, db, user.TierProfessional)

	if rows, err := repo.GetByIDs(dbc, []uuid.UUID{a.ID, b.ID}); err != nil || len(rows) != 2 {
		t.Fatalf("GetByIDs: err=%v len=%d", err, len(rows))
	}
	if rows, err := repo.GetByEmails(dbc, []string{" " + c.Email}); err != nil || len(rows) != 1 {
		t.Fatalf("GetByEmails: err=%v len=%d", err, len(rows))
	}
	if ok, err := repo.EmailExists(dbc, a.Email); err != nil || !ok {
		t.Fatalf("EmailExists: ok=%v err=%v", ok, err)
	}
	if ok, err := repo.EmailExists(dbc, "nadie@example.cl"); err != nil || ok {
		t.Fatalf("EmailExists(missing): ok=%v err=%v", ok, err)
	}

	now := time.Now().UTC().Truncate(time.Second)
	if err := repo.RecordLogin(dbc, a.ID, now); err != nil {
		t.Fatalf("RecordLogin: %v", err)
	}
	if err := repo.RecordLogin(dbc, a.ID, now); err != nil {
		t.Fatalf("RecordLogin: %v", err)
	}
	rows, _ := repo.GetByIDs(dbc, []uuid.UUID{a.ID})
	if rows[0].LoginCount != 2 || rows[0].LastLoginAt == nil {
		t.Fatalf("RecordLogin: count=%d last=%v", rows[0].LoginCount, rows[0].LastLoginAt)
	}

	if err := repo.UpdateFields(dbc, a.ID, map[string]any{"company_name": "Acme SpA"}); err != nil {
		t.Fatalf("UpdateFields: %v", err)
	}
	list, total, err := repo.List(dbc, ListFilter{Query: "acme"})
	if err != nil || total != 1 || len(list) != 1 || list[0].ID != a.ID {
		t.Fatalf("List(query): err=%v total=%d len=%d", err, total, len(list))
	}
	_, total, err = repo.List(dbc, ListFilter{Tier: user.TierProfessional})
	if err != nil || total != 2 {
		t.Fatalf("List(tier): err=%v total=%d", err, total)
	}

	counts, err := repo.CountByTier(dbc)
	if err != nil {
		t.Fatalf("CountByTier: %v", err)
	}
	if counts[user.TierFree] != 1 || counts[user.TierProfessional] != 2 || counts[user.TierEnterprise] != 0 {
		t.Fatalf("CountByTier: %v", counts)
	}

	var seen []uuid.UUID
	var cursorAt time.Time
	cursorID := uuid.Nil
	for {
		page, err := repo.ListAfter(dbc, cursorAt, cursorID, 2)
		if err != nil {
			t.Fatalf("ListAfter: %v", err)
		}
		if len(page) == 0 {
			break
		}
		for _, u := range page {
			seen = append(seen, u.ID)
		}
		last := page[len(page)-1]
		cursorAt, cursorID = last.CreatedAt, last.ID
	}
	if len(seen) != 3 {
		t.Fatalf("ListAfter visited %d users, want 3", len(seen))
	}

	if err := repo.FullDeleteByIDs(dbc, []uuid.UUID{c.ID}); err != nil {
		t.Fatalf("FullDeleteByIDs: %v", err)
	}
	if rows, err := repo.GetByIDs(dbc, []uuid.UUID{c.ID}); err != nil || len(rows) != 0 {
		t.Fatalf("after delete: err=%v len=%d", err, len(rows))
	}
}

package auth

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/politicas-backend/internal/data/repos/testutil"
	types "github.com/yungbote/politicas-backend/internal/domain"
	"github.com/yungbote/politicas-backend/internal/domain/user"
	"github.com/yungbote/politicas-backend/internal/platform/dbctx"
)

func TestSessionRepo(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	repo := NewSessionRepo(db, testutil.Logger(t))

	u := testutil.SeedUser(t, ctx, tx, user.TierFree)
	session := func(refresh string, ttl time.Duration) *types.UserToken {
		s := &types.UserToken{
			ID:           uuid.New(),
			UserID:       u.ID,
			AccessToken:  "access-" + refresh,
			RefreshToken: refresh,
			ExpiresAt:    time.Now().Add(ttl),
		}
		if err := repo.Create(dbc, s); err != nil {
			t.Fatalf("Create(%s): %v", refresh, err)
		}
		return s
	}

	current := session("r-1", time.Hour)
	if got, err := repo.Get(dbc, current.ID); err != nil || got == nil || got.AccessToken != "access-r-1" {
		t.Fatalf("Get: got=%v err=%v", got, err)
	}
	if got, err := repo.GetByRefreshToken(dbc, "r-1"); err != nil || got == nil || got.ID != current.ID {
		t.Fatalf("GetByRefreshToken: got=%v err=%v", got, err)
	}
	if got, err := repo.GetByRefreshToken(dbc, ""); err != nil || got != nil {
		t.Fatalf("GetByRefreshToken(empty): got=%v err=%v", got, err)
	}

	if n, err := repo.Delete(dbc, current.ID); err != nil || n != 1 {
		t.Fatalf("Delete: n=%d err=%v", n, err)
	}
	if n, err := repo.Delete(dbc, current.ID); err != nil || n != 0 {
		t.Fatalf("second Delete: n=%d err=%v", n, err)
	}
	if got, err := repo.Get(dbc, current.ID); err != nil || got != nil {
		t.Fatalf("Get after Delete: got=%v err=%v", got, err)
	}

	session("r-expired", -time.Hour)
	kept := session("r-kept", time.Hour)
	other := session("r-other", time.Hour)
	if n, err := repo.DeleteExpired(dbc, time.Now()); err != nil || n != 1 {
		t.Fatalf("DeleteExpired: n=%d err=%v", n, err)
	}

	if n, err := repo.DeleteForUsers(dbc, []uuid.UUID{u.ID}, kept.ID); err != nil || n != 1 {
		t.Fatalf("DeleteForUsers(keep): n=%d err=%v", n, err)
	}
	if got, _ := repo.Get(dbc, other.ID); got != nil {
		t.Fatalf("other session survived")
	}
	if got, _ := repo.Get(dbc, kept.ID); got == nil {
		t.Fatalf("kept session revoked")
	}
	if n, err := repo.DeleteForUsers(dbc, []uuid.UUID{u.ID}); err != nil || n != 1 {
		t.Fatalf("DeleteForUsers: n=%d err=%v", n, err)
	}
	if got, _ := repo.Get(dbc, kept.ID); got != nil {
		t.Fatalf("session survived full revoke")
	}
}

func TestVerificationTokenRepo(t *testing.T) {
	db := testutil.DB(t)
	ctx := context.Background()
	dbc := dbctx.Of(ctx)
	repo := NewVerificationTokenRepo(db, testutil.Logger(t))

	tok := &types.VerificationToken{
		Identifier: "ana@example.cl",
		TokenHash:  "hash-1",
		ExpiresAt:  time.Now().Add(time.Hour),
	}
	if err := repo.Create(dbc, tok); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, err := repo.GetByHash(dbc, "hash-1")
	if err != nil || got == nil || got.Identifier != tok.Identifier {
		t.Fatalf("GetByHash: got=%v err=%v", got, err)
	}
	if got, err := repo.GetByHash(dbc, "missing"); err != nil || got != nil {
		t.Fatalf("GetByHash(missing): got=%v err=%v", got, err)
	}

	if n, err := repo.DeleteByHash(dbc, "hash-1"); err != nil || n != 1 {
		t.Fatalf("DeleteByHash: n=%d err=%v", n, err)
	}
	if n, err := repo.DeleteByHash(dbc, "hash-1"); err != nil || n != 0 {
		t.Fatalf("second DeleteByHash: n=%d err=%v", n, err)
	}

	for i, id := range []string{"a@example.cl", "reset:a@example.cl"} {
		row := &types.VerificationToken{Identifier: id, TokenHash: uuid.NewString(), ExpiresAt: time.Now().Add(time.Duration(2*i-1) * time.Hour)}
		if err := repo.Create(dbc, row); err != nil {
			t.Fatalf("seed %s: %v", id, err)
		}
	}
	if n, err := repo.DeleteExpired(dbc, time.Now()); err != nil || n != 1 {
		t.Fatalf("DeleteExpired: n=%d err=%v", n, err)
	}
	if err := repo.DeleteByIdentifiers(dbc, []string{"reset:a@example.cl"}); err != nil {
		t.Fatalf("DeleteByIdentifiers: %v", err)
	}
	var left int64
	db.Model(&types.VerificationToken{}).Count(&left)
	if left != 0 {
		t.Fatalf("tokens left=%d want 0", left)
	}
}

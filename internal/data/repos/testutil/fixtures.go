package testutil

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/politicas-backend/internal/domain"
	"github.com/yungbote/politicas-backend/internal/domain/user"
)

func SeedUser(tb testing.TB, ctx context.Context, tx *gorm.DB, tier user.Tier) *types.User {
	tb.Helper()
	u := &types.User{
		ID:               uuid.New(),
		Email:            fmt.Sprintf("user-%s@example.cl", uuid.NewString()[:8]),
		Password:         "x",
		Name:             "Usuaria Prueba",
		SubscriptionTier: tier,
	}
	if err := tx.WithContext(ctx).Create(u).Error; err != nil {
		tb.Fatalf("seed user: %v", err)
	}
	return u
}

func SeedPolicy(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, name string) *types.Policy {
	tb.Helper()
	p := &types.Policy{
		ID:     uuid.New(),
		UserID: userID,
		Name:   name,
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed policy: %v", err)
	}
	return p
}

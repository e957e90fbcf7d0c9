package notifications

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/politicas-backend/internal/domain/user"
)

var epoch = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func TestStaleIncompletePolicyYieldsOneWarning(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	u := UserSummary{ID: uuid.New(), Tier: user.TierProfessional, CreatedAt: epoch.Add(-60 * day)}
	p := PolicySummary{ID: uuid.New(), Name: "Tienda", CompletionPct: 40, UpdatedAt: clock.Now().Add(-10 * day)}

	got := Generate(clock.Now(), u, []PolicySummary{p})
	require.Len(t, got, 1)
	require.Equal(t, KindWarning, got[0].Type)
	require.NotNil(t, got[0].PolicyID)
	require.Equal(t, p.ID, *got[0].PolicyID)
}

func TestReminderWindow(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	u := UserSummary{ID: uuid.New(), Tier: user.TierEnterprise, CreatedAt: epoch.Add(-60 * day)}
	p := PolicySummary{ID: uuid.New(), Name: "Blog", CompletionPct: 25, UpdatedAt: clock.Now().Add(-5 * day)}
	fresh := PolicySummary{ID: uuid.New(), Name: "Nueva", CompletionPct: 8, UpdatedAt: clock.Now().Add(-2 * day)}

	got := Generate(clock.Now(), u, []PolicySummary{p, fresh})
	require.Len(t, got, 1)
	require.Equal(t, KindInfo, got[0].Type)

	clock.Advance(3 * day)
	got = Generate(clock.Now(), u, []PolicySummary{p, fresh})
	require.Len(t, got, 2)
	require.Equal(t, KindInfo, got[0].Type, "fresh policy reminder is newer")
	require.Equal(t, KindWarning, got[1].Type)
}

func TestNewUserWithoutPoliciesGetsOnlyWelcome(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	u := UserSummary{ID: uuid.New(), Tier: user.TierFree, CreatedAt: clock.Now().Add(-2 * time.Hour)}

	got := Generate(clock.Now(), u, nil)
	require.Len(t, got, 1)
	require.Equal(t, "welcome", got[0].ID)
	require.Equal(t, KindInfo, got[0].Type)

	clock.Advance(2 * day)
	require.Empty(t, Generate(clock.Now(), u, nil))
}

func TestCompletedWithoutDownloadsAndUpgrade(t *testing.T) {
	now := epoch
	u := UserSummary{ID: uuid.New(), Tier: user.TierFree, CreatedAt: now.Add(-30 * day)}
	done := PolicySummary{ID: uuid.New(), Name: "Lista", CompletionPct: 100, UpdatedAt: now.Add(-2 * day)}
	downloaded := PolicySummary{ID: uuid.New(), Name: "Bajada", CompletionPct: 100, UpdatedAt: now.Add(-2 * day), Downloads: 3}
	recent := PolicySummary{ID: uuid.New(), Name: "Recién", CompletionPct: 100, UpdatedAt: now.Add(-time.Hour)}

	got := Generate(now, u, []PolicySummary{done, downloaded, recent})
	require.Len(t, got, 2)
	require.Equal(t, KindSuccess, got[0].Type)
	require.Equal(t, "upgrade", got[1].ID)
	require.Equal(t, u.CreatedAt, got[1].Timestamp)
}

func TestTruncatesToTenNewestFirst(t *testing.T) {
	now := epoch
	u := UserSummary{ID: uuid.New(), Tier: user.TierProfessional, CreatedAt: now.Add(-400 * day)}
	var ps []PolicySummary
	for i := 0; i < 15; i++ {
		ps = append(ps, PolicySummary{ID: uuid.New(), Name: "p", CompletionPct: 50, UpdatedAt: now.Add(-time.Duration(8+i) * day)})
	}
	got := Generate(now, u, ps)
	require.Len(t, got, MaxNotifications)
	for i := 1; i < len(got); i++ {
		require.False(t, got[i].Timestamp.After(got[i-1].Timestamp), "not sorted newest first at %d", i)
	}
	require.Equal(t, ps[0].ID, *got[0].PolicyID)
}

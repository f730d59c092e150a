package engagement

import (
	"context"
	"testing"

	"github.com/alisharafiiii/kol-discord-sub002/internal/models"
)

func newTestEngine(t *testing.T, accounts *fakeAccounts) (*AwardEngine, *fakeAwards, *fakeKV) {
	t.Helper()
	cache := NewRuleCache(fakeRules{})
	if err := cache.Reload(context.Background()); err != nil {
		t.Fatalf("reload rules: %v", err)
	}
	awards := newFakeAwards(accounts)
	kv := newFakeKV()
	return NewAwardEngine(awards, cache, kv, testLogger()), awards, kv
}

func TestPoints_TierMultiplierRounding(t *testing.T) {
	engine, _, _ := newTestEngine(t, newFakeAccounts())

	tests := []struct {
		tier        models.Tier
		interaction models.Interaction
		want        int
	}{
		{models.TierMicro, models.InteractionLike, 10},
		{models.TierMicro, models.InteractionRetweet, 35},
		{models.TierMicro, models.InteractionComment, 50},
		{models.TierStar, models.InteractionLike, 15},    // 10 * 1.5
		{models.TierStar, models.InteractionRetweet, 53}, // 35 * 1.5 = 52.5, rounds up
		{models.TierStar, models.InteractionComment, 75}, // 50 * 1.5
		{models.TierRising, models.InteractionRetweet, 42},
		{models.TierHero, models.InteractionComment, 100},
	}
	for _, tt := range tests {
		got, _ := engine.Points(tt.tier, tt.interaction)
		if got != tt.want {
			t.Errorf("Points(%s, %s) = %d, want %d", tt.tier, tt.interaction, got, tt.want)
		}
	}
}

func TestAward_Idempotent(t *testing.T) {
	acct := &models.LinkedAccount{DiscordID: "d1", TwitterHandle: "alice", Tier: models.TierMicro}
	accounts := newFakeAccounts(acct)
	engine, awards, _ := newTestEngine(t, accounts)
	ctx := context.Background()

	points, err := engine.Award(ctx, "b1", "t1", acct, models.InteractionRetweet)
	if err != nil {
		t.Fatalf("first award: %v", err)
	}
	if points != 35 {
		t.Errorf("first award = %d points, want 35", points)
	}

	points, err = engine.Award(ctx, "b1", "t1", acct, models.InteractionRetweet)
	if err != nil {
		t.Fatalf("second award: %v", err)
	}
	if points != 0 {
		t.Errorf("repeat award = %d points, want 0", points)
	}

	if len(awards.granted) != 1 {
		t.Errorf("granted %d logs, want 1", len(awards.granted))
	}
	if acct.TotalPoints != 35 {
		t.Errorf("total points = %d, want 35", acct.TotalPoints)
	}
}

func TestAward_SkipsWhenMarkerPresent(t *testing.T) {
	acct := &models.LinkedAccount{DiscordID: "d1", TwitterHandle: "alice", Tier: models.TierMicro}
	accounts := newFakeAccounts(acct)
	engine, awards, kv := newTestEngine(t, accounts)
	ctx := context.Background()

	// marker left by an earlier batch
	kv.data[markerKey("t1", "d1", models.InteractionLike)] = "1"

	points, err := engine.Award(ctx, "b1", "t1", acct, models.InteractionLike)
	if err != nil {
		t.Fatalf("award: %v", err)
	}
	if points != 0 {
		t.Errorf("award with marker = %d points, want 0", points)
	}
	if len(awards.granted) != 0 {
		t.Errorf("storage was hit despite marker")
	}
}

func TestAwardWithImplicitLike_GrantsBoth(t *testing.T) {
	acct := &models.LinkedAccount{DiscordID: "d1", TwitterHandle: "alice", Tier: models.TierStar}
	accounts := newFakeAccounts(acct)
	engine, _, _ := newTestEngine(t, accounts)
	ctx := context.Background()

	total, granted, err := engine.AwardWithImplicitLike(ctx, "b1", "t1", acct, models.InteractionRetweet)
	if err != nil {
		t.Fatalf("award: %v", err)
	}
	if total != 68 { // retweet 53 + implicit like 15
		t.Errorf("total = %d, want 68", total)
	}
	if granted != 2 {
		t.Errorf("granted = %d interactions, want 2", granted)
	}
	if acct.TotalPoints != 68 {
		t.Errorf("account total = %d, want 68", acct.TotalPoints)
	}
}

func TestAwardWithImplicitLike_LikeGrantedOnce(t *testing.T) {
	acct := &models.LinkedAccount{DiscordID: "d1", TwitterHandle: "alice", Tier: models.TierMicro}
	accounts := newFakeAccounts(acct)
	engine, _, _ := newTestEngine(t, accounts)
	ctx := context.Background()

	// retweet first: retweet 35 + like 10
	total, _, err := engine.AwardWithImplicitLike(ctx, "b1", "t1", acct, models.InteractionRetweet)
	if err != nil {
		t.Fatalf("retweet award: %v", err)
	}
	if total != 45 {
		t.Errorf("retweet total = %d, want 45", total)
	}

	// comment later: comment 50 only, the like bonus already landed
	total, granted, err := engine.AwardWithImplicitLike(ctx, "b1", "t1", acct, models.InteractionComment)
	if err != nil {
		t.Fatalf("comment award: %v", err)
	}
	if total != 50 {
		t.Errorf("comment total = %d, want 50", total)
	}
	if granted != 1 {
		t.Errorf("comment granted = %d, want 1", granted)
	}
	if acct.TotalPoints != 95 {
		t.Errorf("account total = %d, want 95", acct.TotalPoints)
	}
}

package progression

import (
	"context"
	"testing"
	"time"

	"dulpton-point/pkg/config"
	"dulpton-point/pkg/errutil"
	"dulpton-point/services/catalog"
	"dulpton-point/services/quest"
	"dulpton-point/services/reward"
	"dulpton-point/services/store"
	"dulpton-point/services/testutil"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func int64p(v int64) *int64 { return &v }

func newTestService(t *testing.T, clock *testutil.Clock) (*Service, store.Store) {
	t.Helper()
	c, err := catalog.Default()
	require.NoError(t, err)
	levels, err := reward.NewDefaultLevelTable()
	require.NoError(t, err)
	cfg := &config.Config{}
	cfg.Rewards.Timezone = "UTC"

	st := store.NewMemory()
	err = st.Update(context.Background(), func(tx store.Tx) error {
		require.NoError(t, tx.CreateAccount(context.Background(), &store.Account{ID: "a1", ReferralCode: "CODE0001"}))
		return tx.CreateStats(context.Background(), &store.ProgressionStats{AccountID: "a1", Level: 1})
	})
	require.NoError(t, err)

	return NewService(ServiceParams{Store: st, Catalog: c, Levels: levels, Config: cfg, Logger: zap.NewNop(), Now: clock.Now}), st
}

func TestFold_ReferenceScores(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	scores := []store.GameScore{
		{ID: "3", Score: 30, CreatedAt: base.Add(2 * time.Second), TimeCompleted: int64p(70)},
		{ID: "1", Score: 10, CreatedAt: base, TimeCompleted: int64p(90)},
		{ID: "2", Score: 50, CreatedAt: base.Add(time.Second)},
	}

	gs := Fold("a1", "memory-match", scores, 1)
	require.Equal(t, int64(3), gs.TotalPlays)
	require.Equal(t, int64(50), gs.BestScore)
	require.Equal(t, int64(90), gs.TotalScore)
	require.InDelta(t, 30.0, gs.AverageScore, 1e-9)
	require.Equal(t, int64(70), *gs.BestTime)
	require.InDelta(t, 100.0, gs.CompletionRate, 1e-9)
	require.Equal(t, int64(3), gs.CurrentStreak)
	require.True(t, gs.LastPlayedAt.Equal(base.Add(2*time.Second)))
}

func TestFold_Streaks(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var scores []store.GameScore
	for i, s := range []int64{60, 70, 10, 80, 90, 95, 5} {
		scores = append(scores, store.GameScore{ID: string(rune('a' + i)), Score: s, CreatedAt: base.Add(time.Duration(i) * time.Second)})
	}

	gs := Fold("a1", "g", scores, 50)
	require.Equal(t, int64(0), gs.CurrentStreak)
	require.Equal(t, int64(3), gs.MaxStreak)
	require.InDelta(t, 500.0/7.0, gs.CompletionRate, 1e-9)
	require.Nil(t, gs.BestTime)

	empty := Fold("a1", "g", nil, 1)
	require.Zero(t, empty.TotalPlays)
	require.Zero(t, empty.AverageScore)
}

func TestApplyXP_LevelNeverDecreases(t *testing.T) {
	levels, err := reward.NewDefaultLevelTable()
	require.NoError(t, err)

	stats := &store.ProgressionStats{Level: 1}
	change := ApplyXP(levels, stats, 499)
	require.False(t, change.LeveledUp)
	require.Equal(t, 1, stats.Level)

	change = ApplyXP(levels, stats, 1)
	require.True(t, change.LeveledUp)
	require.Equal(t, "Bronze", change.Previous.Name)
	require.Equal(t, "Silver", change.Level.Name)
	require.Equal(t, 2, stats.Level)

	change = ApplyXP(levels, stats, -1000)
	require.False(t, change.LeveledUp)
	require.Equal(t, int64(500), stats.XP)
	require.Equal(t, 2, stats.Level)
}

func TestTouchLoginStreak(t *testing.T) {
	loc := time.UTC
	day := func(d, h int) time.Time { return time.Date(2026, 3, d, h, 0, 0, 0, loc) }
	stats := &store.ProgressionStats{}

	require.True(t, TouchLoginStreak(stats, day(1, 8), loc))
	require.Equal(t, int64(1), stats.LoginStreak)

	require.False(t, TouchLoginStreak(stats, day(1, 23), loc))
	require.Equal(t, int64(1), stats.LoginStreak)

	require.True(t, TouchLoginStreak(stats, day(2, 0), loc))
	require.True(t, TouchLoginStreak(stats, day(3, 12), loc))
	require.Equal(t, int64(3), stats.LoginStreak)

	require.True(t, TouchLoginStreak(stats, day(6, 12), loc))
	require.Equal(t, int64(1), stats.LoginStreak)
	require.Equal(t, int64(3), stats.MaxLoginStreak)
}

func TestTouchLoginStreak_UsesLocalCalendar(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	stats := &store.ProgressionStats{}
	// 23:00 and 04:00 UTC the next day are the same local day.
	require.True(t, TouchLoginStreak(stats, time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC), loc))
	require.False(t, TouchLoginStreak(stats, time.Date(2026, 3, 2, 4, 0, 0, 0, time.UTC), loc))
	require.True(t, TouchLoginStreak(stats, time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC), loc))
	require.Equal(t, int64(2), stats.LoginStreak)
}

func TestBumpQuest_WindowsAndPruning(t *testing.T) {
	c, err := catalog.Default()
	require.NoError(t, err)
	loc := time.UTC
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, loc)
	stats := &store.ProgressionStats{}

	BumpQuest(c, stats, catalog.QuestCompleteTasks, 1, now, loc)
	BumpQuest(c, stats, catalog.QuestCompleteTasks, 1, now, loc)

	dayStart, _ := quest.Window(catalog.Daily, now, loc)
	weekStart, _ := quest.Window(catalog.Weekly, now, loc)
	q := stats.Quests()
	require.Equal(t, int64(2), q[quest.ProgressKey("daily_complete_5_tasks", dayStart)])
	require.Equal(t, int64(2), q[quest.ProgressKey("weekly_complete_25_tasks", weekStart)])

	quest.MarkClaimed(stats, "daily_complete_5_tasks", dayStart)
	quest.MarkClaimed(stats, "weekly_complete_25_tasks", weekStart)
	BumpQuest(c, stats, catalog.QuestLoginStreak, 4, now, loc)
	BumpQuest(c, stats, catalog.QuestLoginStreak, 2, now, loc)
	require.Equal(t, int64(4), stats.Quests()[quest.ProgressKey("weekly_login_streak", weekStart)])

	tomorrow := now.Add(24 * time.Hour)
	BumpQuest(c, stats, catalog.QuestSpinWheel, 1, tomorrow, loc)
	q = stats.Quests()
	require.NotContains(t, q, quest.ProgressKey("daily_complete_5_tasks", dayStart))
	require.NotContains(t, q, quest.ClaimKey("daily_complete_5_tasks", dayStart))
	require.Equal(t, int64(1), q[quest.ClaimKey("weekly_complete_25_tasks", weekStart)])
	require.Equal(t, int64(2), q[quest.ProgressKey("weekly_complete_25_tasks", weekStart)])
	require.Equal(t, int64(1), q[quest.ProgressKey("daily_spin_wheel", dayStart.Add(24*time.Hour))])
}

func TestRecordWeeklyEarnings_ResetsOnNewWeek(t *testing.T) {
	stats := &store.ProgressionStats{}
	wed := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	RecordWeeklyEarnings(stats, 100, wed, time.UTC)
	RecordWeeklyEarnings(stats, 50, wed.Add(time.Hour), time.UTC)
	require.Equal(t, int64(150), stats.WeeklyEarnings)

	RecordWeeklyEarnings(stats, 10, wed.AddDate(0, 0, 4), time.UTC)
	require.Equal(t, int64(10), stats.WeeklyEarnings)
}

func TestActiveMultiplier(t *testing.T) {
	now := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	stats := &store.ProgressionStats{}
	require.Equal(t, reward.BaseBP, ActiveMultiplier(stats, now))

	SetMultiplier(stats, 20000, time.Hour, now)
	require.Equal(t, int64(20000), ActiveMultiplier(stats, now.Add(59*time.Minute)))
	require.Equal(t, reward.BaseBP, ActiveMultiplier(stats, now.Add(time.Hour)))
}

func TestService_RecordGameScoreAndViews(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	clock := testutil.NewClock(base)
	svc, _ := newTestService(t, clock)

	for i, s := range []int64{10, 50, 30} {
		clock.Advance(time.Second)
		_, err := svc.RecordGameScore(ctx, &store.GameScore{ID: string(rune('a' + i)), AccountID: "a1", GameID: "memory-match", Score: s})
		require.NoError(t, err)
	}

	view, err := svc.GameStats(ctx, "a1", "memory-match")
	require.NoError(t, err)
	require.Equal(t, int64(3), view.Stats.TotalPlays)
	require.Equal(t, int64(50), view.Stats.BestScore)
	require.InDelta(t, 30.0, view.Stats.AverageScore, 1e-9)
	require.Len(t, view.Recent, 3)
	require.Equal(t, int64(30), view.Recent[0].Score)

	untouched, err := svc.GameStats(ctx, "a1", "number-rush")
	require.NoError(t, err)
	require.Zero(t, untouched.Stats.TotalPlays)

	all, err := svc.ListGameStats(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestService_AddXP(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, testutil.NewClock(time.Now()))

	change, stats, err := svc.AddXP(ctx, "a1", 1600)
	require.NoError(t, err)
	require.True(t, change.LeveledUp)
	require.Equal(t, "Gold", change.Level.Name)
	require.Equal(t, 3, stats.Level)

	got, err := svc.GetStats(ctx, "a1")
	require.NoError(t, err)
	require.Equal(t, int64(1600), got.XP)

	_, _, err = svc.AddXP(ctx, "missing", 10)
	require.True(t, errutil.Is(err, errutil.StatusNotFound))
}

package engine

import (
	"context"
	"time"

	"dulpton-point/pkg/db/pagination"
	"dulpton-point/pkg/errutil"
	"dulpton-point/services/achievement"
	"dulpton-point/services/catalog"
	"dulpton-point/services/leaderboard"
	"dulpton-point/services/ledger"
	"dulpton-point/services/progression"
	"dulpton-point/services/quest"
	"dulpton-point/services/reward"
	"dulpton-point/services/store"
)

type SpinStatus struct {
	Eligible   bool      `json:"eligible"`
	NextSpinAt time.Time `json:"next_spin_at"`
}

type Profile struct {
	Account      store.Account          `json:"account"`
	Stats        store.ProgressionStats `json:"stats"`
	Level        reward.Progress        `json:"level"`
	MultiplierBP int64                  `json:"multiplier_bp"`
	Spin         SpinStatus             `json:"spin"`
}

func (e *Engine) view(ctx context.Context, accountID string) (*store.Account, *store.ProgressionStats, error) {
	var (
		acct  *store.Account
		stats *store.ProgressionStats
	)
	err := e.store.View(ctx, func(tx store.Tx) error {
		var err error
		acct, stats, err = e.load(ctx, tx, accountID)
		return err
	})
	return acct, stats, err
}

func (e *Engine) Profile(ctx context.Context, accountID string) (*Profile, error) {
	acct, stats, err := e.view(ctx, accountID)
	if err != nil {
		return nil, err
	}
	now := e.ledger.Now()
	ok, next := reward.SpinEligible(stats.LastSpinAt, now)
	return &Profile{
		Account:      *acct,
		Stats:        *stats,
		Level:        e.progression.Levels().Progress(stats.XP),
		MultiplierBP: progression.ActiveMultiplier(stats, now),
		Spin:         SpinStatus{Eligible: ok, NextSpinAt: next},
	}, nil
}

func (e *Engine) SpinStatus(ctx context.Context, accountID string) (*SpinStatus, error) {
	_, stats, err := e.view(ctx, accountID)
	if err != nil {
		return nil, err
	}
	ok, next := reward.SpinEligible(stats.LastSpinAt, e.ledger.Now())
	return &SpinStatus{Eligible: ok, NextSpinAt: next}, nil
}

func (e *Engine) SpinTable() []reward.SpinEntry {
	return e.spinner.Table()
}

func (e *Engine) Stats(ctx context.Context, accountID string) (*store.ProgressionStats, error) {
	_, stats, err := e.view(ctx, accountID)
	return stats, err
}

func (e *Engine) Transactions(ctx context.Context, accountID string, p pagination.Pagination) (*ledger.TransactionPage, error) {
	return e.ledger.ListTransactions(ctx, accountID, p)
}

func (e *Engine) VerifyChain(ctx context.Context, accountID string) (ledger.ChainReport, error) {
	return e.ledger.VerifyChain(ctx, accountID)
}

func (e *Engine) Tasks() []catalog.Task {
	now := e.ledger.Now()
	var out []catalog.Task
	for _, t := range e.catalog.Tasks() {
		if t.Available(now) {
			out = append(out, t)
		}
	}
	return nonNil(out)
}

func (e *Engine) Games() []catalog.Game {
	return nonNil(e.catalog.Games())
}

// GameStats returns an unknown game as UnknownEntity rather than zero stats.
func (e *Engine) GameStats(ctx context.Context, accountID, gameID string) (*progression.GameStatsView, error) {
	if _, ok := e.catalog.Game(gameID); !ok {
		return nil, errutil.UnknownEntity("unknown game", nil, errutil.WithDetails(errutil.Detail{Field: "game_id", Message: gameID}))
	}
	if _, _, err := e.view(ctx, accountID); err != nil {
		return nil, err
	}
	return e.progression.GameStats(ctx, accountID, gameID)
}

func (e *Engine) ListGameStats(ctx context.Context, accountID string) ([]store.GameStats, error) {
	if _, _, err := e.view(ctx, accountID); err != nil {
		return nil, err
	}
	out, err := e.progression.ListGameStats(ctx, accountID)
	return nonNil(out), err
}

func (e *Engine) Achievements(ctx context.Context, accountID string) ([]achievement.Status, error) {
	return e.achievements.List(ctx, accountID)
}

func (e *Engine) Quests(ctx context.Context, accountID string, period catalog.QuestPeriod) ([]quest.View, error) {
	if _, _, err := e.view(ctx, accountID); err != nil {
		return nil, err
	}
	var (
		out []quest.View
		err error
	)
	switch period {
	case catalog.Daily:
		out, err = e.quests.Daily(ctx, accountID)
	case catalog.Weekly:
		out, err = e.quests.Weekly(ctx, accountID)
	default:
		return nil, errutil.BadRequest("unknown quest period", nil, errutil.WithDetails(errutil.Detail{Field: "period", Message: string(period)}))
	}
	return nonNil(out), err
}

func (e *Engine) Leaderboards(ctx context.Context, limit int) (*leaderboard.Snapshot, error) {
	return e.leaderboard.Snapshot(ctx, limit)
}

func (e *Engine) TopEarners(ctx context.Context, limit int) ([]leaderboard.Entry, error) {
	return e.leaderboard.TopEarners(ctx, limit)
}

func (e *Engine) TopGame(ctx context.Context, gameID string, limit int) ([]leaderboard.Entry, error) {
	return e.leaderboard.TopGame(ctx, gameID, limit)
}

func (e *Engine) TopScores(ctx context.Context, gameID string, limit int) ([]leaderboard.Entry, error) {
	return e.leaderboard.TopScores(ctx, gameID, limit)
}

// AchievementCatalog lists the active definitions.
func (e *Engine) AchievementCatalog() []catalog.Achievement {
	var out []catalog.Achievement
	for _, a := range e.catalog.Achievements() {
		if a.Active {
			out = append(out, a)
		}
	}
	return nonNil(out)
}

package progression

import (
	"context"
	"errors"
	"time"

	"dulpton-point/pkg/config"
	"dulpton-point/pkg/errutil"
	"dulpton-point/services/catalog"
	"dulpton-point/services/reward"
	"dulpton-point/services/store"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// RecentScoresLimit is how many scores accompany a game stats view.
const RecentScoresLimit = 10

type Service struct {
	store   store.Store
	catalog *catalog.Catalog
	levels  *reward.LevelTable
	loc     *time.Location
	now     func() time.Time
	logger  *zap.Logger
}

type ServiceParams struct {
	fx.In

	Store   store.Store
	Catalog *catalog.Catalog
	Levels  *reward.LevelTable
	Config  *config.Config
	Logger  *zap.Logger      `optional:"true"`
	Now     func() time.Time `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	s := &Service{
		store:   p.Store,
		catalog: p.Catalog,
		levels:  p.Levels,
		loc:     p.Config.Rewards.Location(),
		now:     p.Now,
		logger:  p.Logger,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = zap.L()
	}
	return s
}

func (s *Service) Location() *time.Location { return s.loc }

func (s *Service) Levels() *reward.LevelTable { return s.levels }

func notFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return errutil.NotFound("account not found", err)
	}
	return err
}

func (s *Service) GetStats(ctx context.Context, accountID string) (*store.ProgressionStats, error) {
	var out *store.ProgressionStats
	err := s.store.View(ctx, func(tx store.Tx) error {
		st, err := tx.GetStats(ctx, accountID)
		out = st
		return notFound(err)
	})
	return out, err
}

func (s *Service) AddXP(ctx context.Context, accountID string, amount int64) (LevelChange, *store.ProgressionStats, error) {
	var (
		change LevelChange
		stats  *store.ProgressionStats
	)
	err := s.store.Update(ctx, func(tx store.Tx) error {
		st, err := tx.GetStats(ctx, accountID)
		if err != nil {
			return notFound(err)
		}
		change = ApplyXP(s.levels, st, amount)
		stats = st
		return tx.UpdateStats(ctx, st)
	})
	if err != nil {
		return LevelChange{}, nil, err
	}
	if change.LeveledUp {
		s.logger.Info("level up",
			zap.String("account_id", accountID),
			zap.String("from", change.Previous.Name),
			zap.String("to", change.Level.Name))
	}
	return change, stats, nil
}

// RecordGameScoreTx appends score and refolds the pair's stats.
func (s *Service) RecordGameScoreTx(ctx context.Context, tx store.Tx, score *store.GameScore) (*store.GameStats, error) {
	if score.CreatedAt.IsZero() {
		score.CreatedAt = s.now()
	}
	if err := tx.AppendGameScore(ctx, score); err != nil {
		return nil, err
	}
	scores, err := tx.ListGameScores(ctx, score.AccountID, score.GameID)
	if err != nil {
		return nil, err
	}

	pass := int64(1)
	if g, ok := s.catalog.Game(score.GameID); ok {
		pass = g.PassScore
	}
	folded := Fold(score.AccountID, score.GameID, scores, pass)
	folded.UpdatedAt = s.now()
	if err := tx.PutGameStats(ctx, &folded); err != nil {
		return nil, err
	}
	return &folded, nil
}

func (s *Service) RecordGameScore(ctx context.Context, score *store.GameScore) (*store.GameStats, error) {
	var out *store.GameStats
	err := s.store.Update(ctx, func(tx store.Tx) error {
		var err error
		out, err = s.RecordGameScoreTx(ctx, tx, score)
		return err
	})
	return out, err
}

type GameStatsView struct {
	Stats  store.GameStats   `json:"stats"`
	Recent []store.GameScore `json:"recent_scores"`
}

// GameStats returns the pair's stats and most recent scores. An account that
// never played the game gets zero stats.
func (s *Service) GameStats(ctx context.Context, accountID, gameID string) (*GameStatsView, error) {
	out := &GameStatsView{Stats: store.GameStats{AccountID: accountID, GameID: gameID}}
	err := s.store.View(ctx, func(tx store.Tx) error {
		gs, err := tx.GetGameStats(ctx, accountID, gameID)
		switch {
		case err == nil:
			out.Stats = *gs
		case !errors.Is(err, store.ErrNotFound):
			return err
		}
		out.Recent, err = tx.RecentGameScores(ctx, accountID, gameID, RecentScoresLimit)
		return err
	})
	return out, err
}

func (s *Service) ListGameStats(ctx context.Context, accountID string) ([]store.GameStats, error) {
	var out []store.GameStats
	err := s.store.View(ctx, func(tx store.Tx) error {
		var err error
		out, err = tx.ListGameStats(ctx, accountID)
		return err
	})
	return out, err
}

func (s *Service) TouchLoginStreak(stats *store.ProgressionStats, now time.Time) bool {
	return TouchLoginStreak(stats, now, s.loc)
}

func (s *Service) BumpQuest(stats *store.ProgressionStats, t catalog.QuestType, amount int64, now time.Time) {
	BumpQuest(s.catalog, stats, t, amount, now, s.loc)
}

func (s *Service) ApplyXP(stats *store.ProgressionStats, amount int64) LevelChange {
	return ApplyXP(s.levels, stats, amount)
}

// LevelBP is the multiplier of the stats' current level.
func (s *Service) LevelBP(stats *store.ProgressionStats) int64 {
	return s.levels.LevelFor(stats.XP).MultiplierBP
}

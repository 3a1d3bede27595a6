package achievement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"dulpton-point/pkg/celengine"
	"dulpton-point/pkg/config"
	"dulpton-point/services/catalog"
	"dulpton-point/services/store"

	"github.com/google/cel-go/cel"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var unlockedTotal = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "dulpton_achievements_unlocked_total",
	Help: "Achievements unlocked across all accounts.",
})

func init() {
	prometheus.MustRegister(unlockedTotal)
}

var errUnknownRequirement = errors.New("achievement: unknown requirement")

// Facts is what an evaluation can see. Latest and Game are set only when
// GameID is.
type Facts struct {
	Account *store.Account
	Stats   *store.ProgressionStats
	GameID  string
	Latest  *store.GameScore
	Game    *store.GameStats
}

// NewEnv declares the variables available to Expression requirements.
func NewEnv() (*cel.Env, error) {
	vars := map[string]*cel.Type{"game_id": cel.StringType}
	for _, name := range []string{
		"tasks_completed", "spins_completed", "games_played", "login_streak",
		"max_login_streak", "total_earned", "balance", "referrals", "xp", "level",
		"score", "time_completed", "game_plays", "best_score", "game_streak",
		"days_since_signup",
	} {
		vars[name] = cel.IntType
	}
	return celengine.NewEnv(vars)
}

type Evaluator struct {
	catalog *catalog.Catalog
	cel     *celengine.Engine
	launch  time.Time
	now     func() time.Time
	logger  *zap.Logger
}

type EvaluatorParams struct {
	fx.In

	Catalog *catalog.Catalog
	Config  *config.Config
	Logger  *zap.Logger      `optional:"true"`
	Now     func() time.Time `optional:"true"`
}

func NewEvaluator(p EvaluatorParams) (*Evaluator, error) {
	env, err := NewEnv()
	if err != nil {
		return nil, err
	}
	e := &Evaluator{
		catalog: p.Catalog,
		cel:     celengine.New(env),
		launch:  p.Config.Rewards.Launch(),
		now:     p.Now,
		logger:  p.Logger,
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.logger == nil {
		e.logger = zap.L()
	}

	for _, a := range p.Catalog.Achievements() {
		if expr, ok := a.Requirement.(catalog.Expression); ok {
			if err := e.cel.Validate(expr.Source); err != nil {
				e.logger.Warn("achievement expression does not compile",
					zap.String("achievement_id", a.ID), zap.Error(err))
			}
		}
	}
	return e, nil
}

// EvaluateTx unlocks every in-scope achievement whose requirement now holds.
// Global definitions are always in scope; game definitions only for
// f.GameID. Only new unlocks are returned.
func (e *Evaluator) EvaluateTx(ctx context.Context, tx store.Tx, f Facts) ([]store.AchievementUnlock, error) {
	if f.Account == nil || f.Stats == nil {
		return nil, fmt.Errorf("achievement: account and stats are required")
	}

	var unlocked []store.AchievementUnlock
	for _, a := range e.catalog.Achievements() {
		if !a.Active || (!a.Global() && a.GameID != f.GameID) {
			continue
		}

		_, err := tx.GetUnlock(ctx, f.Account.ID, a.ID)
		if err == nil {
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}

		ok, err := e.Satisfied(a, f)
		if err != nil {
			e.logger.Warn("skipping malformed achievement",
				zap.String("achievement_id", a.ID),
				zap.String("requirement", a.Requirement.Kind()),
				zap.Error(err))
			continue
		}
		if !ok {
			continue
		}

		u := store.AchievementUnlock{AccountID: f.Account.ID, AchievementID: a.ID, UnlockedAt: e.now().UTC().Truncate(time.Millisecond)}
		inserted, err := tx.InsertUnlock(ctx, &u)
		if err != nil {
			return nil, err
		}
		if inserted {
			unlockedTotal.Inc()
			unlocked = append(unlocked, u)
		}
	}
	return unlocked, nil
}

// Satisfied tests one requirement against the facts.
func (e *Evaluator) Satisfied(a catalog.Achievement, f Facts) (bool, error) {
	switch r := a.Requirement.(type) {
	case catalog.CompletionCount:
		return f.Game != nil && f.Game.TotalPlays >= r.Plays, nil
	case catalog.Score:
		return f.Latest != nil && r.Cmp.Holds(f.Latest.Score, r.Value), nil
	case catalog.Time:
		return f.Latest != nil && f.Latest.TimeCompleted != nil && r.Cmp.Holds(*f.Latest.TimeCompleted, r.Seconds), nil
	case catalog.GameStreak:
		if f.Latest == nil {
			return false, nil
		}
		streak, ok := metadataInt(f.Latest.Metadata, "streak")
		return ok && streak >= r.AtLeast, nil
	case catalog.LoginStreak:
		return f.Stats.LoginStreak >= r.AtLeast, nil
	case catalog.TotalEarned:
		return f.Account.TotalEarned >= r.AtLeast, nil
	case catalog.Referrals:
		return f.Account.ReferralCount >= r.AtLeast, nil
	case catalog.TasksCompleted:
		return f.Stats.TasksCompleted >= r.AtLeast, nil
	case catalog.SpinsCompleted:
		return f.Stats.SpinsCompleted >= r.AtLeast, nil
	case catalog.SignupWithin:
		if e.launch.IsZero() {
			return false, nil
		}
		deadline := e.launch.AddDate(0, 0, r.Days)
		return f.Account.CreatedAt.Before(deadline), nil
	case catalog.Expression:
		return e.cel.Evaluate(r.Source, e.attributes(f))
	default:
		return false, fmt.Errorf("%w: %T", errUnknownRequirement, a.Requirement)
	}
}

func (e *Evaluator) attributes(f Facts) map[string]any {
	attrs := map[string]any{
		"game_id":           f.GameID,
		"tasks_completed":   f.Stats.TasksCompleted,
		"spins_completed":   f.Stats.SpinsCompleted,
		"games_played":      f.Stats.GamesPlayed,
		"login_streak":      f.Stats.LoginStreak,
		"max_login_streak":  f.Stats.MaxLoginStreak,
		"total_earned":      f.Account.TotalEarned,
		"balance":           f.Account.Balance,
		"referrals":         f.Account.ReferralCount,
		"xp":                f.Stats.XP,
		"level":             int64(f.Stats.Level),
		"score":             int64(0),
		"time_completed":    int64(0),
		"game_plays":        int64(0),
		"best_score":        int64(0),
		"game_streak":       int64(0),
		"days_since_signup": int64(e.now().Sub(f.Account.CreatedAt) / (24 * time.Hour)),
	}
	if f.Latest != nil {
		attrs["score"] = f.Latest.Score
		if f.Latest.TimeCompleted != nil {
			attrs["time_completed"] = *f.Latest.TimeCompleted
		}
		if streak, ok := metadataInt(f.Latest.Metadata, "streak"); ok {
			attrs["game_streak"] = streak
		}
	}
	if f.Game != nil {
		attrs["game_plays"] = f.Game.TotalPlays
		attrs["best_score"] = f.Game.BestScore
	}
	return attrs
}

// metadataInt reads an integral value that may have been decoded from JSON.
func metadataInt(m map[string]any, key string) (int64, bool) {
	switch v := m[key].(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

package reward

import (
	"time"

	"dulpton-point/pkg/config"
	"dulpton-point/pkg/errutil"
	"dulpton-point/services/catalog"
)

const (
	// TaskXP is awarded for every completed task.
	TaskXP int64 = 25
	// MinGameReward is the floor of a score-driven game reward before the
	// difficulty factor.
	MinGameReward int64 = 25
	// SpinCooldown is the minimum time between two spins.
	SpinCooldown = 24 * time.Hour
)

var difficultyBP = map[string]int64{
	"easy":   8000,
	"medium": 10000,
	"hard":   15000,
}

// Calculator holds every reward rule. It never touches storage.
type Calculator struct {
	cfg     config.Rewards
	catalog *catalog.Catalog
	levels  *LevelTable
}

func NewCalculator(cfg *config.Config, c *catalog.Catalog, levels *LevelTable) *Calculator {
	return &Calculator{cfg: cfg.Rewards, catalog: c, levels: levels}
}

func (c *Calculator) Levels() *LevelTable {
	return c.levels
}

// ApplyMultipliers returns floor(amount x level x active) using integer math.
func ApplyMultipliers(amount, levelBP, activeBP int64) int64 {
	if levelBP <= 0 {
		levelBP = BaseBP
	}
	if activeBP <= 0 {
		activeBP = BaseBP
	}
	return amount * levelBP * activeBP / (BaseBP * BaseBP)
}

func (c *Calculator) TaskReward(task catalog.Task, now time.Time, levelBP, activeBP int64) (int64, error) {
	if !task.Available(now) {
		return 0, errutil.NotFound("task is not available", nil)
	}
	return ApplyMultipliers(task.Reward, levelBP, activeBP), nil
}

// PlayReward is the fixed reward of a simple play. Unknown games earn the
// configured fallback.
func (c *Calculator) PlayReward(gameID string) int64 {
	if g, ok := c.catalog.Game(gameID); ok && g.BaseReward > 0 {
		return g.BaseReward
	}
	return c.cfg.FallbackGameReward
}

// GameReward computes a score-driven reward. The score is clamped to the
// game's range before use.
func (c *Calculator) GameReward(gameID string, score int64, difficulty string) (int64, error) {
	g, ok := c.catalog.Game(gameID)
	if !ok {
		return 0, errutil.UnknownEntity("unknown game", nil, errutil.WithDetails(errutil.Detail{Field: "game_id", Message: gameID}))
	}
	bp, ok := difficultyBP[difficulty]
	if !ok {
		return 0, errutil.BadRequest("unknown difficulty", nil, errutil.WithDetails(errutil.Detail{Field: "difficulty", Message: difficulty}))
	}

	score = ClampScore(g, score)
	base := max(score/2, MinGameReward)
	amount := base * bp / BaseBP
	if c.cfg.MaxGameReward > 0 {
		amount = min(amount, c.cfg.MaxGameReward)
	}
	return amount, nil
}

func ClampScore(g catalog.Game, score int64) int64 {
	score = max(score, 0)
	if g.MaxScore > 0 {
		score = min(score, g.MaxScore)
	}
	return score
}

func (c *Calculator) SignupBonus() int64 {
	return c.cfg.SignupBonus
}

func (c *Calculator) ReferralBonus() int64 {
	return c.cfg.ReferralBonus
}

func PlayXP(reward int64) int64 { return reward / 2 }

func ScoreXP(reward int64) int64 { return reward / 5 }

// SpinEligible reports whether a spin is allowed at now and when the next one
// becomes available.
func SpinEligible(last *time.Time, now time.Time) (bool, time.Time) {
	if last == nil {
		return true, now
	}
	next := last.Add(SpinCooldown)
	return !now.Before(next), next
}

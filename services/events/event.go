package events

import (
	"context"
	"time"
)

type Kind string

const (
	KindBalanceChanged      Kind = "balance.changed"
	KindLevelUp             Kind = "level.up"
	KindAchievementUnlocked Kind = "achievement.unlocked"
	KindSpinResult          Kind = "spin.result"
	KindGameScore           Kind = "game.score"
)

type Event struct {
	Kind      Kind      `json:"kind"`
	AccountID string    `json:"account_id"`
	Data      any       `json:"data"`
	At        time.Time `json:"at"`
}

type BalanceChanged struct {
	Balance       int64  `json:"balance"`
	TotalEarned   int64  `json:"total_earned"`
	Delta         int64  `json:"delta"`
	TransactionID string `json:"transaction_id"`
	Kind          string `json:"kind"`
}

type LevelUp struct {
	Previous int    `json:"previous"`
	Level    int    `json:"level"`
	Name     string `json:"name"`
}

type AchievementUnlocked struct {
	AchievementID string `json:"achievement_id"`
	Title         string `json:"title"`
	Reward        int64  `json:"reward"`
}

type SpinResult struct {
	Outcome string `json:"outcome"`
	Label   string `json:"label"`
	Amount  int64  `json:"amount"`
	Rarity  string `json:"rarity"`
}

type GameScore struct {
	GameID    string `json:"game_id"`
	Score     int64  `json:"score"`
	BestScore int64  `json:"best_score"`
	Reward    int64  `json:"reward"`
}

// Publisher is called after the unit of work that produced the events has
// committed. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, events ...Event) error
}

// Fanout publishes to every publisher and returns the first error.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, events ...Event) error {
	var first error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, events...); err != nil && first == nil {
			first = err
		}
	}
	return first
}

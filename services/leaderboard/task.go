package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"

	"dulpton-point/pkg/rediskey"
	"dulpton-point/pkg/taskname"
	"dulpton-point/services/events"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Mirror keeps the redis sorted sets in step with the store. Scores only
// ever rise, so ZADD GT makes replays and reordering harmless.
type Mirror struct {
	rdb    *redis.Client
	logger *zap.Logger
}

func NewMirror(rdb *redis.Client, logger *zap.Logger) *Mirror {
	if logger == nil {
		logger = zap.L()
	}
	return &Mirror{rdb: rdb, logger: logger}
}

func (m *Mirror) HandleBalance(ctx context.Context, t *asynq.Task) error {
	var p events.BalancePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("invalid payload: %v: %w", err, asynq.SkipRetry)
	}
	return m.rdb.ZAddGT(ctx, rediskey.EarnersLeaderboard(), redis.Z{Score: float64(p.TotalEarned), Member: p.AccountID}).Err()
}

func (m *Mirror) HandleGameScore(ctx context.Context, t *asynq.Task) error {
	var p events.GameScorePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("invalid payload: %v: %w", err, asynq.SkipRetry)
	}
	if p.GameID == "" {
		return fmt.Errorf("missing game id: %w", asynq.SkipRetry)
	}
	return m.rdb.ZAddGT(ctx, rediskey.GameLeaderboard(p.GameID), redis.Z{Score: float64(p.BestScore), Member: p.AccountID}).Err()
}

func RegisterTasks(mux *asynq.ServeMux, m *Mirror) {
	mux.HandleFunc(taskname.EventBalance, m.HandleBalance)
	mux.HandleFunc(taskname.EventGameScore, m.HandleGameScore)
	zap.L().Info("leaderboard mirror handlers registered")
}

package events

import (
	"context"
	"encoding/json"
	"fmt"

	"dulpton-point/pkg/task"
	"dulpton-point/pkg/taskname"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

type BalancePayload struct {
	AccountID   string `json:"account_id"`
	TotalEarned int64  `json:"total_earned"`
}

type GameScorePayload struct {
	AccountID string `json:"account_id"`
	GameID    string `json:"game_id"`
	BestScore int64  `json:"best_score"`
}

// AsynqPublisher forwards the events the worker cares about as tasks.
type AsynqPublisher struct {
	enqueuer task.Enqueuer
	logger   *zap.Logger
}

func NewAsynqPublisher(enqueuer task.Enqueuer, logger *zap.Logger) *AsynqPublisher {
	if logger == nil {
		logger = zap.L()
	}
	return &AsynqPublisher{enqueuer: enqueuer, logger: logger}
}

func (p *AsynqPublisher) Publish(ctx context.Context, events ...Event) error {
	for _, e := range events {
		t, err := toTask(e)
		if err != nil {
			return err
		}
		if t == nil {
			continue
		}
		if _, err := p.enqueuer.Enqueue(ctx, t, asynq.Queue("low")); err != nil {
			p.logger.Warn("failed to forward event",
				zap.String("kind", string(e.Kind)),
				zap.String("account_id", e.AccountID),
				zap.Error(err))
			return err
		}
	}
	return nil
}

func toTask(e Event) (*asynq.Task, error) {
	var (
		name    string
		payload any
	)
	switch d := e.Data.(type) {
	case BalanceChanged:
		name, payload = taskname.EventBalance, BalancePayload{AccountID: e.AccountID, TotalEarned: d.TotalEarned}
	case GameScore:
		name, payload = taskname.EventGameScore, GameScorePayload{AccountID: e.AccountID, GameID: d.GameID, BestScore: d.BestScore}
	default:
		return nil, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", name, err)
	}
	return asynq.NewTask(name, b, asynq.MaxRetry(3)), nil
}

package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"dulpton-point/pkg/errutil"
	"dulpton-point/pkg/taskname"
	"dulpton-point/services/store"

	"github.com/hibiken/asynq"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type SettlePayload struct {
	TransactionID string `json:"transaction_id"`
	AccountID     string `json:"account_id"`
}

func NewSettleTask(p SettlePayload) (*asynq.Task, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskname.WithdrawalSettle, b,
		asynq.Queue("critical"),
		asynq.MaxRetry(10),
		asynq.TaskID("settle:"+p.TransactionID),
	), nil
}

// ErrPayoutRejected marks a withdrawal the payout provider will never accept.
var ErrPayoutRejected = errors.New("payout rejected")

// Payout sends withdrawn tokens to an external address. Transient errors are
// retried; ErrPayoutRejected fails the withdrawal and refunds it.
type Payout interface {
	Send(ctx context.Context, t *store.Transaction, address string) error
}

// LogPayout accepts every withdrawal and only logs it.
type LogPayout struct {
	Logger *zap.Logger
}

func (p LogPayout) Send(_ context.Context, t *store.Transaction, address string) error {
	p.Logger.Info("payout sent",
		zap.String("transaction_id", t.ID),
		zap.String("account_id", t.AccountID),
		zap.Int64("amount", -t.Amount),
		zap.String("address", address))
	return nil
}

type TaskHandler struct {
	ledger *Service
	payout Payout
	logger *zap.Logger
}

type TaskHandlerParams struct {
	fx.In

	Ledger *Service
	Payout Payout      `optional:"true"`
	Logger *zap.Logger `optional:"true"`
}

func NewTaskHandler(p TaskHandlerParams) *TaskHandler {
	logger := p.Logger
	if logger == nil {
		logger = zap.L()
	}
	payout := p.Payout
	if payout == nil {
		payout = LogPayout{Logger: logger}
	}
	return &TaskHandler{ledger: p.Ledger, payout: payout, logger: logger}
}

func (h *TaskHandler) HandleSettleWithdrawal(ctx context.Context, t *asynq.Task) error {
	var payload SettlePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("invalid payload: %v: %w", err, asynq.SkipRetry)
	}

	log := h.logger.With(
		zap.String("task_type", t.Type()),
		zap.String("transaction_id", payload.TransactionID),
		zap.String("account_id", payload.AccountID),
	)

	tr, err := h.ledger.GetTransaction(ctx, payload.TransactionID)
	if errutil.Is(err, errutil.StatusNotFound) {
		// A replica may lag the primary; MaxRetry bounds the wait.
		log.Warn("withdrawal not visible yet, will retry")
		return fmt.Errorf("transaction %s not found: %w", payload.TransactionID, err)
	}
	if err != nil {
		return err
	}
	if tr.Status != store.StatusPending {
		log.Info("withdrawal already settled", zap.String("status", tr.Status.String()))
		return nil
	}

	address, _ := tr.Metadata["address"].(string)
	ok := true
	if err := h.payout.Send(ctx, tr, address); err != nil {
		if !errors.Is(err, ErrPayoutRejected) {
			log.Warn("payout failed, will retry", zap.Error(err))
			return err
		}
		log.Warn("payout rejected, refunding", zap.Error(err))
		ok = false
	}

	if _, err := h.ledger.SettleWithdrawal(ctx, tr.ID, ok); err != nil {
		if errutil.Is(err, errutil.StatusConflict) {
			return nil
		}
		return err
	}
	return nil
}

// RegisterTasks binds ledger task types on the worker mux.
func RegisterTasks(mux *asynq.ServeMux, h *TaskHandler) {
	mux.HandleFunc(taskname.WithdrawalSettle, h.HandleSettleWithdrawal)
}

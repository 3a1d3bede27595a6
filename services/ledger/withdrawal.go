package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dulpton-point/pkg/errutil"
	"dulpton-point/services/store"

	"go.uber.org/zap"
)

// Withdraw debits amount into a pending transaction and schedules its
// settlement once the debit has committed.
func (s *Service) Withdraw(ctx context.Context, accountID string, amount int64, address, reference string) (*Posting, error) {
	var out *Posting
	err := s.store.Update(ctx, func(tx store.Tx) error {
		var err error
		out, err = s.WithdrawTx(ctx, tx, accountID, amount, address, reference)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := s.ScheduleSettlement(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// WithdrawTx only debits. The caller must call ScheduleSettlement after the
// unit commits, so the worker never looks for an uncommitted transaction.
func (s *Service) WithdrawTx(ctx context.Context, tx store.Tx, accountID string, amount int64, address, reference string) (*Posting, error) {
	address = strings.TrimSpace(address)
	if address == "" || len(address) > maxAddressLength {
		return nil, errutil.BadRequest("invalid withdrawal address", nil, errutil.WithDetails(errutil.Detail{Field: "address", Message: "must be 1-128 characters"}))
	}

	return s.DebitTx(ctx, tx, Debit{
		AccountID:   accountID,
		Amount:      amount,
		Description: "Withdrawal",
		Metadata:    map[string]any{"address": address},
		Reference:   reference,
		Pending:     true,
	})
}

// ScheduleSettlement enqueues the settle task of a committed withdrawal.
// Without a task queue the withdrawal stays pending.
func (s *Service) ScheduleSettlement(ctx context.Context, p *Posting) error {
	if p == nil || p.Transaction == nil {
		return nil
	}
	if s.enqueuer == nil {
		s.logger.Warn("no task queue configured, withdrawal stays pending", zap.String("transaction_id", p.Transaction.ID))
		return nil
	}
	t, err := NewSettleTask(SettlePayload{TransactionID: p.Transaction.ID, AccountID: p.Account.ID})
	if err != nil {
		return err
	}
	if _, err := s.enqueuer.Enqueue(ctx, t); err != nil {
		return errutil.Internal("failed to schedule withdrawal", err)
	}
	return nil
}

// SettleWithdrawal completes a pending withdrawal, or fails it and refunds
// the amount. A transaction settles at most once.
func (s *Service) SettleWithdrawal(ctx context.Context, transactionID string, ok bool) (*store.Transaction, error) {
	var out *store.Transaction
	err := s.store.Update(ctx, func(tx store.Tx) error {
		tr, err := tx.GetTransaction(ctx, transactionID)
		if errors.Is(err, store.ErrNotFound) {
			return errutil.NotFound("transaction not found", err)
		}
		if err != nil {
			return err
		}
		if tr.Kind != store.KindWithdraw {
			return errutil.BadRequest("transaction is not a withdrawal", nil)
		}

		to := store.StatusCompleted
		if !ok {
			to = store.StatusFailed
		}
		if err := tx.UpdateTransactionStatus(ctx, tr.ID, store.StatusPending, to); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return errutil.Conflict("withdrawal already settled", err)
			}
			return err
		}
		tr.Status = to

		if !ok {
			if _, err := s.CreditTx(ctx, tx, Credit{
				AccountID:   tr.AccountID,
				Amount:      -tr.Amount,
				Kind:        store.KindEarn,
				Description: "Withdrawal refund",
				Metadata:    map[string]any{"withdrawal_id": tr.ID},
				Reference:   fmt.Sprintf("refund:%s", tr.ID),
				Refund:      true,
			}); err != nil {
				return err
			}
		}
		out = tr
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("withdrawal settled",
		zap.String("transaction_id", transactionID),
		zap.String("status", out.Status.String()))
	return out, nil
}

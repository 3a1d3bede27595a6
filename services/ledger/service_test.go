package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"dulpton-point/pkg/config"
	"dulpton-point/pkg/db/pagination"
	"dulpton-point/pkg/errutil"
	"dulpton-point/pkg/sequence"
	"dulpton-point/pkg/taskname"
	"dulpton-point/services/store"
	"dulpton-point/services/testutil"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type recordingEnqueuer struct {
	mu    sync.Mutex
	tasks []*asynq.Task
}

func (r *recordingEnqueuer) Enqueue(_ context.Context, t *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tasks = append(r.tasks, t)
	return &asynq.TaskInfo{Type: t.Type()}, nil
}

type fixture struct {
	svc   *Service
	store store.Store
	clock *testutil.Clock
	queue *recordingEnqueuer
}

func newFixture(t *testing.T, st store.Store) *fixture {
	t.Helper()
	cfg := &config.Config{}
	cfg.Rewards = config.Rewards{SignupBonus: 1000, ReferralBonus: 500, Timezone: "UTC"}

	clock := testutil.NewClock(time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC))
	queue := &recordingEnqueuer{}
	svc := NewService(ServiceParams{
		Store:    st,
		IDs:      &testutil.SeqIDs{},
		Sequence: sequence.NewRandomGenerator(),
		Config:   cfg,
		Enqueuer: queue,
		Logger:   zap.NewNop(),
		Now:      clock.Now,
	})
	return &fixture{svc: svc, store: st, clock: clock, queue: queue}
}

func backends(t *testing.T) map[string]store.Store {
	t.Helper()
	return map[string]store.Store{
		"memory": store.NewMemory(),
		"gorm":   store.NewGorm(testutil.NewTestDB(t, store.Models()...)),
	}
}

func (f *fixture) signup(t *testing.T) *store.Account {
	t.Helper()
	p, err := f.svc.CreateAccount(context.Background(), AccountSeed{Username: "alice", Email: "alice@example.com"})
	require.NoError(t, err)
	return p.Account
}

func TestCreateAccount_SignupBonus(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, st)
			ctx := context.Background()
			acct := f.signup(t)

			require.Equal(t, int64(1000), acct.Balance)
			require.Equal(t, int64(1000), acct.TotalEarned)
			require.Len(t, acct.ReferralCode, sequence.ReferralCodeLength)

			err := st.View(ctx, func(tx store.Tx) error {
				stats, err := tx.GetStats(ctx, acct.ID)
				require.NoError(t, err)
				require.Equal(t, 1, stats.Level)
				require.Equal(t, int64(1), stats.LoginStreak)
				require.Equal(t, int64(1000), stats.WeeklyEarnings)

				tr, err := tx.FindTransactionByReference(ctx, acct.ID, signupReference)
				require.NoError(t, err)
				require.Equal(t, store.KindSignupBonus, tr.Kind)
				require.Equal(t, GenesisHash, tr.PreviousHash)
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestApplyCredit_Validation(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, st)
			ctx := context.Background()
			acct := f.signup(t)

			_, err := f.svc.ApplyCredit(ctx, Credit{AccountID: acct.ID, Amount: 0, Kind: store.KindEarn})
			require.True(t, errutil.Is(err, errutil.StatusInvalidAmount))

			_, err = f.svc.ApplyCredit(ctx, Credit{AccountID: "missing", Amount: 10, Kind: store.KindEarn})
			require.True(t, errutil.Is(err, errutil.StatusNotFound))

			_, err = f.svc.ApplyCredit(ctx, Credit{AccountID: acct.ID, Amount: 10, Kind: store.KindWithdraw})
			require.True(t, errutil.Is(err, errutil.StatusBadRequest))

			p, err := f.svc.ApplyCredit(ctx, Credit{AccountID: acct.ID, Amount: 50, Kind: store.KindEarn, Reference: "task:1"})
			require.NoError(t, err)
			require.Equal(t, int64(1050), p.Account.Balance)
			require.Equal(t, int64(1050), p.Transaction.BalanceAfter)

			_, err = f.svc.ApplyCredit(ctx, Credit{AccountID: acct.ID, Amount: 50, Kind: store.KindEarn, Reference: "task:1"})
			require.True(t, errutil.Is(err, errutil.StatusConflict))
			require.ErrorIs(t, err, ErrDuplicateReference)

			got, err := f.svc.GetAccount(ctx, acct.ID)
			require.NoError(t, err)
			require.Equal(t, int64(1050), got.Balance)
		})
	}
}

func TestBalanceEqualsSignupPlusCreditsMinusDebits(t *testing.T) {
	f := newFixture(t, store.NewMemory())
	ctx := context.Background()
	acct := f.signup(t)

	want := int64(1000)
	ops := []int64{50, -300, 120, -2000, 75, -945, -1}
	for _, op := range ops {
		f.clock.Advance(time.Second)
		if op > 0 {
			_, err := f.svc.ApplyCredit(ctx, Credit{AccountID: acct.ID, Amount: op, Kind: store.KindEarn})
			require.NoError(t, err)
			want += op
			continue
		}
		_, err := f.svc.ApplyDebit(ctx, Debit{AccountID: acct.ID, Amount: -op})
		if want+op < 0 {
			require.True(t, errutil.Is(err, errutil.StatusInsufficientBalance))
			continue
		}
		require.NoError(t, err)
		want += op
	}

	got, err := f.svc.GetAccount(ctx, acct.ID)
	require.NoError(t, err)
	require.Equal(t, want, got.Balance)
	require.GreaterOrEqual(t, got.Balance, int64(0))
	require.Equal(t, int64(1245), got.TotalEarned)
}

func TestListTransactions_Pagination(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, st)
			ctx := context.Background()
			acct := f.signup(t)

			for range 4 {
				f.clock.Advance(time.Minute)
				_, err := f.svc.ApplyCredit(ctx, Credit{AccountID: acct.ID, Amount: 10, Kind: store.KindEarn})
				require.NoError(t, err)
			}

			page, err := f.svc.ListTransactions(ctx, acct.ID, pagination.Pagination{Limit: 3})
			require.NoError(t, err)
			require.Len(t, page.Data, 3)
			require.True(t, page.PageInfo.HasMore)
			require.Equal(t, int64(1040), page.Data[0].BalanceAfter)

			rest, err := f.svc.ListTransactions(ctx, acct.ID, pagination.Pagination{Limit: 3, Cursor: page.PageInfo.NextCursor})
			require.NoError(t, err)
			require.Len(t, rest.Data, 2)
			require.False(t, rest.PageInfo.HasMore)
			require.Equal(t, store.KindSignupBonus, rest.Data[1].Kind)

			_, err = f.svc.ListTransactions(ctx, acct.ID, pagination.Pagination{Cursor: "not-a-cursor!"})
			require.True(t, errutil.Is(err, errutil.StatusBadRequest))
		})
	}
}

func TestVerifyChain_DetectsTampering(t *testing.T) {
	db := testutil.NewTestDB(t, store.Models()...)
	f := newFixture(t, store.NewGorm(db))
	ctx := context.Background()
	acct := f.signup(t)

	var target string
	for i := range 3 {
		f.clock.Advance(time.Minute)
		p, err := f.svc.ApplyCredit(ctx, Credit{AccountID: acct.ID, Amount: int64(10 + i), Kind: store.KindEarn})
		require.NoError(t, err)
		if i == 1 {
			target = p.Transaction.ID
		}
	}

	report, err := f.svc.VerifyChain(ctx, acct.ID)
	require.NoError(t, err)
	require.True(t, report.Valid)
	require.Equal(t, 4, report.Entries)

	require.NoError(t, db.Model(&store.Transaction{}).Where("id = ?", target).
		UpdateColumn("amount", gorm.Expr("amount + ?", 1000)).Error)

	report, err = f.svc.VerifyChain(ctx, acct.ID)
	require.NoError(t, err)
	require.False(t, report.Valid)
	require.Equal(t, target, report.BrokenAt)
	require.Equal(t, "hash mismatch", report.Reason)
}

func TestVerify_DetectsBrokenLink(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	first := store.Transaction{ID: "1", AccountID: "a", Kind: store.KindEarn, Amount: 10, PreviousHash: GenesisHash, CreatedAt: at}
	first.Hash = ComputeHash(&first)
	second := store.Transaction{ID: "2", AccountID: "a", Kind: store.KindEarn, Amount: 5, PreviousHash: "other", CreatedAt: at}
	second.Hash = ComputeHash(&second)

	require.True(t, Verify([]store.Transaction{first}).Valid)

	report := Verify([]store.Transaction{first, second})
	require.False(t, report.Valid)
	require.Equal(t, "2", report.BrokenAt)
	require.Equal(t, "previous hash mismatch", report.Reason)
}

func TestWithdraw_SettleCompleted(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, st)
			ctx := context.Background()
			acct := f.signup(t)

			p, err := f.svc.Withdraw(ctx, acct.ID, 400, "wallet-1", "")
			require.NoError(t, err)
			require.Equal(t, store.StatusPending, p.Transaction.Status)
			require.Equal(t, int64(-400), p.Transaction.Amount)
			require.Equal(t, int64(600), p.Account.Balance)

			require.Len(t, f.queue.tasks, 1)
			require.Equal(t, taskname.WithdrawalSettle, f.queue.tasks[0].Type())
			var payload SettlePayload
			require.NoError(t, json.Unmarshal(f.queue.tasks[0].Payload(), &payload))
			require.Equal(t, p.Transaction.ID, payload.TransactionID)

			tr, err := f.svc.SettleWithdrawal(ctx, p.Transaction.ID, true)
			require.NoError(t, err)
			require.Equal(t, store.StatusCompleted, tr.Status)

			_, err = f.svc.SettleWithdrawal(ctx, p.Transaction.ID, false)
			require.True(t, errutil.Is(err, errutil.StatusConflict))

			got, err := f.svc.GetAccount(ctx, acct.ID)
			require.NoError(t, err)
			require.Equal(t, int64(600), got.Balance)
		})
	}
}

func TestWithdraw_FailedRefundsBalanceNotEarnings(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, st)
			ctx := context.Background()
			acct := f.signup(t)

			p, err := f.svc.Withdraw(ctx, acct.ID, 1000, "wallet-1", "")
			require.NoError(t, err)
			require.Zero(t, p.Account.Balance)

			_, err = f.svc.SettleWithdrawal(ctx, p.Transaction.ID, false)
			require.NoError(t, err)

			got, err := f.svc.GetAccount(ctx, acct.ID)
			require.NoError(t, err)
			require.Equal(t, int64(1000), got.Balance)
			require.Equal(t, int64(1000), got.TotalEarned)

			report, err := f.svc.VerifyChain(ctx, acct.ID)
			require.NoError(t, err)
			require.True(t, report.Valid)
			require.Equal(t, 3, report.Entries)
		})
	}
}

func TestWithdraw_Validation(t *testing.T) {
	f := newFixture(t, store.NewMemory())
	ctx := context.Background()
	acct := f.signup(t)

	_, err := f.svc.Withdraw(ctx, acct.ID, 10, "  ", "")
	require.True(t, errutil.Is(err, errutil.StatusBadRequest))

	_, err = f.svc.Withdraw(ctx, acct.ID, 5000, "wallet", "")
	require.True(t, errutil.Is(err, errutil.StatusInsufficientBalance))

	_, err = f.svc.Withdraw(ctx, acct.ID, -5, "wallet", "")
	require.True(t, errutil.Is(err, errutil.StatusInvalidAmount))
	require.Empty(t, f.queue.tasks)
}

type rejectingPayout struct{}

func (rejectingPayout) Send(context.Context, *store.Transaction, string) error {
	return errors.New("address blocked: " + ErrPayoutRejected.Error())
}

type blockedPayout struct{}

func (blockedPayout) Send(context.Context, *store.Transaction, string) error {
	return ErrPayoutRejected
}

func TestTaskHandler_SettleWithdrawal(t *testing.T) {
	f := newFixture(t, store.NewMemory())
	ctx := context.Background()
	acct := f.signup(t)

	p, err := f.svc.Withdraw(ctx, acct.ID, 300, "wallet-1", "")
	require.NoError(t, err)

	transient := NewTaskHandler(TaskHandlerParams{Ledger: f.svc, Payout: rejectingPayout{}, Logger: zap.NewNop()})
	require.Error(t, transient.HandleSettleWithdrawal(ctx, f.queue.tasks[0]))

	h := NewTaskHandler(TaskHandlerParams{Ledger: f.svc, Payout: blockedPayout{}, Logger: zap.NewNop()})
	require.NoError(t, h.HandleSettleWithdrawal(ctx, f.queue.tasks[0]))

	tr, err := f.svc.GetTransaction(ctx, p.Transaction.ID)
	require.NoError(t, err)
	require.Equal(t, store.StatusFailed, tr.Status)

	got, err := f.svc.GetAccount(ctx, acct.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1000), got.Balance)

	require.NoError(t, h.HandleSettleWithdrawal(ctx, f.queue.tasks[0]))

	missing, err := NewSettleTask(SettlePayload{TransactionID: "nope"})
	require.NoError(t, err)
	err = h.HandleSettleWithdrawal(ctx, missing)
	require.Error(t, err)
	require.NotErrorIs(t, err, asynq.SkipRetry)

	require.ErrorIs(t, h.HandleSettleWithdrawal(ctx, asynq.NewTask(taskname.WithdrawalSettle, []byte("{"))), asynq.SkipRetry)
}

// settlingEnqueuer hands each task straight to the handler, like an idle
// worker picking it up the moment it is enqueued.
type settlingEnqueuer struct {
	handler *TaskHandler
	errs    []error
}

func (q *settlingEnqueuer) Enqueue(ctx context.Context, t *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	q.errs = append(q.errs, q.handler.HandleSettleWithdrawal(ctx, t))
	return &asynq.TaskInfo{Type: t.Type()}, nil
}

func TestWithdraw_SettlesWhenWorkerRunsImmediately(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			cfg := &config.Config{}
			cfg.Rewards = config.Rewards{SignupBonus: 1000, Timezone: "UTC"}
			queue := &settlingEnqueuer{}
			svc := NewService(ServiceParams{
				Store:    st,
				IDs:      &testutil.SeqIDs{},
				Sequence: sequence.NewRandomGenerator(),
				Config:   cfg,
				Enqueuer: queue,
				Logger:   zap.NewNop(),
			})
			queue.handler = NewTaskHandler(TaskHandlerParams{Ledger: svc, Logger: zap.NewNop()})
			ctx := context.Background()

			p, err := svc.CreateAccount(ctx, AccountSeed{Username: "alice"})
			require.NoError(t, err)

			w, err := svc.Withdraw(ctx, p.Account.ID, 250, "wallet-1", "")
			require.NoError(t, err)
			require.Equal(t, []error{nil}, queue.errs)

			tr, err := svc.GetTransaction(ctx, w.Transaction.ID)
			require.NoError(t, err)
			require.Equal(t, store.StatusCompleted, tr.Status)

			got, err := svc.GetAccount(ctx, p.Account.ID)
			require.NoError(t, err)
			require.Equal(t, int64(750), got.Balance)
		})
	}
}

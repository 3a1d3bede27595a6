package ledger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"dulpton-point/pkg/config"
	"dulpton-point/pkg/db/pagination"
	"dulpton-point/pkg/errutil"
	"dulpton-point/pkg/gen"
	"dulpton-point/pkg/sequence"
	"dulpton-point/pkg/task"
	"dulpton-point/services/progression"
	"dulpton-point/services/store"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const (
	referralCodeAttempts = 5
	maxAddressLength     = 128
	signupReference      = "signup"
)

type Service struct {
	store    store.Store
	ids      gen.IDGenerator
	seq      sequence.Generator
	enqueuer task.Enqueuer
	rewards  config.Rewards
	loc      *time.Location
	now      func() time.Time
	logger   *zap.Logger
}

type ServiceParams struct {
	fx.In

	Store    store.Store
	IDs      gen.IDGenerator
	Sequence sequence.Generator
	Config   *config.Config
	Enqueuer task.Enqueuer    `optional:"true"`
	Logger   *zap.Logger      `optional:"true"`
	Now      func() time.Time `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	s := &Service{
		store:    p.Store,
		ids:      p.IDs,
		seq:      p.Sequence,
		enqueuer: p.Enqueuer,
		rewards:  p.Config.Rewards,
		loc:      p.Config.Rewards.Location(),
		now:      p.Now,
		logger:   p.Logger,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = zap.L()
	}
	return s
}

// Now is the service clock, truncated to what every database keeps.
func (s *Service) Now() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

func accountNotFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return errutil.NotFound("account not found", err)
	}
	return err
}

func (s *Service) GetAccount(ctx context.Context, id string) (*store.Account, error) {
	var out *store.Account
	err := s.store.View(ctx, func(tx store.Tx) error {
		a, err := tx.GetAccount(ctx, id)
		out = a
		return accountNotFound(err)
	})
	return out, err
}

func (s *Service) GetTransaction(ctx context.Context, id string) (*store.Transaction, error) {
	var out *store.Transaction
	err := s.store.View(ctx, func(tx store.Tx) error {
		t, err := tx.GetTransaction(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return errutil.NotFound("transaction not found", err)
		}
		out = t
		return err
	})
	return out, err
}

// CreateAccount retries the whole unit when a concurrent signup wins the
// referral code race.
func (s *Service) CreateAccount(ctx context.Context, seed AccountSeed) (*Posting, error) {
	var out *Posting
	var err error
	for range referralCodeAttempts {
		err = s.store.Update(ctx, func(tx store.Tx) error {
			p, _, err := s.CreateAccountTx(ctx, tx, seed)
			out = p
			return err
		})
		if !errors.Is(err, store.ErrDuplicate) {
			return out, err
		}
		s.logger.Warn("referral code collision, retrying", zap.Error(err))
	}
	return nil, errutil.Conflict("could not allocate a referral code", err)
}

// CreateAccountTx creates the account, its stats row and the signup bonus.
func (s *Service) CreateAccountTx(ctx context.Context, tx store.Tx, seed AccountSeed) (*Posting, *store.ProgressionStats, error) {
	code, err := s.freeReferralCode(ctx, tx)
	if err != nil {
		return nil, nil, err
	}

	now := s.Now()
	username := strings.TrimSpace(seed.Username)
	if username == "" {
		username = "player_" + strings.ToLower(code)
	}
	acct := &store.Account{
		ID:           s.ids.NewID(),
		Username:     username,
		Email:        strings.TrimSpace(seed.Email),
		ReferralCode: code,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := tx.CreateAccount(ctx, acct); err != nil {
		return nil, nil, err
	}

	stats := &store.ProgressionStats{AccountID: acct.ID, Level: 1, CreatedAt: now, UpdatedAt: now}
	progression.TouchLoginStreak(stats, now, s.loc)

	var posting *Posting
	if s.rewards.SignupBonus > 0 {
		posting, err = s.CreditTx(ctx, tx, Credit{
			AccountID:   acct.ID,
			Amount:      s.rewards.SignupBonus,
			Kind:        store.KindSignupBonus,
			Description: "Welcome bonus",
			Reference:   signupReference,
			Stats:       stats,
		})
		if err != nil {
			return nil, nil, err
		}
	} else {
		posting = &Posting{Account: acct}
	}

	if err := tx.CreateStats(ctx, stats); err != nil {
		return nil, nil, err
	}
	return posting, stats, nil
}

func (s *Service) freeReferralCode(ctx context.Context, tx store.Tx) (string, error) {
	for range referralCodeAttempts {
		code, err := s.seq.NextReferralCode(ctx)
		if err != nil {
			return "", err
		}
		_, err = tx.GetAccountByReferralCode(ctx, code)
		if errors.Is(err, store.ErrNotFound) {
			return code, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: referral code space exhausted", store.ErrDuplicate)
}

func (s *Service) ApplyCredit(ctx context.Context, c Credit) (*Posting, error) {
	var out *Posting
	err := s.store.Update(ctx, func(tx store.Tx) error {
		var err error
		out, err = s.CreditTx(ctx, tx, c)
		return err
	})
	return out, err
}

// CreditTx increments the balance and appends a completed transaction in the
// same unit of work.
func (s *Service) CreditTx(ctx context.Context, tx store.Tx, c Credit) (*Posting, error) {
	if c.Amount <= 0 {
		return nil, errutil.InvalidAmount("credit amount must be positive", nil)
	}
	if !c.Kind.Valid() || c.Kind == store.KindWithdraw {
		return nil, errutil.BadRequest("unsupported credit kind", nil, errutil.WithDetails(errutil.Detail{Field: "kind", Message: c.Kind.String()}))
	}

	acct, err := tx.GetAccount(ctx, c.AccountID)
	if err != nil {
		return nil, accountNotFound(err)
	}
	if err := s.checkReference(ctx, tx, c.AccountID, c.Reference); err != nil {
		return nil, err
	}

	earned := c.Kind.EarnClass() && !c.Refund
	acct.Balance += c.Amount
	if earned {
		acct.TotalEarned += c.Amount
	}

	meta := c.Metadata
	if c.Refund {
		meta = withEntry(meta, "refund", true)
	}
	tr, err := s.append(ctx, tx, acct, c.Kind, c.Amount, store.StatusCompleted, c.Description, meta, c.Reference)
	if err != nil {
		return nil, err
	}
	acct.UpdatedAt = tr.CreatedAt
	if err := tx.UpdateAccount(ctx, acct); err != nil {
		return nil, err
	}

	if earned {
		if err := s.recordEarnings(ctx, tx, c, tr.CreatedAt); err != nil {
			return nil, err
		}
	}
	return &Posting{Account: acct, Transaction: tr}, nil
}

func (s *Service) recordEarnings(ctx context.Context, tx store.Tx, c Credit, now time.Time) error {
	if c.Stats != nil {
		progression.RecordWeeklyEarnings(c.Stats, c.Amount, now, s.loc)
		return nil
	}
	stats, err := tx.GetStats(ctx, c.AccountID)
	if err != nil {
		return accountNotFound(err)
	}
	progression.RecordWeeklyEarnings(stats, c.Amount, now, s.loc)
	return tx.UpdateStats(ctx, stats)
}

func withEntry(m map[string]any, k string, v any) map[string]any {
	out := make(map[string]any, len(m)+1)
	for key, val := range m {
		out[key] = val
	}
	out[k] = v
	return out
}

func (s *Service) checkReference(ctx context.Context, tx store.Tx, accountID, reference string) error {
	if reference == "" {
		return nil
	}
	_, err := tx.FindTransactionByReference(ctx, accountID, reference)
	switch {
	case err == nil:
		return errutil.Conflict("reference already used", ErrDuplicateReference, errutil.WithDetails(errutil.Detail{Field: "reference", Message: reference}))
	case errors.Is(err, store.ErrNotFound):
		return nil
	default:
		return err
	}
}

func (s *Service) ApplyDebit(ctx context.Context, d Debit) (*Posting, error) {
	var out *Posting
	err := s.store.Update(ctx, func(tx store.Tx) error {
		var err error
		out, err = s.DebitTx(ctx, tx, d)
		return err
	})
	return out, err
}

// DebitTx never lets the balance go negative.
func (s *Service) DebitTx(ctx context.Context, tx store.Tx, d Debit) (*Posting, error) {
	if d.Amount <= 0 {
		return nil, errutil.InvalidAmount("debit amount must be positive", nil)
	}
	acct, err := tx.GetAccount(ctx, d.AccountID)
	if err != nil {
		return nil, accountNotFound(err)
	}
	if err := s.checkReference(ctx, tx, d.AccountID, d.Reference); err != nil {
		return nil, err
	}
	if acct.Balance-d.Amount < 0 {
		return nil, errutil.InsufficientBalance("insufficient balance", nil, errutil.WithDetails(
			errutil.Detail{Field: "amount", Message: fmt.Sprintf("requested %d, available %d", d.Amount, acct.Balance)}))
	}

	status := store.StatusCompleted
	if d.Pending {
		status = store.StatusPending
	}
	acct.Balance -= d.Amount
	tr, err := s.append(ctx, tx, acct, store.KindWithdraw, -d.Amount, status, d.Description, d.Metadata, d.Reference)
	if err != nil {
		return nil, err
	}
	acct.UpdatedAt = tr.CreatedAt
	if err := tx.UpdateAccount(ctx, acct); err != nil {
		return nil, err
	}
	return &Posting{Account: acct, Transaction: tr}, nil
}

// append links a new transaction to the account's chain. CreatedAt never goes
// backwards within a chain and ties fall back to the snowflake ID, so
// (CreatedAt, ID) order is chain order as long as a single node appends to
// the ledger. Several writers on one database need a per-account sequence
// column to order the chain instead.
func (s *Service) append(ctx context.Context, tx store.Tx, acct *store.Account, kind store.TransactionKind, amount int64, status store.TransactionStatus, description string, meta map[string]any, reference string) (*store.Transaction, error) {
	prevHash := GenesisHash
	createdAt := s.Now()

	last, err := tx.LastTransaction(ctx, acct.ID)
	switch {
	case err == nil:
		prevHash = last.Hash
		if createdAt.Before(last.CreatedAt) {
			createdAt = last.CreatedAt.UTC()
		}
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}

	number, err := s.seq.NextTransactionNumber(ctx, createdAt)
	if err != nil {
		return nil, err
	}

	tr := &store.Transaction{
		ID:           s.ids.NewID(),
		AccountID:    acct.ID,
		Number:       number,
		Kind:         kind,
		Amount:       amount,
		BalanceAfter: acct.Balance,
		Description:  description,
		Status:       status,
		PreviousHash: prevHash,
		CreatedAt:    createdAt,
		UpdatedAt:    createdAt,
	}
	if reference != "" {
		tr.ReferenceID = &reference
	}
	if len(meta) > 0 {
		tr.Metadata = datatypes.JSONMap(meta)
	}
	tr.Hash = ComputeHash(tr)

	if err := tx.AppendTransaction(ctx, tr); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, errutil.Conflict("reference already used", ErrDuplicateReference)
		}
		return nil, err
	}
	return tr, nil
}

type TransactionPage struct {
	Data     []store.Transaction `json:"data"`
	PageInfo pagination.PageInfo `json:"page_info"`
}

// ListTransactions returns most recent first.
func (s *Service) ListTransactions(ctx context.Context, accountID string, p pagination.Pagination) (*TransactionPage, error) {
	p = p.Normalize()
	opts := store.ListOptions{Limit: p.Limit + 1}
	if p.Cursor != "" {
		c, err := pagination.DecodeCursor(p.Cursor)
		if err != nil {
			return nil, errutil.BadRequest("invalid cursor", err)
		}
		at, err := c.Time()
		if err != nil {
			return nil, errutil.BadRequest("invalid cursor", err)
		}
		opts.After = &store.Cursor{CreatedAt: at, ID: c.ID}
	}

	var rows []store.Transaction
	err := s.store.View(ctx, func(tx store.Tx) error {
		if _, err := tx.GetAccount(ctx, accountID); err != nil {
			return accountNotFound(err)
		}
		var err error
		rows, err = tx.ListTransactions(ctx, accountID, opts)
		return err
	})
	if err != nil {
		return nil, err
	}

	data, info, err := pagination.BuildCursorPageInfo(rows, p.Limit, func(t store.Transaction) pagination.Cursor {
		return pagination.NewCursor(t.CreatedAt, t.ID)
	})
	if err != nil {
		return nil, err
	}
	if data == nil {
		data = []store.Transaction{}
	}
	return &TransactionPage{Data: data, PageInfo: info}, nil
}

func (s *Service) VerifyChain(ctx context.Context, accountID string) (ChainReport, error) {
	var rows []store.Transaction
	err := s.store.View(ctx, func(tx store.Tx) error {
		if _, err := tx.GetAccount(ctx, accountID); err != nil {
			return accountNotFound(err)
		}
		var err error
		rows, err = tx.ListTransactions(ctx, accountID, store.ListOptions{})
		return err
	})
	if err != nil {
		return ChainReport{}, err
	}
	slices.Reverse(rows)

	report := Verify(rows)
	if !report.Valid {
		s.logger.Warn("transaction chain broken",
			zap.String("account_id", accountID),
			zap.String("transaction_id", report.BrokenAt),
			zap.String("reason", report.Reason))
	}
	return report, nil
}

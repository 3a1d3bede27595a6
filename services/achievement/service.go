package achievement

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"dulpton-point/pkg/errutil"
	"dulpton-point/services/catalog"
	"dulpton-point/services/ledger"
	"dulpton-point/services/store"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Reference returns the ledger idempotency key of an achievement claim.
func Reference(achievementID string) string {
	return "achievement:" + achievementID
}

type Status struct {
	catalog.Achievement
	Unlocked   bool       `json:"unlocked"`
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
	Claimed    bool       `json:"claimed"`
	ClaimedAt  *time.Time `json:"claimed_at,omitempty"`
}

// MarshalJSON flattens the definition next to the unlock state; the embedded
// definition's own MarshalJSON would otherwise hide the state fields.
func (s Status) MarshalJSON() ([]byte, error) {
	type plain catalog.Achievement
	return json.Marshal(struct {
		plain
		Requirement catalog.RequirementView `json:"requirement"`
		Unlocked    bool                    `json:"unlocked"`
		UnlockedAt  *time.Time              `json:"unlocked_at,omitempty"`
		Claimed     bool                    `json:"claimed"`
		ClaimedAt   *time.Time              `json:"claimed_at,omitempty"`
	}{plain(s.Achievement), catalog.Describe(s.Requirement), s.Unlocked, s.UnlockedAt, s.Claimed, s.ClaimedAt})
}

type ClaimResult struct {
	Unlock   store.AchievementUnlock   `json:"unlock"`
	Reward   int64                     `json:"reward"`
	Posting  *ledger.Posting           `json:"posting,omitempty"`
	Unlocked []store.AchievementUnlock `json:"unlocked"`
}

type Service struct {
	store     store.Store
	catalog   *catalog.Catalog
	evaluator *Evaluator
	ledger    *ledger.Service
	logger    *zap.Logger
}

type ServiceParams struct {
	fx.In

	Store     store.Store
	Catalog   *catalog.Catalog
	Evaluator *Evaluator
	Ledger    *ledger.Service
	Logger    *zap.Logger `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	s := &Service{
		store:     p.Store,
		catalog:   p.Catalog,
		evaluator: p.Evaluator,
		ledger:    p.Ledger,
		logger:    p.Logger,
	}
	if s.logger == nil {
		s.logger = zap.L()
	}
	return s
}

func (s *Service) Evaluator() *Evaluator { return s.evaluator }

// Claim runs ClaimTx in its own unit of work and persists the stats.
func (s *Service) Claim(ctx context.Context, accountID, achievementID string) (*ClaimResult, error) {
	var out *ClaimResult
	err := s.store.Update(ctx, func(tx store.Tx) error {
		stats, err := tx.GetStats(ctx, accountID)
		if errors.Is(err, store.ErrNotFound) {
			return errutil.NotFound("account not found", err)
		}
		if err != nil {
			return err
		}
		out, err = s.ClaimTx(ctx, tx, stats, achievementID)
		if err != nil {
			return err
		}
		return tx.UpdateStats(ctx, stats)
	})
	return out, err
}

// ClaimTx flips the claim flag, credits the reward and re-evaluates the
// global achievements. The caller persists stats.
func (s *Service) ClaimTx(ctx context.Context, tx store.Tx, stats *store.ProgressionStats, achievementID string) (*ClaimResult, error) {
	accountID := stats.AccountID
	def, ok := s.catalog.Achievement(achievementID)
	if !ok {
		return nil, errutil.UnknownEntity("achievement not found", nil,
			errutil.WithDetails(errutil.Detail{Field: "achievement_id", Message: achievementID}))
	}

	unlock, err := tx.GetUnlock(ctx, accountID, achievementID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errutil.NotEligible("achievement is not unlocked", err)
	}
	if err != nil {
		return nil, err
	}

	now := s.ledger.Now()
	flipped, err := tx.MarkClaimed(ctx, accountID, achievementID, now)
	if err != nil {
		return nil, err
	}
	if !flipped {
		return nil, errutil.AlreadyClaimed("achievement already claimed", nil)
	}
	unlock.Claimed, unlock.ClaimedAt = true, &now

	res := &ClaimResult{Unlock: *unlock, Reward: def.Reward}
	if def.Reward > 0 {
		res.Posting, err = s.ledger.CreditTx(ctx, tx, ledger.Credit{
			AccountID:   accountID,
			Amount:      def.Reward,
			Kind:        store.KindEarn,
			Description: "Achievement: " + def.Title,
			Metadata:    map[string]any{"achievement_id": def.ID},
			Reference:   Reference(def.ID),
			Stats:       stats,
		})
		if err != nil {
			if errors.Is(err, ledger.ErrDuplicateReference) {
				return nil, errutil.AlreadyClaimed("achievement already claimed", err)
			}
			return nil, err
		}
	}

	acct := s.account(res)
	if acct == nil {
		if acct, err = tx.GetAccount(ctx, accountID); err != nil {
			return nil, err
		}
	}
	res.Unlocked, err = s.evaluator.EvaluateTx(ctx, tx, Facts{Account: acct, Stats: stats})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Service) account(res *ClaimResult) *store.Account {
	if res.Posting == nil {
		return nil
	}
	return res.Posting.Account
}

// List joins every definition with the account's unlocks.
func (s *Service) List(ctx context.Context, accountID string) ([]Status, error) {
	var unlocks []store.AchievementUnlock
	err := s.store.View(ctx, func(tx store.Tx) error {
		if _, err := tx.GetAccount(ctx, accountID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return errutil.NotFound("account not found", err)
			}
			return err
		}
		var err error
		unlocks, err = tx.ListUnlocks(ctx, accountID)
		return err
	})
	if err != nil {
		return nil, err
	}

	byID := make(map[string]store.AchievementUnlock, len(unlocks))
	for _, u := range unlocks {
		byID[u.AchievementID] = u
	}

	defs := s.catalog.Achievements()
	out := make([]Status, 0, len(defs))
	for _, a := range defs {
		st := Status{Achievement: a}
		if u, ok := byID[a.ID]; ok {
			at := u.UnlockedAt
			st.Unlocked, st.UnlockedAt = true, &at
			st.Claimed, st.ClaimedAt = u.Claimed, u.ClaimedAt
		}
		out = append(out, st)
	}
	return out, nil
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"dulpton-point/pkg/errutil"
	"dulpton-point/services/achievement"
	"dulpton-point/services/catalog"
	"dulpton-point/services/events"
	"dulpton-point/services/ledger"
	"dulpton-point/services/progression"
	"dulpton-point/services/quest"
	"dulpton-point/services/reward"
	"dulpton-point/services/store"

	"go.uber.org/zap"
)

const (
	ActionCompleteTask     = "complete_task"
	ActionPlayGame         = "play_game"
	ActionCompleteGame     = "complete_game"
	ActionSpin             = "spin"
	ActionClaimAchievement = "claim_achievement"
	ActionClaimQuest       = "claim_quest"
	ActionWithdraw         = "withdraw"

	signupAttempts    = 5
	minUsernameLength = 3
	maxUsernameLength = 32
)

type SignupRequest struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	ReferralCode string `json:"referral_code"`
}

type SignupResult struct {
	Account  *store.Account            `json:"account"`
	Stats    *store.ProgressionStats   `json:"stats"`
	Referral *ReferralResult           `json:"referral,omitempty"`
	Unlocked []store.AchievementUnlock `json:"unlocked"`
}

// Signup creates the account with its signup bonus, applies an optional
// referral code and evaluates the global achievements.
func (e *Engine) Signup(ctx context.Context, req SignupRequest) (*SignupResult, error) {
	var (
		out *SignupResult
		err error
	)
	for range signupAttempts {
		out, _, err = execute(ctx, e, "signup", "", "", func(ctx context.Context, u *unit) (*SignupResult, error) {
			posting, stats, err := e.ledger.CreateAccountTx(ctx, u.tx, ledger.AccountSeed{Username: req.Username, Email: req.Email})
			if err != nil {
				return nil, err
			}
			// Signup counts as the first login of the streak.
			e.progression.BumpQuest(stats, catalog.QuestLoginStreak, stats.LoginStreak, u.now)
			if posting.Transaction != nil {
				e.progression.BumpQuest(stats, catalog.QuestEarn, posting.Transaction.Amount, u.now)
			}
			e.posted(u, posting)
			acct := posting.Account
			res := &SignupResult{Account: acct, Stats: stats}

			if code := strings.TrimSpace(req.ReferralCode); code != "" {
				if res.Referral, err = e.applyReferral(ctx, u, acct, code); err != nil {
					return nil, err
				}
			}

			if res.Unlocked, err = e.evaluate(ctx, u, achievement.Facts{Account: acct, Stats: stats}); err != nil {
				return nil, err
			}
			res.Unlocked = nonNil(res.Unlocked)
			return res, e.saveStats(ctx, u, stats)
		})
		if !errors.Is(err, store.ErrDuplicate) {
			return out, err
		}
		e.logger.Warn("signup collided on a unique key, retrying", zap.Error(err))
	}
	return nil, errutil.Conflict("could not create account", err)
}

type CheckInResult struct {
	Counted        bool                      `json:"counted"`
	LoginStreak    int64                     `json:"login_streak"`
	MaxLoginStreak int64                     `json:"max_login_streak"`
	Unlocked       []store.AchievementUnlock `json:"unlocked"`
}

// CheckIn records a daily login. A second check-in on the same day changes
// nothing.
func (e *Engine) CheckIn(ctx context.Context, accountID string) (*CheckInResult, error) {
	out, _, err := execute(ctx, e, "check_in", accountID, "", func(ctx context.Context, u *unit) (*CheckInResult, error) {
		acct, stats, err := e.load(ctx, u.tx, accountID)
		if err != nil {
			return nil, err
		}
		res := &CheckInResult{Counted: e.progression.TouchLoginStreak(stats, u.now)}
		if res.Counted {
			e.progression.BumpQuest(stats, catalog.QuestLoginStreak, stats.LoginStreak, u.now)
		}
		res.LoginStreak, res.MaxLoginStreak = stats.LoginStreak, stats.MaxLoginStreak

		if res.Unlocked, err = e.evaluate(ctx, u, achievement.Facts{Account: acct, Stats: stats}); err != nil {
			return nil, err
		}
		res.Unlocked = nonNil(res.Unlocked)
		return res, e.saveStats(ctx, u, stats)
	})
	return out, err
}

// RewardResult is the outcome of an earning action.
type RewardResult struct {
	Reward       int64                     `json:"reward"`
	XP           int64                     `json:"xp"`
	Balance      int64                     `json:"balance"`
	MultiplierBP int64                     `json:"multiplier_bp"`
	Level        progression.LevelChange   `json:"level"`
	Transaction  *store.Transaction        `json:"transaction,omitempty"`
	Unlocked     []store.AchievementUnlock `json:"unlocked"`
	Replayed     bool                      `json:"replayed"`
}

// multipliers returns the level and active multipliers of stats at now.
func (e *Engine) multipliers(stats *store.ProgressionStats, now time.Time) (int64, int64) {
	return e.progression.LevelBP(stats), progression.ActiveMultiplier(stats, now)
}

func combinedBP(levelBP, activeBP int64) int64 {
	return levelBP * activeBP / reward.BaseBP
}

func (e *Engine) CompleteTask(ctx context.Context, accountID, taskID, key string) (*RewardResult, error) {
	out, replayed, err := execute(ctx, e, ActionCompleteTask, accountID, key, func(ctx context.Context, u *unit) (*RewardResult, error) {
		task, ok := e.catalog.Task(taskID)
		if !ok {
			return nil, errutil.NotFound("task not found", nil, errutil.WithDetails(errutil.Detail{Field: "task_id", Message: taskID}))
		}
		acct, stats, err := e.load(ctx, u.tx, accountID)
		if err != nil {
			return nil, err
		}

		levelBP, activeBP := e.multipliers(stats, u.now)
		amount, err := e.calc.TaskReward(task, u.now, levelBP, activeBP)
		if err != nil {
			return nil, err
		}
		posting, err := e.credit(ctx, u, stats, ledger.Credit{
			AccountID:   acct.ID,
			Amount:      amount,
			Kind:        store.KindEarn,
			Description: "Task: " + task.Title,
			Metadata:    map[string]any{"task_id": task.ID, "base_reward": task.Reward, "multiplier_bp": combinedBP(levelBP, activeBP)},
			Reference:   e.taskReference(task, u.now),
		})
		if errors.Is(err, ledger.ErrDuplicateReference) {
			return nil, errutil.AlreadyClaimed("task already completed", err,
				errutil.WithDetails(errutil.Detail{Field: "task_id", Message: task.ID}))
		}
		if err != nil {
			return nil, err
		}

		stats.TasksCompleted++
		change := e.addXP(u, stats, reward.TaskXP)
		e.progression.BumpQuest(stats, catalog.QuestCompleteTasks, 1, u.now)

		res := &RewardResult{
			Reward:       amount,
			XP:           reward.TaskXP,
			Balance:      posting.Account.Balance,
			MultiplierBP: combinedBP(levelBP, activeBP),
			Level:        change,
			Transaction:  posting.Transaction,
		}
		if res.Unlocked, err = e.evaluate(ctx, u, achievement.Facts{Account: posting.Account, Stats: stats}); err != nil {
			return nil, err
		}
		res.Unlocked = nonNil(res.Unlocked)
		return res, e.saveStats(ctx, u, stats)
	})
	if out != nil {
		out.Replayed = replayed
	}
	return out, err
}

// taskReference is the ledger reference of a completion: one per account, or
// one per local day for repeatable tasks.
func (e *Engine) taskReference(task catalog.Task, now time.Time) string {
	if !task.Repeatable() {
		return "task:" + task.ID
	}
	start, _ := quest.Window(catalog.Daily, now, e.quests.Location())
	return fmt.Sprintf("task:%s:%d", task.ID, start.Unix())
}

// PlayGame rewards a play without a score.
func (e *Engine) PlayGame(ctx context.Context, accountID, gameID, key string) (*RewardResult, error) {
	out, replayed, err := execute(ctx, e, ActionPlayGame, accountID, key, func(ctx context.Context, u *unit) (*RewardResult, error) {
		acct, stats, err := e.load(ctx, u.tx, accountID)
		if err != nil {
			return nil, err
		}

		levelBP, activeBP := e.multipliers(stats, u.now)
		amount := reward.ApplyMultipliers(e.calc.PlayReward(gameID), levelBP, activeBP)
		title := gameID
		if g, ok := e.catalog.Game(gameID); ok {
			title = g.Title
		}
		posting, err := e.credit(ctx, u, stats, ledger.Credit{
			AccountID:   acct.ID,
			Amount:      amount,
			Kind:        store.KindEarn,
			Description: "Played " + title,
			Metadata:    map[string]any{"game_id": gameID, "multiplier_bp": combinedBP(levelBP, activeBP)},
			Reference:   reference(ActionPlayGame, key),
		})
		if err != nil {
			return nil, err
		}

		stats.GamesPlayed++
		xp := reward.PlayXP(amount)
		res := &RewardResult{
			Reward:       amount,
			XP:           xp,
			Balance:      posting.Account.Balance,
			MultiplierBP: combinedBP(levelBP, activeBP),
			Level:        e.addXP(u, stats, xp),
			Transaction:  posting.Transaction,
		}
		if res.Unlocked, err = e.evaluate(ctx, u, achievement.Facts{Account: posting.Account, Stats: stats}); err != nil {
			return nil, err
		}
		res.Unlocked = nonNil(res.Unlocked)
		return res, e.saveStats(ctx, u, stats)
	})
	if out != nil {
		out.Replayed = replayed
	}
	return out, err
}

type GameCompletion struct {
	GameID        string         `json:"game_id"`
	Score         int64          `json:"score"`
	TimeCompleted *int64         `json:"time_completed,omitempty"`
	Difficulty    string         `json:"difficulty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

type GameResult struct {
	RewardResult
	Score store.GameScore `json:"score"`
	Stats store.GameStats `json:"stats"`
}

// CompleteGame records a scored play. The reward is computed here from the
// clamped score; the client never supplies it.
func (e *Engine) CompleteGame(ctx context.Context, accountID string, g GameCompletion, key string) (*GameResult, error) {
	out, replayed, err := execute(ctx, e, ActionCompleteGame, accountID, key, func(ctx context.Context, u *unit) (*GameResult, error) {
		difficulty := strings.ToLower(strings.TrimSpace(g.Difficulty))
		if difficulty == "" {
			difficulty = string(catalog.DifficultyMedium)
		}
		if g.TimeCompleted != nil && *g.TimeCompleted < 0 {
			return nil, errutil.BadRequest("time_completed must not be negative", nil)
		}
		base, err := e.calc.GameReward(g.GameID, g.Score, difficulty)
		if err != nil {
			return nil, err
		}
		game, _ := e.catalog.Game(g.GameID)

		acct, stats, err := e.load(ctx, u.tx, accountID)
		if err != nil {
			return nil, err
		}
		levelBP, activeBP := e.multipliers(stats, u.now)
		amount := reward.ApplyMultipliers(base, levelBP, activeBP)

		score := &store.GameScore{
			ID:            e.ids.NewID(),
			AccountID:     acct.ID,
			GameID:        game.ID,
			Score:         reward.ClampScore(game, g.Score),
			TimeCompleted: g.TimeCompleted,
			Difficulty:    difficulty,
			Reward:        amount,
			Metadata:      g.Metadata,
			CreatedAt:     u.now,
		}
		folded, err := e.progression.RecordGameScoreTx(ctx, u.tx, score)
		if err != nil {
			return nil, err
		}

		posting, err := e.credit(ctx, u, stats, ledger.Credit{
			AccountID:   acct.ID,
			Amount:      amount,
			Kind:        store.KindEarn,
			Description: fmt.Sprintf("%s score %d", game.Title, score.Score),
			Metadata:    map[string]any{"game_id": game.ID, "score_id": score.ID, "difficulty": difficulty, "multiplier_bp": combinedBP(levelBP, activeBP)},
			Reference:   reference(ActionCompleteGame, key),
		})
		if err != nil {
			return nil, err
		}

		stats.GamesPlayed++
		xp := reward.ScoreXP(amount)
		res := &GameResult{
			RewardResult: RewardResult{
				Reward:       amount,
				XP:           xp,
				Balance:      posting.Account.Balance,
				MultiplierBP: combinedBP(levelBP, activeBP),
				Level:        e.addXP(u, stats, xp),
				Transaction:  posting.Transaction,
			},
			Score: *score,
			Stats: *folded,
		}
		u.emit(acct.ID, events.KindGameScore, events.GameScore{
			GameID:    game.ID,
			Score:     score.Score,
			BestScore: folded.BestScore,
			Reward:    amount,
		})

		facts := achievement.Facts{Account: posting.Account, Stats: stats, GameID: game.ID, Latest: score, Game: folded}
		if res.Unlocked, err = e.evaluate(ctx, u, facts); err != nil {
			return nil, err
		}
		res.Unlocked = nonNil(res.Unlocked)
		return res, e.saveStats(ctx, u, stats)
	})
	if out != nil {
		out.Replayed = replayed
	}
	return out, err
}

type SpinResult struct {
	Reward     reward.SpinReward         `json:"reward"`
	Balance    int64                     `json:"balance"`
	Level      progression.LevelChange   `json:"level"`
	LootBoxID  string                    `json:"loot_box_id,omitempty"`
	NextSpinAt time.Time                 `json:"next_spin_at"`
	Unlocked   []store.AchievementUnlock `json:"unlocked"`
	Replayed   bool                      `json:"replayed"`
}

// Spin draws one wheel outcome. DULP won on the wheel is not multiplied.
func (e *Engine) Spin(ctx context.Context, accountID, key string) (*SpinResult, error) {
	out, replayed, err := execute(ctx, e, ActionSpin, accountID, key, func(ctx context.Context, u *unit) (*SpinResult, error) {
		acct, stats, err := e.load(ctx, u.tx, accountID)
		if err != nil {
			return nil, err
		}
		if ok, next := reward.SpinEligible(stats.LastSpinAt, u.now); !ok {
			return nil, errutil.NotEligible("spin is on cooldown", nil,
				errutil.WithDetails(errutil.Detail{Field: "next_spin_at", Message: next.UTC().Format(time.RFC3339)}))
		}

		r := e.spinner.Spin()
		res := &SpinResult{Reward: r, Balance: acct.Balance}
		res.Level = e.progression.ApplyXP(stats, 0)

		switch r.Kind {
		case reward.OutcomeDULP:
			posting, err := e.credit(ctx, u, stats, ledger.Credit{
				AccountID:   acct.ID,
				Amount:      r.Amount,
				Kind:        store.KindEarn,
				Description: "Spin: " + r.Label,
				Metadata:    map[string]any{"outcome": string(r.Kind), "rarity": string(r.Rarity)},
				Reference:   reference(ActionSpin, key),
			})
			if err != nil {
				return nil, err
			}
			acct = posting.Account
			res.Balance = acct.Balance
		case reward.OutcomeXP:
			res.Level = e.addXP(u, stats, r.Amount)
		case reward.OutcomeMultiplier:
			progression.SetMultiplier(stats, r.MultiplierBP, r.Duration, u.now)
		case reward.OutcomeLootBox:
			res.LootBoxID = e.ids.NewID()
			stats.AddLootBox(res.LootBoxID)
		case reward.OutcomeNothing:
		}

		at := u.now
		stats.LastSpinAt = &at
		stats.SpinsCompleted++
		e.progression.BumpQuest(stats, catalog.QuestSpinWheel, 1, u.now)
		_, res.NextSpinAt = reward.SpinEligible(stats.LastSpinAt, u.now)

		u.emit(acct.ID, events.KindSpinResult, events.SpinResult{
			Outcome: string(r.Kind),
			Label:   r.Label,
			Amount:  r.Amount,
			Rarity:  string(r.Rarity),
		})
		rarity := string(r.Rarity)
		u.onCommit(func() { spinsTotal.WithLabelValues(rarity).Inc() })

		if res.Unlocked, err = e.evaluate(ctx, u, achievement.Facts{Account: acct, Stats: stats}); err != nil {
			return nil, err
		}
		res.Unlocked = nonNil(res.Unlocked)
		return res, e.saveStats(ctx, u, stats)
	})
	if out != nil {
		out.Replayed = replayed
	}
	return out, err
}

type ReferralResult struct {
	ReferrerID string                    `json:"referrer_id"`
	Bonus      int64                     `json:"bonus"`
	Unlocked   []store.AchievementUnlock `json:"referrer_unlocked"`
}

// ApplyReferral links accountID to the owner of code and pays the referrer.
func (e *Engine) ApplyReferral(ctx context.Context, accountID, code string) (*ReferralResult, error) {
	out, _, err := execute(ctx, e, "apply_referral", accountID, "", func(ctx context.Context, u *unit) (*ReferralResult, error) {
		acct, _, err := e.load(ctx, u.tx, accountID)
		if err != nil {
			return nil, err
		}
		return e.applyReferral(ctx, u, acct, strings.TrimSpace(code))
	})
	return out, err
}

// applyReferral updates both accounts in the caller's unit of work.
func (e *Engine) applyReferral(ctx context.Context, u *unit, acct *store.Account, code string) (*ReferralResult, error) {
	if code == "" {
		return nil, errutil.BadRequest("referral code is required", nil)
	}
	referrer, err := u.tx.GetAccountByReferralCode(ctx, strings.ToUpper(code))
	if errors.Is(err, store.ErrNotFound) {
		return nil, errutil.NotFound("referral code not found", err)
	}
	if err != nil {
		return nil, err
	}
	if acct.ReferredBy != nil {
		return nil, errutil.NotEligible("account was already referred", nil)
	}
	if referrer.ID == acct.ID {
		return nil, errutil.NotEligible("cannot use your own referral code", nil)
	}

	acct.ReferredBy = &referrer.ID
	acct.UpdatedAt = u.now
	if err := u.tx.UpdateAccount(ctx, acct); err != nil {
		return nil, err
	}

	rstats, err := u.tx.GetStats(ctx, referrer.ID)
	if err != nil {
		return nil, accountNotFound(err)
	}
	res := &ReferralResult{ReferrerID: referrer.ID, Bonus: e.calc.ReferralBonus()}
	if res.Bonus > 0 {
		posting, err := e.credit(ctx, u, rstats, ledger.Credit{
			AccountID:   referrer.ID,
			Amount:      res.Bonus,
			Kind:        store.KindReferralBonus,
			Description: "Referral bonus for " + acct.Username,
			Metadata:    map[string]any{"referee_id": acct.ID},
			Reference:   "referral:" + acct.ID,
		})
		if err != nil {
			return nil, err
		}
		referrer = posting.Account
	}
	referrer.ReferralCount++
	referrer.ReferralEarnings += res.Bonus
	referrer.UpdatedAt = u.now
	if err := u.tx.UpdateAccount(ctx, referrer); err != nil {
		return nil, err
	}

	e.progression.BumpQuest(rstats, catalog.QuestReferFriends, 1, u.now)
	if res.Unlocked, err = e.evaluate(ctx, u, achievement.Facts{Account: referrer, Stats: rstats}); err != nil {
		return nil, err
	}
	res.Unlocked = nonNil(res.Unlocked)
	return res, e.saveStats(ctx, u, rstats)
}

type AchievementClaim struct {
	*achievement.ClaimResult
	Balance  int64 `json:"balance"`
	Replayed bool  `json:"replayed"`
}

func (e *Engine) ClaimAchievement(ctx context.Context, accountID, achievementID, key string) (*AchievementClaim, error) {
	out, replayed, err := execute(ctx, e, ActionClaimAchievement, accountID, key, func(ctx context.Context, u *unit) (*AchievementClaim, error) {
		acct, stats, err := e.load(ctx, u.tx, accountID)
		if err != nil {
			return nil, err
		}
		claim, err := e.achievements.ClaimTx(ctx, u.tx, stats, achievementID)
		if err != nil {
			return nil, err
		}
		res := &AchievementClaim{ClaimResult: claim, Balance: acct.Balance}
		if claim.Posting != nil {
			e.progression.BumpQuest(stats, catalog.QuestEarn, claim.Reward, u.now)
			e.posted(u, claim.Posting)
			res.Balance = claim.Posting.Account.Balance
		}
		claim.Unlocked = nonNil(claim.Unlocked)
		e.announce(u, accountID, claim.Unlocked)
		return res, e.saveStats(ctx, u, stats)
	})
	if out != nil {
		out.Replayed = replayed
	}
	return out, err
}

type QuestClaim struct {
	Quest    quest.View                `json:"quest"`
	Reward   int64                     `json:"reward"`
	XP       int64                     `json:"xp"`
	Balance  int64                     `json:"balance"`
	Level    progression.LevelChange   `json:"level"`
	Unlocked []store.AchievementUnlock `json:"unlocked"`
	Replayed bool                      `json:"replayed"`
}

// ClaimQuest pays a completed quest once per window.
func (e *Engine) ClaimQuest(ctx context.Context, accountID, questID, key string) (*QuestClaim, error) {
	out, replayed, err := execute(ctx, e, ActionClaimQuest, accountID, key, func(ctx context.Context, u *unit) (*QuestClaim, error) {
		acct, stats, err := e.load(ctx, u.tx, accountID)
		if err != nil {
			return nil, err
		}
		v, err := e.quests.ViewTx(ctx, u.tx, stats, questID, u.now)
		if err != nil {
			return nil, err
		}
		switch {
		case v.Claimed:
			return nil, errutil.AlreadyClaimed("quest already claimed for this window", nil)
		case !v.Completed:
			return nil, errutil.NotEligible("quest is not completed", nil,
				errutil.WithDetails(errutil.Detail{Field: "progress", Message: fmt.Sprintf("%d/%d", v.Progress, v.Target)}))
		}

		quest.MarkClaimed(stats, v.ID, v.WindowStart)
		res := &QuestClaim{Reward: v.Reward, XP: v.XPReward, Balance: acct.Balance}
		if v.Reward > 0 {
			posting, err := e.credit(ctx, u, stats, ledger.Credit{
				AccountID:   acct.ID,
				Amount:      v.Reward,
				Kind:        store.KindEarn,
				Description: "Quest: " + v.Title,
				Metadata:    map[string]any{"quest_id": v.ID},
				Reference:   quest.ClaimReference(v.ID, v.WindowStart),
			})
			if errors.Is(err, ledger.ErrDuplicateReference) {
				return nil, errutil.AlreadyClaimed("quest already claimed for this window", err)
			}
			if err != nil {
				return nil, err
			}
			acct = posting.Account
			res.Balance = acct.Balance
		}
		res.Level = e.addXP(u, stats, v.XPReward)
		v.Claimed = true
		res.Quest = v

		if res.Unlocked, err = e.evaluate(ctx, u, achievement.Facts{Account: acct, Stats: stats}); err != nil {
			return nil, err
		}
		res.Unlocked = nonNil(res.Unlocked)
		return res, e.saveStats(ctx, u, stats)
	})
	if out != nil {
		out.Replayed = replayed
	}
	return out, err
}

type WithdrawalResult struct {
	*ledger.Posting
	Replayed bool `json:"replayed"`
}

func (e *Engine) Withdraw(ctx context.Context, accountID string, amount int64, address, key string) (*WithdrawalResult, error) {
	out, replayed, err := execute(ctx, e, ActionWithdraw, accountID, key, func(ctx context.Context, u *unit) (*WithdrawalResult, error) {
		p, err := e.ledger.WithdrawTx(ctx, u.tx, accountID, amount, address, reference(ActionWithdraw, key))
		if err != nil {
			return nil, err
		}
		e.posted(u, p)
		u.onCommit(func() {
			if err := e.ledger.ScheduleSettlement(context.WithoutCancel(ctx), p); err != nil {
				e.logger.Error("withdrawal committed but settlement was not scheduled",
					zap.String("transaction_id", p.Transaction.ID), zap.Error(err))
			}
		})
		return &WithdrawalResult{Posting: p}, nil
	})
	if out != nil {
		out.Replayed = replayed
	}
	return out, err
}

func (e *Engine) UpdateProfile(ctx context.Context, accountID, username string) (*store.Account, error) {
	out, _, err := execute(ctx, e, "update_profile", accountID, "", func(ctx context.Context, u *unit) (*store.Account, error) {
		username := strings.TrimSpace(username)
		if n := utf8.RuneCountInString(username); n < minUsernameLength || n > maxUsernameLength {
			return nil, errutil.BadRequest("invalid username", nil,
				errutil.WithDetails(errutil.Detail{Field: "username", Message: fmt.Sprintf("must be %d-%d characters", minUsernameLength, maxUsernameLength)}))
		}
		acct, err := u.tx.GetAccount(ctx, accountID)
		if err != nil {
			return nil, accountNotFound(err)
		}
		acct.Username = username
		acct.UpdatedAt = u.now
		return acct, u.tx.UpdateAccount(ctx, acct)
	})
	return out, err
}

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Gorm is the durable Store. Account and stats reads inside Update take row
// locks on dialects that support SELECT ... FOR UPDATE.
type Gorm struct {
	db   *gorm.DB
	lock bool
}

func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{db: db, lock: db.Dialector.Name() != "sqlite"}
}

// Migrate creates or updates every table the store needs.
func (g *Gorm) Migrate(ctx context.Context) error {
	return g.db.WithContext(ctx).AutoMigrate(Models()...)
}

func (g *Gorm) Update(ctx context.Context, fn func(tx Tx) error) error {
	if g == nil || g.db == nil {
		return gorm.ErrInvalidDB
	}
	return g.db.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(&gormTx{db: db, lock: g.lock, write: true})
	})
}

func (g *Gorm) View(ctx context.Context, fn func(tx Tx) error) error {
	if g == nil || g.db == nil {
		return gorm.ErrInvalidDB
	}
	return fn(&gormTx{db: g.db.WithContext(ctx)})
}

func (g *Gorm) Ping(ctx context.Context) error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

type gormTx struct {
	db    *gorm.DB
	lock  bool
	write bool
}

func (t *gormTx) q(ctx context.Context) *gorm.DB {
	return t.db.WithContext(ctx)
}

// locked adds FOR UPDATE to reads performed by a writer.
func (t *gormTx) locked(ctx context.Context) *gorm.DB {
	q := t.q(ctx)
	if t.write && t.lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return q
}

func (t *gormTx) writable() error {
	if !t.write {
		return ErrReadOnly
	}
	return nil
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	default:
		return err
	}
}

func first[T any](q *gorm.DB) (*T, error) {
	var out T
	if err := q.First(&out).Error; err != nil {
		return nil, translate(err)
	}
	return &out, nil
}

func limited(q *gorm.DB, limit int) *gorm.DB {
	if limit > 0 {
		return q.Limit(limit)
	}
	return q
}

func (t *gormTx) GetAccount(ctx context.Context, id string) (*Account, error) {
	return first[Account](t.locked(ctx).Where("id = ?", id))
}

func (t *gormTx) GetAccountByReferralCode(ctx context.Context, code string) (*Account, error) {
	return first[Account](t.locked(ctx).Where("referral_code = ?", code))
}

func (t *gormTx) CreateAccount(ctx context.Context, a *Account) error {
	if err := t.writable(); err != nil {
		return err
	}
	return translate(t.q(ctx).Create(a).Error)
}

func (t *gormTx) UpdateAccount(ctx context.Context, a *Account) error {
	if err := t.writable(); err != nil {
		return err
	}
	res := t.q(ctx).Model(&Account{}).Where("id = ? AND referral_code = ?", a.ID, a.ReferralCode).
		Select("*").Omit("id", "referral_code", "created_at").Updates(a)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *gormTx) TopAccounts(ctx context.Context, limit int) ([]Account, error) {
	var out []Account
	err := limited(t.q(ctx).Order("total_earned DESC").Order("id ASC"), limit).Find(&out).Error
	return out, translate(err)
}

func (t *gormTx) AppendTransaction(ctx context.Context, tr *Transaction) error {
	if err := t.writable(); err != nil {
		return err
	}
	return translate(t.q(ctx).Create(tr).Error)
}

func (t *gormTx) GetTransaction(ctx context.Context, id string) (*Transaction, error) {
	return first[Transaction](t.q(ctx).Where("id = ?", id))
}

func (t *gormTx) FindTransactionByReference(ctx context.Context, accountID, reference string) (*Transaction, error) {
	return first[Transaction](t.q(ctx).Where("account_id = ? AND reference_id = ?", accountID, reference))
}

func (t *gormTx) LastTransaction(ctx context.Context, accountID string) (*Transaction, error) {
	return first[Transaction](t.q(ctx).Where("account_id = ?", accountID).
		Order("created_at DESC").Order("id DESC"))
}

func (t *gormTx) UpdateTransactionStatus(ctx context.Context, id string, from, to TransactionStatus) error {
	if err := t.writable(); err != nil {
		return err
	}
	res := t.q(ctx).Model(&Transaction{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to, "updated_at": time.Now()})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := t.q(ctx).Model(&Transaction{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return translate(err)
		}
		if n == 0 {
			return ErrNotFound
		}
		return ErrConflict
	}
	return nil
}

func (t *gormTx) ListTransactions(ctx context.Context, accountID string, opts ListOptions) ([]Transaction, error) {
	q := t.q(ctx).Where("account_id = ?", accountID)
	if c := opts.After; c != nil {
		q = q.Where("((created_at < ?) OR (created_at = ? AND id < ?))", c.CreatedAt, c.CreatedAt, c.ID)
	}
	var out []Transaction
	err := limited(q.Order("created_at DESC").Order("id DESC"), opts.Limit).Find(&out).Error
	return out, translate(err)
}

func (t *gormTx) GetStats(ctx context.Context, accountID string) (*ProgressionStats, error) {
	return first[ProgressionStats](t.locked(ctx).Where("account_id = ?", accountID))
}

func (t *gormTx) CreateStats(ctx context.Context, s *ProgressionStats) error {
	if err := t.writable(); err != nil {
		return err
	}
	return translate(t.q(ctx).Create(s).Error)
}

func (t *gormTx) UpdateStats(ctx context.Context, s *ProgressionStats) error {
	if err := t.writable(); err != nil {
		return err
	}
	res := t.q(ctx).Model(&ProgressionStats{}).Where("account_id = ?", s.AccountID).
		Select("*").Omit("account_id", "created_at").Updates(s)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *gormTx) AppendGameScore(ctx context.Context, g *GameScore) error {
	if err := t.writable(); err != nil {
		return err
	}
	return translate(t.q(ctx).Create(g).Error)
}

func (t *gormTx) ListGameScores(ctx context.Context, accountID, gameID string) ([]GameScore, error) {
	var out []GameScore
	err := t.q(ctx).Where("account_id = ? AND game_id = ?", accountID, gameID).
		Order("created_at ASC").Order("id ASC").Find(&out).Error
	return out, translate(err)
}

func (t *gormTx) RecentGameScores(ctx context.Context, accountID, gameID string, limit int) ([]GameScore, error) {
	q := t.q(ctx).Where("account_id = ?", accountID)
	if gameID != "" {
		q = q.Where("game_id = ?", gameID)
	}
	var out []GameScore
	err := limited(q.Order("created_at DESC").Order("id DESC"), limit).Find(&out).Error
	return out, translate(err)
}

func (t *gormTx) TopGameScores(ctx context.Context, gameID string, limit int) ([]GameScore, error) {
	var out []GameScore
	err := limited(t.q(ctx).Where("game_id = ?", gameID).
		Order("score DESC").Order("created_at ASC").Order("id ASC"), limit).Find(&out).Error
	return out, translate(err)
}

func (t *gormTx) GetGameStats(ctx context.Context, accountID, gameID string) (*GameStats, error) {
	return first[GameStats](t.q(ctx).Where("account_id = ? AND game_id = ?", accountID, gameID))
}

func (t *gormTx) PutGameStats(ctx context.Context, g *GameStats) error {
	if err := t.writable(); err != nil {
		return err
	}
	err := t.q(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}, {Name: "game_id"}},
		UpdateAll: true,
	}).Create(g).Error
	return translate(err)
}

func (t *gormTx) ListGameStats(ctx context.Context, accountID string) ([]GameStats, error) {
	var out []GameStats
	err := t.q(ctx).Where("account_id = ?", accountID).Order("game_id ASC").Find(&out).Error
	return out, translate(err)
}

func (t *gormTx) TopGameStats(ctx context.Context, gameID string, limit int) ([]GameStats, error) {
	var out []GameStats
	err := limited(t.q(ctx).Where("game_id = ?", gameID).
		Order("best_score DESC").Order("account_id ASC"), limit).Find(&out).Error
	return out, translate(err)
}

func (t *gormTx) GetUnlock(ctx context.Context, accountID, achievementID string) (*AchievementUnlock, error) {
	return first[AchievementUnlock](t.q(ctx).Where("account_id = ? AND achievement_id = ?", accountID, achievementID))
}

func (t *gormTx) InsertUnlock(ctx context.Context, u *AchievementUnlock) (bool, error) {
	if err := t.writable(); err != nil {
		return false, err
	}
	res := t.q(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(u)
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (t *gormTx) MarkClaimed(ctx context.Context, accountID, achievementID string, at time.Time) (bool, error) {
	if err := t.writable(); err != nil {
		return false, err
	}
	res := t.q(ctx).Model(&AchievementUnlock{}).
		Where("account_id = ? AND achievement_id = ? AND claimed = ?", accountID, achievementID, false).
		Updates(map[string]any{"claimed": true, "claimed_at": at})
	if res.Error != nil {
		return false, translate(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (t *gormTx) ListUnlocks(ctx context.Context, accountID string) ([]AchievementUnlock, error) {
	var out []AchievementUnlock
	err := t.q(ctx).Where("account_id = ?", accountID).
		Order("unlocked_at ASC").Order("achievement_id ASC").Find(&out).Error
	return out, translate(err)
}

func (t *gormTx) GetActionRecord(ctx context.Context, accountID, key string) (*ActionRecord, error) {
	return first[ActionRecord](t.q(ctx).Where("account_id = ? AND idempotency_key = ?", accountID, key))
}

func (t *gormTx) PutActionRecord(ctx context.Context, r *ActionRecord) error {
	if err := t.writable(); err != nil {
		return err
	}
	return translate(t.q(ctx).Create(r).Error)
}

package store

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound  = errors.New("store: record not found")
	ErrDuplicate = errors.New("store: duplicate record")
	ErrConflict  = errors.New("store: conflicting update")
	ErrReadOnly  = errors.New("store: write in read-only transaction")
)

// Cursor positions a most-recent-first transaction listing strictly after
// (CreatedAt, ID).
type Cursor struct {
	CreatedAt time.Time
	ID        string
}

type ListOptions struct {
	// Limit <= 0 means no limit.
	Limit int
	After *Cursor
}

// Tx is a unit of work. Reads inside an Update observe that Update's own
// writes; nothing is visible to other callers until commit.
type Tx interface {
	GetAccount(ctx context.Context, id string) (*Account, error)
	GetAccountByReferralCode(ctx context.Context, code string) (*Account, error)
	// CreateAccount returns ErrDuplicate when the id or referral code is taken.
	CreateAccount(ctx context.Context, a *Account) error
	UpdateAccount(ctx context.Context, a *Account) error
	TopAccounts(ctx context.Context, limit int) ([]Account, error)

	// AppendTransaction returns ErrDuplicate when the (account, reference)
	// pair already exists.
	AppendTransaction(ctx context.Context, t *Transaction) error
	GetTransaction(ctx context.Context, id string) (*Transaction, error)
	FindTransactionByReference(ctx context.Context, accountID, reference string) (*Transaction, error)
	LastTransaction(ctx context.Context, accountID string) (*Transaction, error)
	// UpdateTransactionStatus moves a transaction from one status to another
	// and returns ErrConflict when it is no longer in the from status.
	UpdateTransactionStatus(ctx context.Context, id string, from, to TransactionStatus) error
	// ListTransactions returns most recent first.
	ListTransactions(ctx context.Context, accountID string, opts ListOptions) ([]Transaction, error)

	GetStats(ctx context.Context, accountID string) (*ProgressionStats, error)
	CreateStats(ctx context.Context, s *ProgressionStats) error
	UpdateStats(ctx context.Context, s *ProgressionStats) error

	AppendGameScore(ctx context.Context, g *GameScore) error
	// ListGameScores returns every score for the pair, oldest first.
	ListGameScores(ctx context.Context, accountID, gameID string) ([]GameScore, error)
	// RecentGameScores returns the newest scores for the pair; an empty gameID
	// spans all games.
	RecentGameScores(ctx context.Context, accountID, gameID string, limit int) ([]GameScore, error)
	TopGameScores(ctx context.Context, gameID string, limit int) ([]GameScore, error)
	GetGameStats(ctx context.Context, accountID, gameID string) (*GameStats, error)
	PutGameStats(ctx context.Context, g *GameStats) error
	ListGameStats(ctx context.Context, accountID string) ([]GameStats, error)
	TopGameStats(ctx context.Context, gameID string, limit int) ([]GameStats, error)

	GetUnlock(ctx context.Context, accountID, achievementID string) (*AchievementUnlock, error)
	// InsertUnlock inserts only when absent and reports whether it did.
	InsertUnlock(ctx context.Context, u *AchievementUnlock) (bool, error)
	// MarkClaimed flips claimed false->true and reports whether it did.
	MarkClaimed(ctx context.Context, accountID, achievementID string, at time.Time) (bool, error)
	ListUnlocks(ctx context.Context, accountID string) ([]AchievementUnlock, error)

	GetActionRecord(ctx context.Context, accountID, key string) (*ActionRecord, error)
	// PutActionRecord returns ErrDuplicate when the key is already recorded.
	PutActionRecord(ctx context.Context, r *ActionRecord) error
}

type Store interface {
	// Update runs fn atomically; any error rolls back every write made via tx.
	// Update and View must not be nested.
	Update(ctx context.Context, fn func(tx Tx) error) error
	// View runs fn against committed state. Writes through tx are rejected.
	View(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
}

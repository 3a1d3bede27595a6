package store

import (
	"maps"
	"slices"
	"time"

	"gorm.io/datatypes"
)

type TransactionKind string

const (
	KindEarn          TransactionKind = "earn"
	KindWithdraw      TransactionKind = "withdraw"
	KindReferralBonus TransactionKind = "referral_bonus"
	KindSignupBonus   TransactionKind = "signup_bonus"
)

func (k TransactionKind) String() string {
	return string(k)
}

// EarnClass reports whether credits of this kind count toward lifetime earnings.
func (k TransactionKind) EarnClass() bool {
	switch k {
	case KindEarn, KindReferralBonus, KindSignupBonus:
		return true
	default:
		return false
	}
}

func (k TransactionKind) Valid() bool {
	switch k {
	case KindEarn, KindWithdraw, KindReferralBonus, KindSignupBonus:
		return true
	default:
		return false
	}
}

type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusFailed    TransactionStatus = "failed"
)

func (s TransactionStatus) String() string {
	return string(s)
}

// CanTransition reports whether a status move is allowed. Only pending
// transactions may settle.
func (s TransactionStatus) CanTransition(to TransactionStatus) bool {
	return s == StatusPending && (to == StatusCompleted || to == StatusFailed)
}

type Account struct {
	ID               string    `gorm:"primaryKey;type:varchar(32)" json:"id"`
	Username         string    `gorm:"type:varchar(64)" json:"username"`
	Email            string    `gorm:"type:varchar(255);index" json:"email"`
	Balance          int64     `gorm:"not null;default:0" json:"balance"`
	TotalEarned      int64     `gorm:"not null;default:0;index" json:"total_earned"`
	ReferralCode     string    `gorm:"type:varchar(16);uniqueIndex;not null" json:"referral_code"`
	ReferredBy       *string   `gorm:"type:varchar(32)" json:"referred_by,omitempty"`
	ReferralCount    int64     `gorm:"not null;default:0" json:"referral_count"`
	ReferralEarnings int64     `gorm:"not null;default:0" json:"referral_earnings"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (a Account) clone() Account {
	if a.ReferredBy != nil {
		v := *a.ReferredBy
		a.ReferredBy = &v
	}
	return a
}

type Transaction struct {
	ID           string            `gorm:"primaryKey;type:varchar(32)" json:"id"`
	AccountID    string            `gorm:"type:varchar(32);not null;index:idx_transactions_account_created,priority:1;uniqueIndex:idx_transactions_account_reference,priority:1" json:"account_id"`
	Number       string            `gorm:"type:varchar(32);not null" json:"number"`
	Kind         TransactionKind   `gorm:"type:varchar(32);not null" json:"kind"`
	Amount       int64             `gorm:"not null" json:"amount"`
	BalanceAfter int64             `gorm:"not null" json:"balance_after"`
	Description  string            `gorm:"type:varchar(255)" json:"description"`
	Status       TransactionStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	ReferenceID  *string           `gorm:"type:varchar(160);uniqueIndex:idx_transactions_account_reference,priority:2" json:"reference_id,omitempty"`
	Metadata     datatypes.JSONMap `json:"metadata,omitempty"`
	PreviousHash string            `gorm:"type:varchar(64);not null" json:"previous_hash"`
	Hash         string            `gorm:"type:varchar(64);not null" json:"hash"`
	CreatedAt    time.Time         `gorm:"index:idx_transactions_account_created,priority:2" json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

func (t Transaction) clone() Transaction {
	if t.ReferenceID != nil {
		v := *t.ReferenceID
		t.ReferenceID = &v
	}
	if t.Metadata != nil {
		t.Metadata = maps.Clone(t.Metadata)
	}
	return t
}

// Reference returns the idempotency key, or "".
func (t Transaction) Reference() string {
	if t.ReferenceID == nil {
		return ""
	}
	return *t.ReferenceID
}

type ProgressionStats struct {
	AccountID           string                               `gorm:"primaryKey;type:varchar(32)" json:"account_id"`
	XP                  int64                                `gorm:"not null;default:0" json:"xp"`
	Level               int                                  `gorm:"not null;default:1" json:"level"`
	TasksCompleted      int64                                `gorm:"not null;default:0" json:"tasks_completed"`
	SpinsCompleted      int64                                `gorm:"not null;default:0" json:"spins_completed"`
	GamesPlayed         int64                                `gorm:"not null;default:0" json:"games_played"`
	LoginStreak         int64                                `gorm:"not null;default:0" json:"login_streak"`
	MaxLoginStreak      int64                                `gorm:"not null;default:0" json:"max_login_streak"`
	LastLoginAt         *time.Time                           `json:"last_login_at,omitempty"`
	LastSpinAt          *time.Time                           `json:"last_spin_at,omitempty"`
	MultiplierBP        int64                                `gorm:"not null;default:0" json:"multiplier_bp"`
	MultiplierExpiresAt *time.Time                           `json:"multiplier_expires_at,omitempty"`
	LootBoxes           datatypes.JSONType[[]string]         `json:"loot_boxes"`
	QuestProgress       datatypes.JSONType[map[string]int64] `json:"quest_progress"`
	WeeklyEarnings      int64                                `gorm:"not null;default:0" json:"weekly_earnings"`
	WeeklyResetAt       *time.Time                           `json:"weekly_reset_at,omitempty"`
	CreatedAt           time.Time                            `json:"created_at"`
	UpdatedAt           time.Time                            `json:"updated_at"`
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func (s ProgressionStats) clone() ProgressionStats {
	s.LastLoginAt = cloneTime(s.LastLoginAt)
	s.LastSpinAt = cloneTime(s.LastSpinAt)
	s.MultiplierExpiresAt = cloneTime(s.MultiplierExpiresAt)
	s.WeeklyResetAt = cloneTime(s.WeeklyResetAt)
	s.LootBoxes = datatypes.NewJSONType(slices.Clone(s.LootBoxes.Data()))
	s.QuestProgress = datatypes.NewJSONType(maps.Clone(s.QuestProgress.Data()))
	return s
}

// Quests returns a mutable copy of the quest progress map.
func (s *ProgressionStats) Quests() map[string]int64 {
	m := maps.Clone(s.QuestProgress.Data())
	if m == nil {
		m = map[string]int64{}
	}
	return m
}

func (s *ProgressionStats) SetQuests(m map[string]int64) {
	s.QuestProgress = datatypes.NewJSONType(m)
}

func (s *ProgressionStats) AddLootBox(id string) {
	boxes := append(slices.Clone(s.LootBoxes.Data()), id)
	s.LootBoxes = datatypes.NewJSONType(boxes)
}

type GameScore struct {
	ID            string            `gorm:"primaryKey;type:varchar(32)" json:"id"`
	AccountID     string            `gorm:"type:varchar(32);not null;index:idx_game_scores_pair,priority:1" json:"account_id"`
	GameID        string            `gorm:"type:varchar(64);not null;index:idx_game_scores_pair,priority:2;index:idx_game_scores_game_score,priority:1" json:"game_id"`
	Score         int64             `gorm:"not null;index:idx_game_scores_game_score,priority:2" json:"score"`
	TimeCompleted *int64            `json:"time_completed,omitempty"`
	Difficulty    string            `gorm:"type:varchar(16)" json:"difficulty"`
	Reward        int64             `gorm:"not null;default:0" json:"reward"`
	Metadata      datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt     time.Time         `gorm:"index:idx_game_scores_pair,priority:3" json:"created_at"`
}

func (g GameScore) clone() GameScore {
	if g.TimeCompleted != nil {
		v := *g.TimeCompleted
		g.TimeCompleted = &v
	}
	if g.Metadata != nil {
		g.Metadata = maps.Clone(g.Metadata)
	}
	return g
}

type GameStats struct {
	AccountID      string     `gorm:"primaryKey;type:varchar(32)" json:"account_id"`
	GameID         string     `gorm:"primaryKey;type:varchar(64);index:idx_game_stats_best,priority:1" json:"game_id"`
	TotalPlays     int64      `gorm:"not null;default:0" json:"total_plays"`
	BestScore      int64      `gorm:"not null;default:0;index:idx_game_stats_best,priority:2" json:"best_score"`
	BestTime       *int64     `json:"best_time,omitempty"`
	TotalScore     int64      `gorm:"not null;default:0" json:"total_score"`
	AverageScore   float64    `gorm:"not null;default:0" json:"average_score"`
	CompletionRate float64    `gorm:"not null;default:0" json:"completion_rate"`
	CurrentStreak  int64      `gorm:"not null;default:0" json:"current_streak"`
	MaxStreak      int64      `gorm:"not null;default:0" json:"max_streak"`
	LastPlayedAt   *time.Time `json:"last_played_at,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (g GameStats) clone() GameStats {
	if g.BestTime != nil {
		v := *g.BestTime
		g.BestTime = &v
	}
	g.LastPlayedAt = cloneTime(g.LastPlayedAt)
	return g
}

type AchievementUnlock struct {
	AccountID     string     `gorm:"primaryKey;type:varchar(32)" json:"account_id"`
	AchievementID string     `gorm:"primaryKey;type:varchar(64)" json:"achievement_id"`
	UnlockedAt    time.Time  `gorm:"not null" json:"unlocked_at"`
	Claimed       bool       `gorm:"not null;default:false" json:"claimed"`
	ClaimedAt     *time.Time `json:"claimed_at,omitempty"`
}

func (u AchievementUnlock) clone() AchievementUnlock {
	u.ClaimedAt = cloneTime(u.ClaimedAt)
	return u
}

// ActionRecord remembers the outcome of an action performed under an
// idempotency key.
type ActionRecord struct {
	AccountID string         `gorm:"primaryKey;type:varchar(32)" json:"account_id"`
	Key       string         `gorm:"primaryKey;column:idempotency_key;type:varchar(128)" json:"key"`
	Action    string         `gorm:"type:varchar(32);not null" json:"action"`
	Result    datatypes.JSON `json:"result"`
	CreatedAt time.Time      `json:"created_at"`
}

func (r ActionRecord) clone() ActionRecord {
	r.Result = slices.Clone(r.Result)
	return r
}

// Models lists every persisted type, for migrations.
func Models() []any {
	return []any{
		&Account{},
		&Transaction{},
		&ProgressionStats{},
		&GameScore{},
		&GameStats{},
		&AchievementUnlock{},
		&ActionRecord{},
	}
}

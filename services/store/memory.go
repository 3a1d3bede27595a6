package store

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"
)

type pairKey struct {
	a, b string
}

// Memory is an in-process Store. A single RWMutex makes it a single-writer
// arena; writes inside Update are recorded in an undo log and reverted when
// the callback fails.
type Memory struct {
	mu sync.RWMutex

	accounts  map[string]Account
	byCode    map[string]string
	txs       map[string]Transaction
	txOrder   map[string][]string
	txRefs    map[pairKey]string
	stats     map[string]ProgressionStats
	scores    map[pairKey][]GameScore
	gameStats map[pairKey]GameStats
	unlocks   map[pairKey]AchievementUnlock
	actions   map[pairKey]ActionRecord
}

func NewMemory() *Memory {
	return &Memory{
		accounts:  map[string]Account{},
		byCode:    map[string]string{},
		txs:       map[string]Transaction{},
		txOrder:   map[string][]string{},
		txRefs:    map[pairKey]string{},
		stats:     map[string]ProgressionStats{},
		scores:    map[pairKey][]GameScore{},
		gameStats: map[pairKey]GameStats{},
		unlocks:   map[pairKey]AchievementUnlock{},
		actions:   map[pairKey]ActionRecord{},
	}
}

func (m *Memory) Update(ctx context.Context, fn func(tx Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{m: m, write: true}
	defer func() {
		if r := recover(); r != nil {
			tx.rollback()
			panic(r)
		}
	}()

	if err = fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (m *Memory) View(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return fn(&memTx{m: m})
}

func (m *Memory) Ping(ctx context.Context) error {
	return ctx.Err()
}

type memTx struct {
	m     *Memory
	write bool
	undo  []func()
}

func (t *memTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *memTx) writable() error {
	if !t.write {
		return ErrReadOnly
	}
	return nil
}

func clip(n, limit int) int {
	if limit > 0 && limit < n {
		return limit
	}
	return n
}

func stamp(t *time.Time) {
	if t.IsZero() {
		*t = time.Now()
	}
}

func (t *memTx) GetAccount(_ context.Context, id string) (*Account, error) {
	a, ok := t.m.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := a.clone()
	return &c, nil
}

func (t *memTx) GetAccountByReferralCode(ctx context.Context, code string) (*Account, error) {
	id, ok := t.m.byCode[code]
	if !ok {
		return nil, ErrNotFound
	}
	return t.GetAccount(ctx, id)
}

func (t *memTx) CreateAccount(_ context.Context, a *Account) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.m.accounts[a.ID]; ok {
		return ErrDuplicate
	}
	if _, ok := t.m.byCode[a.ReferralCode]; ok {
		return ErrDuplicate
	}
	stamp(&a.CreatedAt)
	stamp(&a.UpdatedAt)

	t.m.accounts[a.ID] = a.clone()
	t.m.byCode[a.ReferralCode] = a.ID
	id, code := a.ID, a.ReferralCode
	t.undo = append(t.undo, func() {
		delete(t.m.accounts, id)
		delete(t.m.byCode, code)
	})
	return nil
}

func (t *memTx) UpdateAccount(_ context.Context, a *Account) error {
	if err := t.writable(); err != nil {
		return err
	}
	prev, ok := t.m.accounts[a.ID]
	if !ok {
		return ErrNotFound
	}
	if prev.ReferralCode != a.ReferralCode {
		return ErrConflict
	}
	t.m.accounts[a.ID] = a.clone()
	t.undo = append(t.undo, func() { t.m.accounts[prev.ID] = prev })
	return nil
}

func (t *memTx) TopAccounts(_ context.Context, limit int) ([]Account, error) {
	out := make([]Account, 0, len(t.m.accounts))
	for _, a := range t.m.accounts {
		out = append(out, a.clone())
	}
	slices.SortFunc(out, func(x, y Account) int {
		if c := cmp.Compare(y.TotalEarned, x.TotalEarned); c != 0 {
			return c
		}
		return cmp.Compare(x.ID, y.ID)
	})
	return out[:clip(len(out), limit)], nil
}

func (t *memTx) AppendTransaction(_ context.Context, tr *Transaction) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.m.txs[tr.ID]; ok {
		return ErrDuplicate
	}
	ref := tr.Reference()
	if ref != "" {
		if _, ok := t.m.txRefs[pairKey{tr.AccountID, ref}]; ok {
			return ErrDuplicate
		}
	}
	stamp(&tr.CreatedAt)
	stamp(&tr.UpdatedAt)

	t.m.txs[tr.ID] = tr.clone()
	prevOrder := t.m.txOrder[tr.AccountID]
	t.m.txOrder[tr.AccountID] = append(slices.Clip(prevOrder), tr.ID)
	if ref != "" {
		t.m.txRefs[pairKey{tr.AccountID, ref}] = tr.ID
	}

	id, accountID := tr.ID, tr.AccountID
	t.undo = append(t.undo, func() {
		delete(t.m.txs, id)
		t.m.txOrder[accountID] = prevOrder
		if ref != "" {
			delete(t.m.txRefs, pairKey{accountID, ref})
		}
	})
	return nil
}

func (t *memTx) GetTransaction(_ context.Context, id string) (*Transaction, error) {
	tr, ok := t.m.txs[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := tr.clone()
	return &c, nil
}

func (t *memTx) FindTransactionByReference(ctx context.Context, accountID, reference string) (*Transaction, error) {
	id, ok := t.m.txRefs[pairKey{accountID, reference}]
	if !ok {
		return nil, ErrNotFound
	}
	return t.GetTransaction(ctx, id)
}

func (t *memTx) LastTransaction(ctx context.Context, accountID string) (*Transaction, error) {
	order := t.m.txOrder[accountID]
	if len(order) == 0 {
		return nil, ErrNotFound
	}
	return t.GetTransaction(ctx, order[len(order)-1])
}

func (t *memTx) UpdateTransactionStatus(_ context.Context, id string, from, to TransactionStatus) error {
	if err := t.writable(); err != nil {
		return err
	}
	prev, ok := t.m.txs[id]
	if !ok {
		return ErrNotFound
	}
	if prev.Status != from {
		return ErrConflict
	}
	next := prev.clone()
	next.Status = to
	next.UpdatedAt = time.Now()
	t.m.txs[id] = next
	t.undo = append(t.undo, func() { t.m.txs[id] = prev })
	return nil
}

func newerFirst(x, y Transaction) int {
	if c := y.CreatedAt.Compare(x.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(y.ID, x.ID)
}

func (t *memTx) ListTransactions(_ context.Context, accountID string, opts ListOptions) ([]Transaction, error) {
	order := t.m.txOrder[accountID]
	out := make([]Transaction, 0, len(order))
	for _, id := range order {
		tr := t.m.txs[id]
		if opts.After != nil && newerFirst(tr, Transaction{CreatedAt: opts.After.CreatedAt, ID: opts.After.ID}) <= 0 {
			continue
		}
		out = append(out, tr.clone())
	}
	slices.SortFunc(out, newerFirst)
	return out[:clip(len(out), opts.Limit)], nil
}

func (t *memTx) GetStats(_ context.Context, accountID string) (*ProgressionStats, error) {
	s, ok := t.m.stats[accountID]
	if !ok {
		return nil, ErrNotFound
	}
	c := s.clone()
	return &c, nil
}

func (t *memTx) CreateStats(_ context.Context, s *ProgressionStats) error {
	if err := t.writable(); err != nil {
		return err
	}
	if _, ok := t.m.stats[s.AccountID]; ok {
		return ErrDuplicate
	}
	stamp(&s.CreatedAt)
	stamp(&s.UpdatedAt)
	t.m.stats[s.AccountID] = s.clone()
	id := s.AccountID
	t.undo = append(t.undo, func() { delete(t.m.stats, id) })
	return nil
}

func (t *memTx) UpdateStats(_ context.Context, s *ProgressionStats) error {
	if err := t.writable(); err != nil {
		return err
	}
	prev, ok := t.m.stats[s.AccountID]
	if !ok {
		return ErrNotFound
	}
	t.m.stats[s.AccountID] = s.clone()
	t.undo = append(t.undo, func() { t.m.stats[prev.AccountID] = prev })
	return nil
}

func (t *memTx) AppendGameScore(_ context.Context, g *GameScore) error {
	if err := t.writable(); err != nil {
		return err
	}
	stamp(&g.CreatedAt)
	key := pairKey{g.AccountID, g.GameID}
	prev := t.m.scores[key]
	t.m.scores[key] = append(slices.Clip(prev), g.clone())
	t.undo = append(t.undo, func() {
		if prev == nil {
			delete(t.m.scores, key)
			return
		}
		t.m.scores[key] = prev
	})
	return nil
}

func olderFirst(x, y GameScore) int {
	if c := x.CreatedAt.Compare(y.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(x.ID, y.ID)
}

func cloneScores(in []GameScore) []GameScore {
	out := make([]GameScore, len(in))
	for i, g := range in {
		out[i] = g.clone()
	}
	return out
}

func (t *memTx) ListGameScores(_ context.Context, accountID, gameID string) ([]GameScore, error) {
	out := cloneScores(t.m.scores[pairKey{accountID, gameID}])
	slices.SortFunc(out, olderFirst)
	return out, nil
}

func (t *memTx) RecentGameScores(_ context.Context, accountID, gameID string, limit int) ([]GameScore, error) {
	var out []GameScore
	for key, scores := range t.m.scores {
		if key.a != accountID || (gameID != "" && key.b != gameID) {
			continue
		}
		out = append(out, cloneScores(scores)...)
	}
	slices.SortFunc(out, func(x, y GameScore) int { return olderFirst(y, x) })
	return out[:clip(len(out), limit)], nil
}

func (t *memTx) TopGameScores(_ context.Context, gameID string, limit int) ([]GameScore, error) {
	var out []GameScore
	for key, scores := range t.m.scores {
		if key.b == gameID {
			out = append(out, cloneScores(scores)...)
		}
	}
	slices.SortFunc(out, func(x, y GameScore) int {
		if c := cmp.Compare(y.Score, x.Score); c != 0 {
			return c
		}
		return olderFirst(x, y)
	})
	return out[:clip(len(out), limit)], nil
}

func (t *memTx) GetGameStats(_ context.Context, accountID, gameID string) (*GameStats, error) {
	g, ok := t.m.gameStats[pairKey{accountID, gameID}]
	if !ok {
		return nil, ErrNotFound
	}
	c := g.clone()
	return &c, nil
}

func (t *memTx) PutGameStats(_ context.Context, g *GameStats) error {
	if err := t.writable(); err != nil {
		return err
	}
	stamp(&g.UpdatedAt)
	key := pairKey{g.AccountID, g.GameID}
	prev, existed := t.m.gameStats[key]
	t.m.gameStats[key] = g.clone()
	t.undo = append(t.undo, func() {
		if !existed {
			delete(t.m.gameStats, key)
			return
		}
		t.m.gameStats[key] = prev
	})
	return nil
}

func (t *memTx) ListGameStats(_ context.Context, accountID string) ([]GameStats, error) {
	var out []GameStats
	for key, g := range t.m.gameStats {
		if key.a == accountID {
			out = append(out, g.clone())
		}
	}
	slices.SortFunc(out, func(x, y GameStats) int { return cmp.Compare(x.GameID, y.GameID) })
	return out, nil
}

func (t *memTx) TopGameStats(_ context.Context, gameID string, limit int) ([]GameStats, error) {
	var out []GameStats
	for key, g := range t.m.gameStats {
		if key.b == gameID {
			out = append(out, g.clone())
		}
	}
	slices.SortFunc(out, func(x, y GameStats) int {
		if c := cmp.Compare(y.BestScore, x.BestScore); c != 0 {
			return c
		}
		return cmp.Compare(x.AccountID, y.AccountID)
	})
	return out[:clip(len(out), limit)], nil
}

func (t *memTx) GetUnlock(_ context.Context, accountID, achievementID string) (*AchievementUnlock, error) {
	u, ok := t.m.unlocks[pairKey{accountID, achievementID}]
	if !ok {
		return nil, ErrNotFound
	}
	c := u.clone()
	return &c, nil
}

func (t *memTx) InsertUnlock(_ context.Context, u *AchievementUnlock) (bool, error) {
	if err := t.writable(); err != nil {
		return false, err
	}
	key := pairKey{u.AccountID, u.AchievementID}
	if _, ok := t.m.unlocks[key]; ok {
		return false, nil
	}
	stamp(&u.UnlockedAt)
	t.m.unlocks[key] = u.clone()
	t.undo = append(t.undo, func() { delete(t.m.unlocks, key) })
	return true, nil
}

func (t *memTx) MarkClaimed(_ context.Context, accountID, achievementID string, at time.Time) (bool, error) {
	if err := t.writable(); err != nil {
		return false, err
	}
	key := pairKey{accountID, achievementID}
	prev, ok := t.m.unlocks[key]
	if !ok || prev.Claimed {
		return false, nil
	}
	next := prev.clone()
	next.Claimed = true
	next.ClaimedAt = &at
	t.m.unlocks[key] = next
	t.undo = append(t.undo, func() { t.m.unlocks[key] = prev })
	return true, nil
}

func (t *memTx) ListUnlocks(_ context.Context, accountID string) ([]AchievementUnlock, error) {
	var out []AchievementUnlock
	for key, u := range t.m.unlocks {
		if key.a == accountID {
			out = append(out, u.clone())
		}
	}
	slices.SortFunc(out, func(x, y AchievementUnlock) int {
		if c := x.UnlockedAt.Compare(y.UnlockedAt); c != 0 {
			return c
		}
		return cmp.Compare(x.AchievementID, y.AchievementID)
	})
	return out, nil
}

func (t *memTx) GetActionRecord(_ context.Context, accountID, key string) (*ActionRecord, error) {
	r, ok := t.m.actions[pairKey{accountID, key}]
	if !ok {
		return nil, ErrNotFound
	}
	c := r.clone()
	return &c, nil
}

func (t *memTx) PutActionRecord(_ context.Context, r *ActionRecord) error {
	if err := t.writable(); err != nil {
		return err
	}
	key := pairKey{r.AccountID, r.Key}
	if _, ok := t.m.actions[key]; ok {
		return ErrDuplicate
	}
	stamp(&r.CreatedAt)
	t.m.actions[key] = r.clone()
	t.undo = append(t.undo, func() { delete(t.m.actions, key) })
	return nil
}

package quest

import (
	"context"
	"errors"
	"time"

	"dulpton-point/pkg/config"
	"dulpton-point/pkg/errutil"
	"dulpton-point/services/catalog"
	"dulpton-point/services/store"

	"go.uber.org/fx"
)

type View struct {
	catalog.Quest
	WindowStart time.Time `json:"window_start"`
	ExpiresAt   time.Time `json:"expires_at"`
	Progress    int64     `json:"progress"`
	Completed   bool      `json:"completed"`
	Claimed     bool      `json:"claimed"`
}

// Tracker reports live quest progress. It never writes counters.
type Tracker struct {
	store   store.Store
	catalog *catalog.Catalog
	loc     *time.Location
	now     func() time.Time
}

type Params struct {
	fx.In

	Store   store.Store
	Catalog *catalog.Catalog
	Config  *config.Config
	Now     func() time.Time `optional:"true"`
}

func NewTracker(p Params) *Tracker {
	now := p.Now
	if now == nil {
		now = time.Now
	}
	return &Tracker{store: p.Store, catalog: p.Catalog, loc: p.Config.Rewards.Location(), now: now}
}

func (t *Tracker) Location() *time.Location {
	return t.loc
}

func (t *Tracker) Daily(ctx context.Context, accountID string) ([]View, error) {
	return t.list(ctx, accountID, catalog.Daily)
}

func (t *Tracker) Weekly(ctx context.Context, accountID string) ([]View, error) {
	return t.list(ctx, accountID, catalog.Weekly)
}

func (t *Tracker) list(ctx context.Context, accountID string, period catalog.QuestPeriod) ([]View, error) {
	var out []View
	err := t.store.View(ctx, func(tx store.Tx) error {
		var err error
		out, err = t.ViewsTx(ctx, tx, accountID, period, t.now())
		return err
	})
	return out, err
}

// ViewsTx builds the views of every quest of period inside an open Tx.
func (t *Tracker) ViewsTx(ctx context.Context, tx store.Tx, accountID string, period catalog.QuestPeriod, now time.Time) ([]View, error) {
	stats, err := tx.GetStats(ctx, accountID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, errutil.NotFound("account not found", err)
	}
	if err != nil {
		return nil, err
	}

	progress := stats.Quests()
	quests := t.catalog.Quests(period)
	out := make([]View, 0, len(quests))
	for _, q := range quests {
		v, err := t.view(ctx, tx, accountID, q, progress, now)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// ViewTx builds the view of a single quest.
func (t *Tracker) ViewTx(ctx context.Context, tx store.Tx, stats *store.ProgressionStats, questID string, now time.Time) (View, error) {
	q, ok := t.catalog.Quest(questID)
	if !ok {
		return View{}, errutil.UnknownEntity("unknown quest", nil, errutil.WithDetails(errutil.Detail{Field: "quest_id", Message: questID}))
	}
	return t.view(ctx, tx, stats.AccountID, q, stats.Quests(), now)
}

func (t *Tracker) view(ctx context.Context, tx store.Tx, accountID string, q catalog.Quest, progress map[string]int64, now time.Time) (View, error) {
	start, end := Window(q.Period, now, t.loc)
	v := View{
		Quest:       q,
		WindowStart: start,
		ExpiresAt:   end,
		Progress:    min(progress[ProgressKey(q.ID, start)], q.Target),
	}
	v.Completed = v.Progress >= q.Target
	if progress[ClaimKey(q.ID, start)] > 0 {
		v.Claimed = true
		return v, nil
	}

	_, err := tx.FindTransactionByReference(ctx, accountID, ClaimReference(q.ID, start))
	switch {
	case err == nil:
		v.Claimed = true
	case !errors.Is(err, store.ErrNotFound):
		return View{}, err
	}
	return v, nil
}

// MarkClaimed records the claim of questID for the window starting at
// windowStart. Quests without a point reward have no ledger entry to rely on.
func MarkClaimed(stats *store.ProgressionStats, questID string, windowStart time.Time) {
	progress := stats.Quests()
	progress[ClaimKey(questID, windowStart)] = 1
	stats.SetQuests(progress)
}

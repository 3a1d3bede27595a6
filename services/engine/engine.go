package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"dulpton-point/pkg/errutil"
	"dulpton-point/pkg/gen"
	"dulpton-point/services/achievement"
	"dulpton-point/services/catalog"
	"dulpton-point/services/events"
	"dulpton-point/services/leaderboard"
	"dulpton-point/services/ledger"
	"dulpton-point/services/progression"
	"dulpton-point/services/quest"
	"dulpton-point/services/reward"
	"dulpton-point/services/store"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	tracerName = "dulpton-point/engine"

	maxKeyLength = 128
)

var (
	creditsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dulpton_credits_total",
		Help: "DULP credited by kind.",
	}, []string{"kind"})
	spinsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dulpton_spins_total",
		Help: "Wheel spins by outcome rarity.",
	}, []string{"rarity"})
)

func init() {
	prometheus.MustRegister(creditsTotal, spinsTotal)
}

// Engine is the action surface. Every mutating action is one store unit of
// work; events are published only after it commits.
type Engine struct {
	store        store.Store
	catalog      *catalog.Catalog
	ids          gen.IDGenerator
	ledger       *ledger.Service
	progression  *progression.Service
	calc         *reward.Calculator
	spinner      *reward.Spinner
	achievements *achievement.Service
	quests       *quest.Tracker
	leaderboard  *leaderboard.Service
	publisher    events.Publisher
	tracer       trace.Tracer
	logger       *zap.Logger
}

type Params struct {
	fx.In

	Store        store.Store
	Catalog      *catalog.Catalog
	IDs          gen.IDGenerator
	Ledger       *ledger.Service
	Progression  *progression.Service
	Calculator   *reward.Calculator
	Spinner      *reward.Spinner
	Achievements *achievement.Service
	Quests       *quest.Tracker
	Leaderboard  *leaderboard.Service
	Publisher    events.Publisher `optional:"true"`
	Logger       *zap.Logger      `optional:"true"`
}

func New(p Params) *Engine {
	e := &Engine{
		store:        p.Store,
		catalog:      p.Catalog,
		ids:          p.IDs,
		ledger:       p.Ledger,
		progression:  p.Progression,
		calc:         p.Calculator,
		spinner:      p.Spinner,
		achievements: p.Achievements,
		quests:       p.Quests,
		leaderboard:  p.Leaderboard,
		publisher:    p.Publisher,
		tracer:       otel.Tracer(tracerName),
		logger:       p.Logger,
	}
	if e.logger == nil {
		e.logger = zap.L()
	}
	return e
}

// unit collects what an action produced inside its store transaction.
type unit struct {
	tx     store.Tx
	now    time.Time
	events []events.Event
	after  []func()
}

func (u *unit) emit(accountID string, kind events.Kind, data any) {
	u.events = append(u.events, events.Event{Kind: kind, AccountID: accountID, Data: data, At: u.now})
}

func (u *unit) onCommit(fn func()) {
	u.after = append(u.after, fn)
}

func (e *Engine) start(ctx context.Context, action, accountID string) (context.Context, trace.Span, *zap.Logger) {
	ctx, span := e.tracer.Start(ctx, "engine."+action, trace.WithAttributes(
		attribute.String("account.id", accountID),
	))
	logger := e.logger.With(
		zap.String("action", action),
		zap.String("account_id", accountID),
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
	)
	return ctx, span, logger
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// execute runs fn in one unit of work. With a key, a previous outcome of the
// same action is returned instead of running fn again.
func execute[T any](ctx context.Context, e *Engine, action, accountID, key string, fn func(ctx context.Context, u *unit) (*T, error)) (out *T, replayed bool, err error) {
	ctx, span, logger := e.start(ctx, action, accountID)
	defer func() { finish(span, err) }()

	if len(key) > maxKeyLength {
		return nil, false, errutil.BadRequest("idempotency key too long", nil)
	}

	var u *unit
	err = e.store.Update(ctx, func(tx store.Tx) error {
		u = &unit{tx: tx, now: e.ledger.Now()}
		if key != "" {
			rec, err := tx.GetActionRecord(ctx, accountID, key)
			switch {
			case err == nil:
				if rec.Action != action {
					return errutil.Conflict("idempotency key already used for another action", nil,
						errutil.WithDetails(errutil.Detail{Field: "idempotency_key", Message: rec.Action}))
				}
				out = new(T)
				replayed = true
				return json.Unmarshal(rec.Result, out)
			case !errors.Is(err, store.ErrNotFound):
				return err
			}
		}

		res, err := fn(ctx, u)
		if err != nil {
			return err
		}
		out = res
		if key == "" {
			return nil
		}
		b, err := json.Marshal(res)
		if err != nil {
			return fmt.Errorf("encode %s outcome: %w", action, err)
		}
		err = tx.PutActionRecord(ctx, &store.ActionRecord{AccountID: accountID, Key: key, Action: action, Result: b, CreatedAt: u.now})
		if errors.Is(err, store.ErrDuplicate) {
			return errutil.Conflict("concurrent request with the same idempotency key", err)
		}
		return err
	})
	if err != nil {
		if errutil.StatusOf(err) == errutil.StatusUnknown {
			logger.Error("action failed", zap.Error(err))
		}
		return nil, false, err
	}

	span.SetAttributes(attribute.Bool("replayed", replayed))
	if replayed {
		logger.Info("replayed action", zap.String("idempotency_key", key))
		return out, true, nil
	}
	for _, fn := range u.after {
		fn()
	}
	e.publish(ctx, logger, u.events)
	return out, false, nil
}

func (e *Engine) publish(ctx context.Context, logger *zap.Logger, evs []events.Event) {
	if e.publisher == nil || len(evs) == 0 {
		return
	}
	if err := e.publisher.Publish(context.WithoutCancel(ctx), evs...); err != nil {
		logger.Warn("failed to publish events", zap.Int("count", len(evs)), zap.Error(err))
	}
}

func accountNotFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return errutil.NotFound("account not found", err)
	}
	return err
}

func (e *Engine) load(ctx context.Context, tx store.Tx, accountID string) (*store.Account, *store.ProgressionStats, error) {
	acct, err := tx.GetAccount(ctx, accountID)
	if err != nil {
		return nil, nil, accountNotFound(err)
	}
	stats, err := tx.GetStats(ctx, accountID)
	if err != nil {
		return nil, nil, accountNotFound(err)
	}
	return acct, stats, nil
}

func (e *Engine) saveStats(ctx context.Context, u *unit, stats *store.ProgressionStats) error {
	stats.UpdatedAt = u.now
	return u.tx.UpdateStats(ctx, stats)
}

// reference namespaces a caller key per action, so the ledger rejects a
// second credit under the same key.
func reference(action, key string) string {
	if key == "" {
		return ""
	}
	return action + ":" + key
}

// credit posts an earn-class credit and bumps the earn quests of stats.
func (e *Engine) credit(ctx context.Context, u *unit, stats *store.ProgressionStats, c ledger.Credit) (*ledger.Posting, error) {
	c.Stats = stats
	p, err := e.ledger.CreditTx(ctx, u.tx, c)
	if err != nil {
		return nil, err
	}
	e.progression.BumpQuest(stats, catalog.QuestEarn, c.Amount, u.now)
	e.posted(u, p)
	return p, nil
}

func (e *Engine) posted(u *unit, p *ledger.Posting) {
	if p == nil || p.Transaction == nil {
		return
	}
	kind, amount := p.Transaction.Kind.String(), p.Transaction.Amount
	if amount > 0 {
		u.onCommit(func() { creditsTotal.WithLabelValues(kind).Add(float64(amount)) })
	}
	u.emit(p.Account.ID, events.KindBalanceChanged, events.BalanceChanged{
		Balance:       p.Account.Balance,
		TotalEarned:   p.Account.TotalEarned,
		Delta:         amount,
		TransactionID: p.Transaction.ID,
		Kind:          kind,
	})
}

func (e *Engine) addXP(u *unit, stats *store.ProgressionStats, amount int64) progression.LevelChange {
	change := e.progression.ApplyXP(stats, amount)
	if change.LeveledUp {
		u.emit(stats.AccountID, events.KindLevelUp, events.LevelUp{
			Previous: change.Previous.Number,
			Level:    change.Level.Number,
			Name:     change.Level.Name,
		})
	}
	return change
}

func (e *Engine) evaluate(ctx context.Context, u *unit, facts achievement.Facts) ([]store.AchievementUnlock, error) {
	unlocked, err := e.achievements.Evaluator().EvaluateTx(ctx, u.tx, facts)
	if err != nil {
		return nil, err
	}
	e.announce(u, facts.Account.ID, unlocked)
	return unlocked, nil
}

func (e *Engine) announce(u *unit, accountID string, unlocked []store.AchievementUnlock) {
	for _, un := range unlocked {
		def, _ := e.catalog.Achievement(un.AchievementID)
		u.emit(accountID, events.KindAchievementUnlocked, events.AchievementUnlocked{
			AchievementID: def.ID,
			Title:         def.Title,
			Reward:        def.Reward,
		})
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

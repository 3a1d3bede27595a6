package leaderboard

import (
	"context"
	"errors"

	"dulpton-point/pkg/errutil"
	"dulpton-point/pkg/rediskey"
	"dulpton-point/services/catalog"
	"dulpton-point/services/store"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100
)

type Entry struct {
	Rank      int    `json:"rank"`
	AccountID string `json:"account_id"`
	Username  string `json:"username"`
	Value     int64  `json:"value"`
}

type Snapshot struct {
	Earners []Entry            `json:"earners"`
	Games   map[string][]Entry `json:"games"`
}

func normalize(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return min(limit, MaxLimit)
}

// Service reads rankings from the redis mirror when it has data and from the
// store otherwise.
type Service struct {
	store   store.Store
	catalog *catalog.Catalog
	rdb     *redis.Client
	logger  *zap.Logger
}

type Params struct {
	fx.In

	Store   store.Store
	Catalog *catalog.Catalog
	Redis   *redis.Client `optional:"true"`
	Logger  *zap.Logger   `optional:"true"`
}

func NewService(p Params) *Service {
	s := &Service{store: p.Store, catalog: p.Catalog, rdb: p.Redis, logger: p.Logger}
	if s.logger == nil {
		s.logger = zap.L()
	}
	return s
}

func (s *Service) TopEarners(ctx context.Context, limit int) ([]Entry, error) {
	limit = normalize(limit)
	if entries, ok := s.fromMirror(ctx, rediskey.EarnersLeaderboard(), limit); ok {
		return entries, nil
	}

	var out []Entry
	err := s.store.View(ctx, func(tx store.Tx) error {
		accounts, err := tx.TopAccounts(ctx, limit)
		if err != nil {
			return err
		}
		out = make([]Entry, 0, len(accounts))
		for i, a := range accounts {
			out = append(out, Entry{Rank: i + 1, AccountID: a.ID, Username: a.Username, Value: a.TotalEarned})
		}
		return nil
	})
	return out, err
}

// TopGame ranks accounts by their best score in the game.
func (s *Service) TopGame(ctx context.Context, gameID string, limit int) ([]Entry, error) {
	if _, ok := s.catalog.Game(gameID); !ok {
		return nil, errutil.UnknownEntity("game not found", nil, errutil.WithDetails(errutil.Detail{Field: "game_id", Message: gameID}))
	}
	limit = normalize(limit)
	if entries, ok := s.fromMirror(ctx, rediskey.GameLeaderboard(gameID), limit); ok {
		return entries, nil
	}

	var out []Entry
	err := s.store.View(ctx, func(tx store.Tx) error {
		rows, err := tx.TopGameStats(ctx, gameID, limit)
		if err != nil {
			return err
		}
		out = make([]Entry, 0, len(rows))
		for i, r := range rows {
			out = append(out, Entry{Rank: i + 1, AccountID: r.AccountID, Value: r.BestScore})
		}
		return withUsernames(ctx, tx, out)
	})
	return out, err
}

// TopScores ranks individual plays, so one account may appear several times.
func (s *Service) TopScores(ctx context.Context, gameID string, limit int) ([]Entry, error) {
	if _, ok := s.catalog.Game(gameID); !ok {
		return nil, errutil.UnknownEntity("game not found", nil, errutil.WithDetails(errutil.Detail{Field: "game_id", Message: gameID}))
	}
	limit = normalize(limit)

	var out []Entry
	err := s.store.View(ctx, func(tx store.Tx) error {
		rows, err := tx.TopGameScores(ctx, gameID, limit)
		if err != nil {
			return err
		}
		out = make([]Entry, 0, len(rows))
		for i, r := range rows {
			out = append(out, Entry{Rank: i + 1, AccountID: r.AccountID, Value: r.Score})
		}
		return withUsernames(ctx, tx, out)
	})
	return out, err
}

// Snapshot reads the earners board and every game board concurrently.
func (s *Service) Snapshot(ctx context.Context, limit int) (*Snapshot, error) {
	games := s.catalog.Games()
	boards := make([][]Entry, len(games))
	snap := &Snapshot{Games: make(map[string][]Entry, len(games))}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	g.Go(func() error {
		var err error
		snap.Earners, err = s.TopEarners(gctx, limit)
		return err
	})
	for i, game := range games {
		g.Go(func() error {
			var err error
			boards[i], err = s.TopGame(gctx, game.ID, limit)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for i, game := range games {
		snap.Games[game.ID] = boards[i]
	}
	return snap, nil
}

func (s *Service) fromMirror(ctx context.Context, key string, limit int) ([]Entry, bool) {
	if s.rdb == nil {
		return nil, false
	}
	zs, err := s.rdb.ZRevRangeWithScores(ctx, key, 0, int64(limit-1)).Result()
	if err != nil {
		s.logger.Warn("leaderboard mirror unavailable, reading store", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if len(zs) == 0 {
		return nil, false
	}

	out := make([]Entry, 0, len(zs))
	for i, z := range zs {
		id, _ := z.Member.(string)
		out = append(out, Entry{Rank: i + 1, AccountID: id, Value: int64(z.Score)})
	}
	err = s.store.View(ctx, func(tx store.Tx) error {
		return withUsernames(ctx, tx, out)
	})
	if err != nil {
		s.logger.Warn("failed to resolve leaderboard usernames", zap.String("key", key), zap.Error(err))
	}
	return out, true
}

func withUsernames(ctx context.Context, tx store.Tx, entries []Entry) error {
	for i := range entries {
		a, err := tx.GetAccount(ctx, entries[i].AccountID)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		entries[i].Username = a.Username
	}
	return nil
}

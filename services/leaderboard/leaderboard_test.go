package leaderboard

import (
	"context"
	"fmt"
	"testing"
	"time"

	"dulpton-point/pkg/errutil"
	"dulpton-point/services/catalog"
	"dulpton-point/services/store"
	"dulpton-point/services/testutil"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func backends(t *testing.T) map[string]store.Store {
	t.Helper()
	return map[string]store.Store{
		"memory": store.NewMemory(),
		"gorm":   store.NewGorm(testutil.NewTestDB(t, store.Models()...)),
	}
}

func seed(t *testing.T, st store.Store) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	err := st.Update(ctx, func(tx store.Tx) error {
		for i, earned := range []int64{300, 1200, 50} {
			id := fmt.Sprintf("acct-%d", i)
			if err := tx.CreateAccount(ctx, &store.Account{
				ID: id, Username: fmt.Sprintf("player%d", i), ReferralCode: fmt.Sprintf("CODE%04d", i),
				TotalEarned: earned, Balance: earned,
			}); err != nil {
				return err
			}
			if err := tx.PutGameStats(ctx, &store.GameStats{AccountID: id, GameID: "memory-match", BestScore: int64(100 * (3 - i)), TotalPlays: 1}); err != nil {
				return err
			}
			for j := range 2 {
				if err := tx.AppendGameScore(ctx, &store.GameScore{
					ID: fmt.Sprintf("s-%d-%d", i, j), AccountID: id, GameID: "memory-match",
					Score: int64(10*i + j), CreatedAt: base.Add(time.Duration(i*2+j) * time.Minute),
				}); err != nil {
					return err
				}
			}
		}
		return nil
	})
	require.NoError(t, err)
}

func newService(t *testing.T, st store.Store, rdb *redis.Client) *Service {
	t.Helper()
	c, err := catalog.Default()
	require.NoError(t, err)
	return NewService(Params{Store: st, Catalog: c, Redis: rdb, Logger: zap.NewNop()})
}

func TestTopEarners_FromStore(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			seed(t, st)
			s := newService(t, st, nil)

			top, err := s.TopEarners(context.Background(), 2)
			require.NoError(t, err)
			require.Equal(t, []Entry{
				{Rank: 1, AccountID: "acct-1", Username: "player1", Value: 1200},
				{Rank: 2, AccountID: "acct-0", Username: "player0", Value: 300},
			}, top)
		})
	}
}

func TestTopGameAndScores(t *testing.T) {
	for name, st := range backends(t) {
		t.Run(name, func(t *testing.T) {
			seed(t, st)
			s := newService(t, st, nil)
			ctx := context.Background()

			best, err := s.TopGame(ctx, "memory-match", 0)
			require.NoError(t, err)
			require.Len(t, best, 3)
			require.Equal(t, "acct-0", best[0].AccountID)
			require.Equal(t, "player0", best[0].Username)
			require.Equal(t, int64(300), best[0].Value)

			scores, err := s.TopScores(ctx, "memory-match", 3)
			require.NoError(t, err)
			require.Len(t, scores, 3)
			require.Equal(t, int64(21), scores[0].Value)
			require.Equal(t, "acct-2", scores[0].AccountID)

			_, err = s.TopGame(ctx, "pong", 10)
			require.True(t, errutil.Is(err, errutil.StatusUnknownEntity))
		})
	}
}

func TestSnapshot_CoversEveryGame(t *testing.T) {
	st := store.NewMemory()
	seed(t, st)
	s := newService(t, st, nil)

	snap, err := s.Snapshot(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, snap.Earners, 3)
	require.Len(t, snap.Games, len(catalog.DefaultGames()))
	require.Len(t, snap.Games["memory-match"], 3)
	require.Empty(t, snap.Games["number-rush"])
}

func TestMirrorUnavailable_FallsBackToStore(t *testing.T) {
	st := store.NewMemory()
	seed(t, st)
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1, DialTimeout: 100 * time.Millisecond})
	t.Cleanup(func() { _ = rdb.Close() })
	s := newService(t, st, rdb)

	top, err := s.TopEarners(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "acct-1", top[0].AccountID)
}

func TestNormalize(t *testing.T) {
	require.Equal(t, DefaultLimit, normalize(0))
	require.Equal(t, 7, normalize(7))
	require.Equal(t, MaxLimit, normalize(1000))
}

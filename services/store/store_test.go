package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"dulpton-point/services/store"
	"dulpton-point/services/testutil"

	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

func backends(t *testing.T) map[string]store.Store {
	t.Helper()
	return map[string]store.Store{
		"memory": store.NewMemory(),
		"gorm":   store.NewGorm(testutil.NewTestDB(t, store.Models()...)),
	}
}

func ref(s string) *string { return &s }

func seedAccount(t *testing.T, s store.Store, id, code string) {
	t.Helper()
	err := s.Update(context.Background(), func(tx store.Tx) error {
		if err := tx.CreateAccount(context.Background(), &store.Account{ID: id, ReferralCode: code}); err != nil {
			return err
		}
		return tx.CreateStats(context.Background(), &store.ProgressionStats{AccountID: id, Level: 1})
	})
	require.NoError(t, err)
}

func TestStore_AccountLifecycle(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seedAccount(t, s, "a1", "CODE0001")

			err := s.Update(ctx, func(tx store.Tx) error {
				return tx.CreateAccount(ctx, &store.Account{ID: "a2", ReferralCode: "CODE0001"})
			})
			require.ErrorIs(t, err, store.ErrDuplicate)

			err = s.View(ctx, func(tx store.Tx) error {
				a, err := tx.GetAccountByReferralCode(ctx, "CODE0001")
				require.NoError(t, err)
				require.Equal(t, "a1", a.ID)

				_, err = tx.GetAccount(ctx, "missing")
				require.ErrorIs(t, err, store.ErrNotFound)
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestStore_UpdateRollsBackOnError(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seedAccount(t, s, "a1", "CODE0001")

			err := s.Update(ctx, func(tx store.Tx) error {
				a, err := tx.GetAccount(ctx, "a1")
				require.NoError(t, err)
				a.Balance = 500
				require.NoError(t, tx.UpdateAccount(ctx, a))
				require.NoError(t, tx.AppendTransaction(ctx, &store.Transaction{
					ID: "t1", AccountID: "a1", Number: "N1", Kind: store.KindEarn,
					Amount: 500, Status: store.StatusCompleted, PreviousHash: "GENESIS", Hash: "h",
				}))
				return errBoom
			})
			require.ErrorIs(t, err, errBoom)

			err = s.View(ctx, func(tx store.Tx) error {
				a, err := tx.GetAccount(ctx, "a1")
				require.NoError(t, err)
				require.Zero(t, a.Balance)

				_, err = tx.LastTransaction(ctx, "a1")
				require.ErrorIs(t, err, store.ErrNotFound)
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestStore_TransactionsOrderingAndReference(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seedAccount(t, s, "a1", "CODE0001")
			base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

			err := s.Update(ctx, func(tx store.Tx) error {
				for i, id := range []string{"t1", "t2", "t3"} {
					err := tx.AppendTransaction(ctx, &store.Transaction{
						ID: id, AccountID: "a1", Number: id, Kind: store.KindEarn, Amount: 10,
						Status: store.StatusCompleted, PreviousHash: "p", Hash: "h",
						ReferenceID: ref("ref-" + id), CreatedAt: base.Add(time.Duration(i) * time.Minute),
					})
					require.NoError(t, err)
				}
				err := tx.AppendTransaction(ctx, &store.Transaction{
					ID: "t4", AccountID: "a1", Number: "t4", Kind: store.KindEarn, Amount: 10,
					Status: store.StatusCompleted, PreviousHash: "p", Hash: "h", ReferenceID: ref("ref-t1"),
				})
				require.ErrorIs(t, err, store.ErrDuplicate)
				return nil
			})
			require.NoError(t, err)

			err = s.View(ctx, func(tx store.Tx) error {
				list, err := tx.ListTransactions(ctx, "a1", store.ListOptions{Limit: 2})
				require.NoError(t, err)
				require.Len(t, list, 2)
				require.Equal(t, "t3", list[0].ID)
				require.Equal(t, "t2", list[1].ID)

				rest, err := tx.ListTransactions(ctx, "a1", store.ListOptions{
					After: &store.Cursor{CreatedAt: list[1].CreatedAt, ID: list[1].ID},
				})
				require.NoError(t, err)
				require.Len(t, rest, 1)
				require.Equal(t, "t1", rest[0].ID)

				found, err := tx.FindTransactionByReference(ctx, "a1", "ref-t2")
				require.NoError(t, err)
				require.Equal(t, "t2", found.ID)

				last, err := tx.LastTransaction(ctx, "a1")
				require.NoError(t, err)
				require.Equal(t, "t3", last.ID)
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestStore_TransactionStatusMovesOnce(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seedAccount(t, s, "a1", "CODE0001")

			err := s.Update(ctx, func(tx store.Tx) error {
				return tx.AppendTransaction(ctx, &store.Transaction{
					ID: "w1", AccountID: "a1", Number: "w1", Kind: store.KindWithdraw, Amount: -10,
					Status: store.StatusPending, PreviousHash: "p", Hash: "h",
				})
			})
			require.NoError(t, err)

			err = s.Update(ctx, func(tx store.Tx) error {
				return tx.UpdateTransactionStatus(ctx, "w1", store.StatusPending, store.StatusCompleted)
			})
			require.NoError(t, err)

			err = s.Update(ctx, func(tx store.Tx) error {
				return tx.UpdateTransactionStatus(ctx, "w1", store.StatusPending, store.StatusFailed)
			})
			require.ErrorIs(t, err, store.ErrConflict)
		})
	}
}

func TestStore_UnlockInsertIfAbsentAndClaimOnce(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

			err := s.Update(ctx, func(tx store.Tx) error {
				ok, err := tx.InsertUnlock(ctx, &store.AchievementUnlock{AccountID: "a1", AchievementID: "x", UnlockedAt: now})
				require.NoError(t, err)
				require.True(t, ok)

				ok, err = tx.InsertUnlock(ctx, &store.AchievementUnlock{AccountID: "a1", AchievementID: "x", UnlockedAt: now})
				require.NoError(t, err)
				require.False(t, ok)

				ok, err = tx.MarkClaimed(ctx, "a1", "x", now)
				require.NoError(t, err)
				require.True(t, ok)

				ok, err = tx.MarkClaimed(ctx, "a1", "x", now)
				require.NoError(t, err)
				require.False(t, ok)
				return nil
			})
			require.NoError(t, err)

			err = s.View(ctx, func(tx store.Tx) error {
				list, err := tx.ListUnlocks(ctx, "a1")
				require.NoError(t, err)
				require.Len(t, list, 1)
				require.True(t, list[0].Claimed)
				require.NotNil(t, list[0].ClaimedAt)
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestStore_StatsJSONColumnsRoundTrip(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seedAccount(t, s, "a1", "CODE0001")

			err := s.Update(ctx, func(tx store.Tx) error {
				st, err := tx.GetStats(ctx, "a1")
				require.NoError(t, err)
				st.AddLootBox("box-1")
				q := st.Quests()
				q["daily_spin_wheel@100"] = 1
				st.SetQuests(q)
				st.XP = 42
				return tx.UpdateStats(ctx, st)
			})
			require.NoError(t, err)

			err = s.View(ctx, func(tx store.Tx) error {
				st, err := tx.GetStats(ctx, "a1")
				require.NoError(t, err)
				require.Equal(t, int64(42), st.XP)
				require.Equal(t, []string{"box-1"}, st.LootBoxes.Data())
				require.Equal(t, int64(1), st.Quests()["daily_spin_wheel@100"])
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestStore_GameScoresAndStats(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

			err := s.Update(ctx, func(tx store.Tx) error {
				for i, score := range []int64{10, 50, 30} {
					require.NoError(t, tx.AppendGameScore(ctx, &store.GameScore{
						ID: string(rune('a' + i)), AccountID: "a1", GameID: "g", Score: score,
						CreatedAt: base.Add(time.Duration(i) * time.Second),
					}))
				}
				require.NoError(t, tx.PutGameStats(ctx, &store.GameStats{AccountID: "a1", GameID: "g", BestScore: 50, TotalPlays: 3}))
				return tx.PutGameStats(ctx, &store.GameStats{AccountID: "a1", GameID: "g", BestScore: 60, TotalPlays: 4})
			})
			require.NoError(t, err)

			err = s.View(ctx, func(tx store.Tx) error {
				scores, err := tx.ListGameScores(ctx, "a1", "g")
				require.NoError(t, err)
				require.Len(t, scores, 3)
				require.Equal(t, int64(10), scores[0].Score)

				top, err := tx.TopGameScores(ctx, "g", 1)
				require.NoError(t, err)
				require.Equal(t, int64(50), top[0].Score)

				recent, err := tx.RecentGameScores(ctx, "a1", "", 2)
				require.NoError(t, err)
				require.Equal(t, int64(30), recent[0].Score)

				gs, err := tx.GetGameStats(ctx, "a1", "g")
				require.NoError(t, err)
				require.Equal(t, int64(60), gs.BestScore)
				require.Equal(t, int64(4), gs.TotalPlays)
				return nil
			})
			require.NoError(t, err)
		})
	}
}

func TestStore_ViewRejectsWrites(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			err := s.View(ctx, func(tx store.Tx) error {
				return tx.CreateAccount(ctx, &store.Account{ID: "x", ReferralCode: "X"})
			})
			require.ErrorIs(t, err, store.ErrReadOnly)
		})
	}
}

func TestStore_ActionRecordsAreWriteOnce(t *testing.T) {
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			err := s.Update(ctx, func(tx store.Tx) error {
				return tx.PutActionRecord(ctx, &store.ActionRecord{AccountID: "a1", Key: "k1", Action: "spin", Result: []byte(`{"ok":true}`)})
			})
			require.NoError(t, err)

			err = s.Update(ctx, func(tx store.Tx) error {
				return tx.PutActionRecord(ctx, &store.ActionRecord{AccountID: "a1", Key: "k1", Action: "spin", Result: []byte(`{}`)})
			})
			require.ErrorIs(t, err, store.ErrDuplicate)

			err = s.View(ctx, func(tx store.Tx) error {
				r, err := tx.GetActionRecord(ctx, "a1", "k1")
				require.NoError(t, err)
				require.Equal(t, "spin", r.Action)
				require.JSONEq(t, `{"ok":true}`, string(r.Result))

				_, err = tx.GetActionRecord(ctx, "a2", "k1")
				require.ErrorIs(t, err, store.ErrNotFound)
				return nil
			})
			require.NoError(t, err)
		})
	}
}

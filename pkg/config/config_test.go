package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestLoad_DefaultsAndEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("REWARDS_SIGNUP_BONUS", "250")
	t.Setenv("STORE_BACKEND", "memory")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.Server.Addr)
	require.Equal(t, "memory", cfg.Store.Backend)
	require.Equal(t, int64(250), cfg.Rewards.SignupBonus)
	require.Equal(t, int64(500), cfg.Rewards.ReferralBonus)
	require.Equal(t, int64(5000), cfg.Rewards.MaxGameReward)
	require.Equal(t, time.Hour, cfg.Database.ConnectionPool.ConnMaxLifetime)
}

func TestRewards_Location(t *testing.T) {
	require.Equal(t, time.UTC, Rewards{}.Location())
	require.Equal(t, time.UTC, Rewards{Timezone: "Mars/Olympus"}.Location())
	require.Equal(t, "Asia/Jakarta", Rewards{Timezone: "Asia/Jakarta"}.Location().String())
}

func TestRewards_Launch(t *testing.T) {
	require.True(t, Rewards{}.Launch().IsZero())
	require.True(t, Rewards{LaunchDate: "soon"}.Launch().IsZero())

	at := Rewards{LaunchDate: "2026-01-15", Timezone: "UTC"}.Launch()
	require.Equal(t, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), at)
}

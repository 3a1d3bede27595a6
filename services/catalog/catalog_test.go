package catalog

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	require.Len(t, c.Tasks(), 5)
	require.Len(t, c.Games(), 8)
	require.Len(t, c.Quests(Daily), 3)
	require.Len(t, c.Quests(Weekly), 4)

	var global []string
	perGame := 0
	for _, a := range c.Achievements() {
		if a.Global() {
			global = append(global, a.ID)
			continue
		}
		perGame++
		_, ok := c.Game(a.GameID)
		require.True(t, ok, "achievement %s references unknown game %s", a.ID, a.GameID)
	}
	require.ElementsMatch(t, []string{
		"early_adopter",
		"first_hundred", "first_thousand", "five_thousand_club", "grinder", "big_earner", "dulp_millionaire",
		"first_referral", "referral_master", "social_master", "network_king",
		"first_week", "two_week_streak", "streak_warrior", "streak_legend",
		"task_starter", "task_enthusiast", "task_master", "task_legend",
		"spin_master", "all_rounder",
	}, global)
	require.Equal(t, 8, perGame)
}

func TestNew_RejectsDuplicatesAndBadEntries(t *testing.T) {
	task := NewTask("Complete Daily Survey", "", 50, CategoryDaily, DifficultyEasy, "", "Go")
	require.Equal(t, "complete-daily-survey", task.ID)

	_, err := New([]Task{task, task}, nil, nil, nil)
	require.ErrorContains(t, err, "duplicate task")

	_, err = New(nil, nil, []Achievement{{ID: "a"}}, nil)
	require.ErrorContains(t, err, "no requirement")

	_, err = New(nil, nil, nil, []Quest{{ID: "q", Target: 0}})
	require.ErrorContains(t, err, "non-positive target")

	free := task
	free.Reward = 0
	_, err = New([]Task{free}, nil, nil, nil)
	require.ErrorContains(t, err, "non-positive reward")
}

func TestTask_Available(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	task := NewTask("Product Review", "", 75, CategoryWeb, DifficultyMedium, "", "Go")
	require.True(t, task.Available(now))

	expired := now.Add(-time.Minute)
	task.ExpiresAt = &expired
	require.False(t, task.Available(now))

	task.ExpiresAt = nil
	task.Active = false
	require.False(t, task.Available(now))
}

func TestComparison_Holds(t *testing.T) {
	require.True(t, AtLeast.Holds(10, 10))
	require.False(t, AtLeast.Holds(9, 10))
	require.True(t, AtMost.Holds(60, 60))
	require.False(t, AtMost.Holds(61, 60))
	require.True(t, Equal.Holds(5, 5))
	require.False(t, Comparison(99).Holds(1, 1))
}

func TestAchievement_MarshalEmbedsRequirement(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)
	a, ok := c.Achievement("memory-match-speed-demon")
	require.True(t, ok)

	raw, err := json.Marshal(a)
	require.NoError(t, err)

	var out struct {
		ID          string          `json:"id"`
		Requirement RequirementView `json:"requirement"`
	}
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Equal(t, "memory-match-speed-demon", out.ID)
	require.Equal(t, RequirementView{Type: "time", Operator: "lte", Value: 60}, out.Requirement)
}

func TestCatalog_QuestsOfType(t *testing.T) {
	c, err := Default()
	require.NoError(t, err)

	earn := c.QuestsOfType(QuestEarn)
	require.Len(t, earn, 2)
	require.Equal(t, "daily_earn_500", earn[0].ID)
	require.Equal(t, "weekly_earn_3000", earn[1].ID)
}

package progression

import (
	"time"

	"dulpton-point/services/catalog"
	"dulpton-point/services/quest"
	"dulpton-point/services/reward"
	"dulpton-point/services/store"
)

type LevelChange struct {
	LeveledUp bool         `json:"leveled_up"`
	Previous  reward.Level `json:"previous"`
	Level     reward.Level `json:"level"`
}

// ApplyXP adds amount to stats and recomputes the level. It never lowers XP.
func ApplyXP(levels *reward.LevelTable, stats *store.ProgressionStats, amount int64) LevelChange {
	prev := levels.LevelFor(stats.XP)
	if amount > 0 {
		stats.XP += amount
	}
	cur := levels.LevelFor(stats.XP)
	stats.Level = cur.Number
	return LevelChange{LeveledUp: cur.Number > prev.Number, Previous: prev, Level: cur}
}

func calendarDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// TouchLoginStreak records a login at now. Consecutive calendar days in loc
// extend the streak, a gap resets it to 1 and a second login on the same day
// changes nothing.
func TouchLoginStreak(stats *store.ProgressionStats, now time.Time, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	today := calendarDay(now, loc)

	next := int64(1)
	if last := stats.LastLoginAt; last != nil {
		days := int(today.Sub(calendarDay(*last, loc)) / (24 * time.Hour))
		switch {
		case days <= 0:
			return false
		case days == 1:
			next = stats.LoginStreak + 1
		}
	}

	stats.LoginStreak = next
	stats.MaxLoginStreak = max(stats.MaxLoginStreak, next)
	at := now
	stats.LastLoginAt = &at
	return true
}

// BumpQuest advances every quest of type t in its current window. Counters of
// windows that already ended are dropped.
func BumpQuest(c *catalog.Catalog, stats *store.ProgressionStats, t catalog.QuestType, amount int64, now time.Time, loc *time.Location) {
	progress := stats.Quests()
	pruneQuests(c, progress, now, loc)

	for _, q := range c.QuestsOfType(t) {
		start, _ := quest.Window(q.Period, now, loc)
		key := quest.ProgressKey(q.ID, start)
		if t == catalog.QuestLoginStreak {
			progress[key] = max(progress[key], amount)
			continue
		}
		progress[key] += amount
	}
	stats.SetQuests(progress)
}

func pruneQuests(c *catalog.Catalog, progress map[string]int64, now time.Time, loc *time.Location) {
	for key := range progress {
		id, start, ok := quest.ParseProgressKey(key)
		if !ok {
			delete(progress, key)
			continue
		}
		q, ok := c.Quest(id)
		if !ok {
			delete(progress, key)
			continue
		}
		if current, _ := quest.Window(q.Period, now, loc); !current.Equal(start) {
			delete(progress, key)
		}
	}
}

// RecordWeeklyEarnings adds amount to the earnings of the current week,
// resetting the counter when a new week has started.
func RecordWeeklyEarnings(stats *store.ProgressionStats, amount int64, now time.Time, loc *time.Location) {
	start, _ := quest.Window(catalog.Weekly, now, loc)
	if stats.WeeklyResetAt == nil || !stats.WeeklyResetAt.Equal(start) {
		stats.WeeklyEarnings = 0
		stats.WeeklyResetAt = &start
	}
	stats.WeeklyEarnings += amount
}

// ActiveMultiplier returns the spin multiplier in basis points, or 1x when
// none is active at now.
func ActiveMultiplier(stats *store.ProgressionStats, now time.Time) int64 {
	if stats.MultiplierBP <= 0 || stats.MultiplierExpiresAt == nil || !now.Before(*stats.MultiplierExpiresAt) {
		return reward.BaseBP
	}
	return stats.MultiplierBP
}

// SetMultiplier replaces any active multiplier.
func SetMultiplier(stats *store.ProgressionStats, bp int64, d time.Duration, now time.Time) {
	until := now.Add(d)
	stats.MultiplierBP = bp
	stats.MultiplierExpiresAt = &until
}

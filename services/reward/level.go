package reward

import (
	"errors"
	"fmt"
)

// BaseBP is a 1x multiplier in basis points.
const BaseBP int64 = 10000

type Level struct {
	Number       int    `json:"number"`
	Name         string `json:"name"`
	Icon         string `json:"icon"`
	Threshold    int64  `json:"threshold"`
	MultiplierBP int64  `json:"multiplier_bp"`
}

// LevelTable maps XP to levels. Thresholds are strictly increasing and the
// first one is zero, so every XP value has exactly one level.
type LevelTable struct {
	levels []Level
}

func NewLevelTable(levels []Level) (*LevelTable, error) {
	if len(levels) == 0 {
		return nil, errors.New("reward: empty level table")
	}
	if levels[0].Threshold != 0 {
		return nil, fmt.Errorf("reward: first level threshold must be 0, got %d", levels[0].Threshold)
	}
	for i, l := range levels {
		if l.MultiplierBP <= 0 {
			return nil, fmt.Errorf("reward: level %q has non-positive multiplier", l.Name)
		}
		if i > 0 && l.Threshold <= levels[i-1].Threshold {
			return nil, fmt.Errorf("reward: level %q threshold %d is not above %d", l.Name, l.Threshold, levels[i-1].Threshold)
		}
	}
	out := make([]Level, len(levels))
	for i, l := range levels {
		l.Number = i + 1
		out[i] = l
	}
	return &LevelTable{levels: out}, nil
}

func DefaultLevels() []Level {
	return []Level{
		{Name: "Bronze", Icon: "🥉", Threshold: 0, MultiplierBP: 10000},
		{Name: "Silver", Icon: "🥈", Threshold: 500, MultiplierBP: 10200},
		{Name: "Gold", Icon: "🥇", Threshold: 1500, MultiplierBP: 10500},
		{Name: "Platinum", Icon: "💎", Threshold: 3500, MultiplierBP: 11000},
		{Name: "Diamond", Icon: "💠", Threshold: 7500, MultiplierBP: 11500},
		{Name: "Master", Icon: "👑", Threshold: 15000, MultiplierBP: 12000},
		{Name: "Grandmaster", Icon: "🏆", Threshold: 30000, MultiplierBP: 12500},
		{Name: "Legend", Icon: "⭐", Threshold: 60000, MultiplierBP: 13000},
	}
}

func NewDefaultLevelTable() (*LevelTable, error) {
	return NewLevelTable(DefaultLevels())
}

// LevelFor scans from the highest threshold down.
func (t *LevelTable) LevelFor(xp int64) Level {
	for i := len(t.levels) - 1; i > 0; i-- {
		if xp >= t.levels[i].Threshold {
			return t.levels[i]
		}
	}
	return t.levels[0]
}

// Level returns the level with the given 1-based number.
func (t *LevelTable) Level(number int) (Level, bool) {
	if number < 1 || number > len(t.levels) {
		return Level{}, false
	}
	return t.levels[number-1], true
}

func (t *LevelTable) Levels() []Level {
	return append([]Level(nil), t.levels...)
}

// Progress describes how far xp is between its level and the next one.
type Progress struct {
	Current    Level  `json:"current"`
	Next       *Level `json:"next,omitempty"`
	XPIntoTier int64  `json:"xp_into_level"`
	XPToNext   int64  `json:"xp_to_next"`
	Percent    int64  `json:"percent"`
}

func (t *LevelTable) Progress(xp int64) Progress {
	cur := t.LevelFor(xp)
	p := Progress{Current: cur, XPIntoTier: xp - cur.Threshold, Percent: 100}
	if next, ok := t.Level(cur.Number + 1); ok {
		span := next.Threshold - cur.Threshold
		p.Next = &next
		p.XPToNext = next.Threshold - xp
		p.Percent = p.XPIntoTier * 100 / span
	}
	return p
}

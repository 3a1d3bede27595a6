package reward

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"
)

type OutcomeKind string

const (
	OutcomeDULP       OutcomeKind = "dulp"
	OutcomeXP         OutcomeKind = "xp"
	OutcomeMultiplier OutcomeKind = "multiplier"
	OutcomeLootBox    OutcomeKind = "loot_box"
	OutcomeNothing    OutcomeKind = "nothing"
)

type Rarity string

const (
	RarityCommon Rarity = "common"
	RarityRare   Rarity = "rare"
	RarityEpic   Rarity = "epic"
)

// SpinReward is one wheel slot. Amount is DULP or XP depending on Kind.
type SpinReward struct {
	Kind         OutcomeKind   `json:"kind"`
	Label        string        `json:"label"`
	Amount       int64         `json:"amount,omitempty"`
	MultiplierBP int64         `json:"multiplier_bp,omitempty"`
	Duration     time.Duration `json:"duration,omitempty"`
	Rarity       Rarity        `json:"rarity"`
}

type SpinEntry struct {
	Weight int64
	Reward SpinReward
}

func DefaultSpinTable() []SpinEntry {
	dulp := func(n int64, r Rarity) SpinReward {
		return SpinReward{Kind: OutcomeDULP, Label: fmt.Sprintf("%d DULP", n), Amount: n, Rarity: r}
	}
	xp := func(n int64, r Rarity) SpinReward {
		return SpinReward{Kind: OutcomeXP, Label: fmt.Sprintf("%d XP", n), Amount: n, Rarity: r}
	}
	return []SpinEntry{
		{30, dulp(50, RarityCommon)},
		{25, dulp(100, RarityCommon)},
		{15, dulp(150, RarityCommon)},
		{15, dulp(250, RarityRare)},
		{8, dulp(500, RarityEpic)},
		{3, dulp(1000, RarityEpic)},
		{10, xp(100, RarityCommon)},
		{5, xp(250, RarityRare)},
		{7, SpinReward{Kind: OutcomeMultiplier, Label: "2x Multiplier (1h)", MultiplierBP: 20000, Duration: time.Hour, Rarity: RarityRare}},
		{3, SpinReward{Kind: OutcomeMultiplier, Label: "3x Multiplier (30m)", MultiplierBP: 30000, Duration: 30 * time.Minute, Rarity: RarityEpic}},
		{3, SpinReward{Kind: OutcomeLootBox, Label: "Mystery Box", Rarity: RarityRare}},
		{2, SpinReward{Kind: OutcomeNothing, Label: "Try again tomorrow", Rarity: RarityCommon}},
	}
}

// Spinner draws weighted outcomes. It is safe for concurrent use.
type Spinner struct {
	mu    sync.Mutex
	rng   *rand.Rand
	table []SpinEntry
	total int64
}

func NewSpinner(rng *rand.Rand, table []SpinEntry) (*Spinner, error) {
	if rng == nil {
		return nil, errors.New("reward: nil random source")
	}
	if len(table) == 0 {
		return nil, errors.New("reward: empty spin table")
	}
	var total int64
	for i, e := range table {
		if e.Weight <= 0 {
			return nil, fmt.Errorf("reward: spin entry %d (%s) has non-positive weight", i, e.Reward.Label)
		}
		total += e.Weight
	}
	return &Spinner{rng: rng, table: append([]SpinEntry(nil), table...), total: total}, nil
}

func NewDefaultSpinner() (*Spinner, error) {
	return NewSpinner(rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())), DefaultSpinTable())
}

// Spin draws r uniformly in [0, total) and walks the cumulative bands.
func (s *Spinner) Spin() SpinReward {
	s.mu.Lock()
	r := s.rng.Int64N(s.total)
	s.mu.Unlock()

	for _, e := range s.table {
		if r < e.Weight {
			return e.Reward
		}
		r -= e.Weight
	}
	return s.table[len(s.table)-1].Reward
}

func (s *Spinner) Table() []SpinEntry {
	return append([]SpinEntry(nil), s.table...)
}

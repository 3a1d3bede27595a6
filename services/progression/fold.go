package progression

import (
	"cmp"
	"slices"

	"dulpton-point/services/store"
)

// Fold recomputes GameStats from every score of one (account, game) pair.
// Scores are ordered by (CreatedAt, ID) first, so the result does not depend
// on the input order.
func Fold(accountID, gameID string, scores []store.GameScore, passScore int64) store.GameStats {
	out := store.GameStats{AccountID: accountID, GameID: gameID}
	if len(scores) == 0 {
		return out
	}

	sorted := slices.Clone(scores)
	slices.SortFunc(sorted, func(a, b store.GameScore) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})

	var passes int64
	for i, s := range sorted {
		out.TotalPlays++
		out.TotalScore += s.Score
		if i == 0 || s.Score > out.BestScore {
			out.BestScore = s.Score
		}
		if s.TimeCompleted != nil && (out.BestTime == nil || *s.TimeCompleted < *out.BestTime) {
			v := *s.TimeCompleted
			out.BestTime = &v
		}
		if s.Score >= passScore {
			passes++
			out.CurrentStreak++
			out.MaxStreak = max(out.MaxStreak, out.CurrentStreak)
		} else {
			out.CurrentStreak = 0
		}
		at := s.CreatedAt
		out.LastPlayedAt = &at
	}

	out.AverageScore = float64(out.TotalScore) / float64(out.TotalPlays)
	out.CompletionRate = float64(passes) * 100 / float64(out.TotalPlays)
	return out
}

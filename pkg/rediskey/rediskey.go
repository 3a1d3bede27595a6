package rediskey

import "fmt"

const (
	Root              = "dulpton"
	LeaderboardPrefix = "dulpton:leaderboard"
	SequencePrefix    = "dulpton:seq"
)

func NamespaceKey(namespace, key string) string {
	return fmt.Sprintf("%s:%s", namespace, key)
}

// EarnersLeaderboard returns "dulpton:leaderboard:earners"
func EarnersLeaderboard() string {
	return NamespaceKey(LeaderboardPrefix, "earners")
}

// GameLeaderboard returns "dulpton:leaderboard:game:{gameID}"
func GameLeaderboard(gameID string) string {
	return NamespaceKey(LeaderboardPrefix, "game:"+gameID)
}

// Sequence returns "dulpton:seq:{name}"
func Sequence(name string) string {
	return NamespaceKey(SequencePrefix, name)
}

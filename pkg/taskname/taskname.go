package taskname

const (
	// Ledger tasks
	WithdrawalSettle = "ledger:withdrawal:settle"

	// Event forwarding tasks, consumed by the leaderboard mirror
	EventGameScore = "events:game_score"
	EventBalance   = "events:balance"
)

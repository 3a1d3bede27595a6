package catalog

import "encoding/json"

// Comparison is the operator applied between an observed value and a
// requirement threshold.
type Comparison int

const (
	AtLeast Comparison = iota
	AtMost
	Equal
)

func (c Comparison) String() string {
	switch c {
	case AtLeast:
		return "gte"
	case AtMost:
		return "lte"
	case Equal:
		return "eq"
	default:
		return "unknown"
	}
}

func (c Comparison) Holds(observed, threshold int64) bool {
	switch c {
	case AtLeast:
		return observed >= threshold
	case AtMost:
		return observed <= threshold
	case Equal:
		return observed == threshold
	default:
		return false
	}
}

// Requirement is a closed set of unlock conditions. Only the types in this
// file implement it.
type Requirement interface {
	Kind() string
	isRequirement()
}

type (
	// CompletionCount holds once the game has been played at least Plays times.
	CompletionCount struct{ Plays int64 }
	// Score compares the latest play's score.
	Score struct {
		Cmp   Comparison
		Value int64
	}
	// Time compares the latest play's completion time in seconds. A play
	// without a time never satisfies it.
	Time struct {
		Cmp     Comparison
		Seconds int64
	}
	// GameStreak reads the "streak" metadata of the latest play.
	GameStreak     struct{ AtLeast int64 }
	LoginStreak    struct{ AtLeast int64 }
	TotalEarned    struct{ AtLeast int64 }
	Referrals      struct{ AtLeast int64 }
	TasksCompleted struct{ AtLeast int64 }
	SpinsCompleted struct{ AtLeast int64 }
	// SignupWithin holds for accounts created within Days of the launch date.
	SignupWithin struct{ Days int }
	// Expression is a CEL boolean over the evaluation facts.
	Expression struct{ Source string }
)

func (CompletionCount) Kind() string { return "completion" }
func (Score) Kind() string           { return "score" }
func (Time) Kind() string            { return "time" }
func (GameStreak) Kind() string      { return "streak" }
func (LoginStreak) Kind() string     { return "login_streak" }
func (TotalEarned) Kind() string     { return "total_earned" }
func (Referrals) Kind() string       { return "referrals" }
func (TasksCompleted) Kind() string  { return "tasks_completed" }
func (SpinsCompleted) Kind() string  { return "spins_completed" }
func (SignupWithin) Kind() string    { return "signup_date" }
func (Expression) Kind() string      { return "expression" }

func (CompletionCount) isRequirement() {}
func (Score) isRequirement()           {}
func (Time) isRequirement()            {}
func (GameStreak) isRequirement()      {}
func (LoginStreak) isRequirement()     {}
func (TotalEarned) isRequirement()     {}
func (Referrals) isRequirement()       {}
func (TasksCompleted) isRequirement()  {}
func (SpinsCompleted) isRequirement()  {}
func (SignupWithin) isRequirement()    {}
func (Expression) isRequirement()      {}

// RequirementView is the wire form of a Requirement.
type RequirementView struct {
	Type       string `json:"type"`
	Operator   string `json:"operator,omitempty"`
	Value      int64  `json:"value,omitempty"`
	Expression string `json:"expression,omitempty"`
}

func Describe(r Requirement) RequirementView {
	v := RequirementView{Type: r.Kind(), Operator: AtLeast.String()}
	switch r := r.(type) {
	case CompletionCount:
		v.Value = r.Plays
	case Score:
		v.Operator, v.Value = r.Cmp.String(), r.Value
	case Time:
		v.Operator, v.Value = r.Cmp.String(), r.Seconds
	case GameStreak:
		v.Value = r.AtLeast
	case LoginStreak:
		v.Value = r.AtLeast
	case TotalEarned:
		v.Value = r.AtLeast
	case Referrals:
		v.Value = r.AtLeast
	case TasksCompleted:
		v.Value = r.AtLeast
	case SpinsCompleted:
		v.Value = r.AtLeast
	case SignupWithin:
		v.Operator, v.Value = AtMost.String(), int64(r.Days)
	case Expression:
		v.Operator, v.Expression = "", r.Source
	}
	return v
}

type Achievement struct {
	ID          string      `json:"id"`
	GameID      string      `json:"game_id,omitempty"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Icon        string      `json:"icon"`
	Requirement Requirement `json:"-"`
	Reward      int64       `json:"reward"`
	Active      bool        `json:"active"`
}

// Global reports whether the achievement is not tied to a game.
func (a Achievement) Global() bool {
	return a.GameID == ""
}

func (a Achievement) MarshalJSON() ([]byte, error) {
	type plain Achievement
	return json.Marshal(struct {
		plain
		Requirement RequirementView `json:"requirement"`
	}{plain(a), Describe(a.Requirement)})
}

package catalog

import (
	"fmt"
	"slices"
	"time"

	"github.com/gosimple/slug"
)

type TaskCategory string

const (
	CategorySocial   TaskCategory = "social"
	CategoryWeb      TaskCategory = "web"
	CategoryDaily    TaskCategory = "daily"
	CategoryFeatured TaskCategory = "featured"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	default:
		return false
	}
}

type Task struct {
	ID           string       `json:"id"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	Reward       int64        `json:"reward"`
	Category     TaskCategory `json:"category"`
	Difficulty   Difficulty   `json:"difficulty"`
	ActionURL    string       `json:"action_url,omitempty"`
	ActionText   string       `json:"action_text"`
	Requirements []string     `json:"requirements,omitempty"`
	Active       bool         `json:"active"`
	ExpiresAt    *time.Time   `json:"expires_at,omitempty"`
}

// Repeatable reports whether the task may be completed again each day.
// Every other task is completed once per account.
func (t Task) Repeatable() bool {
	return t.Category == CategoryDaily
}

// Available reports whether the task can be completed at now.
func (t Task) Available(now time.Time) bool {
	return t.Active && (t.ExpiresAt == nil || now.Before(*t.ExpiresAt))
}

type Game struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	BaseReward int64  `json:"base_reward"`
	MaxScore   int64  `json:"max_score"`
	PassScore  int64  `json:"pass_score"`
}

type QuestPeriod string

const (
	Daily  QuestPeriod = "daily"
	Weekly QuestPeriod = "weekly"
)

type QuestType string

const (
	QuestEarn          QuestType = "earn_dulp"
	QuestCompleteTasks QuestType = "complete_tasks"
	QuestReferFriends  QuestType = "refer_friends"
	QuestLoginStreak   QuestType = "login_streak"
	QuestSpinWheel     QuestType = "spin_wheel"
)

type Quest struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Period      QuestPeriod `json:"period"`
	Type        QuestType   `json:"type"`
	Target      int64       `json:"target"`
	Reward      int64       `json:"reward"`
	XPReward    int64       `json:"xp_reward"`
}

// Catalog is the static, read-only set of earning opportunities loaded at
// startup. Lookups never mutate it, so it is safe for concurrent use.
type Catalog struct {
	tasks        []Task
	games        []Game
	achievements []Achievement
	quests       []Quest
}

func New(tasks []Task, games []Game, achievements []Achievement, quests []Quest) (*Catalog, error) {
	c := &Catalog{tasks: tasks, games: games, achievements: achievements, quests: quests}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Catalog) validate() error {
	seen := map[string]bool{}
	check := func(kind, id string) error {
		key := kind + ":" + id
		if id == "" {
			return fmt.Errorf("catalog: empty %s id", kind)
		}
		if seen[key] {
			return fmt.Errorf("catalog: duplicate %s %q", kind, id)
		}
		seen[key] = true
		return nil
	}
	for _, t := range c.tasks {
		if err := check("task", t.ID); err != nil {
			return err
		}
		if t.Reward <= 0 {
			return fmt.Errorf("catalog: task %q has non-positive reward", t.ID)
		}
	}
	for _, g := range c.games {
		if err := check("game", g.ID); err != nil {
			return err
		}
	}
	for _, a := range c.achievements {
		if err := check("achievement", a.ID); err != nil {
			return err
		}
		if a.Requirement == nil {
			return fmt.Errorf("catalog: achievement %q has no requirement", a.ID)
		}
	}
	for _, q := range c.quests {
		if err := check("quest", q.ID); err != nil {
			return err
		}
		if q.Target <= 0 {
			return fmt.Errorf("catalog: quest %q has non-positive target", q.ID)
		}
	}
	return nil
}

func find[T any](items []T, match func(T) bool) (T, bool) {
	i := slices.IndexFunc(items, match)
	if i < 0 {
		var zero T
		return zero, false
	}
	return items[i], true
}

func (c *Catalog) Tasks() []Task { return slices.Clone(c.tasks) }

func (c *Catalog) Task(id string) (Task, bool) {
	return find(c.tasks, func(t Task) bool { return t.ID == id })
}

func (c *Catalog) Games() []Game { return slices.Clone(c.games) }

func (c *Catalog) Game(id string) (Game, bool) {
	return find(c.games, func(g Game) bool { return g.ID == id })
}

func (c *Catalog) Achievements() []Achievement { return slices.Clone(c.achievements) }

func (c *Catalog) Achievement(id string) (Achievement, bool) {
	return find(c.achievements, func(a Achievement) bool { return a.ID == id })
}

func (c *Catalog) Quests(period QuestPeriod) []Quest {
	var out []Quest
	for _, q := range c.quests {
		if q.Period == period {
			out = append(out, q)
		}
	}
	return out
}

func (c *Catalog) QuestsOfType(t QuestType) []Quest {
	var out []Quest
	for _, q := range c.quests {
		if q.Type == t {
			out = append(out, q)
		}
	}
	return out
}

func (c *Catalog) Quest(id string) (Quest, bool) {
	return find(c.quests, func(q Quest) bool { return q.ID == id })
}

// NewTask derives the id from the title.
func NewTask(title, description string, reward int64, category TaskCategory, difficulty Difficulty, actionURL, actionText string) Task {
	return Task{
		ID:          slug.Make(title),
		Title:       title,
		Description: description,
		Reward:      reward,
		Category:    category,
		Difficulty:  difficulty,
		ActionURL:   actionURL,
		ActionText:  actionText,
		Active:      true,
	}
}

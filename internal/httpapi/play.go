package httpapi

import (
	"net/http"

	"dulpton-point/pkg/middleware"
	"dulpton-point/services/catalog"
	"dulpton-point/services/engine"

	"github.com/gin-gonic/gin"
)

func (h *Handler) ListTasks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.engine.Tasks()})
}

func (h *Handler) ListGames(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.engine.Games()})
}

func (h *Handler) AchievementCatalog(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": h.engine.AchievementCatalog()})
}

type spinSlot struct {
	Weight int64  `json:"weight"`
	Kind   string `json:"kind"`
	Label  string `json:"label"`
	Rarity string `json:"rarity"`
}

func (h *Handler) SpinTable(c *gin.Context) {
	table := h.engine.SpinTable()
	out := make([]spinSlot, 0, len(table))
	for _, e := range table {
		out = append(out, spinSlot{Weight: e.Weight, Kind: string(e.Reward.Kind), Label: e.Reward.Label, Rarity: string(e.Reward.Rarity)})
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

func (h *Handler) CompleteTask(c *gin.Context) {
	res, err := h.engine.CompleteTask(c.Request.Context(), accountID(c), c.Param("id"), middleware.IdempotencyKey(c))
	respond(c, http.StatusOK, res, err)
}

func (h *Handler) PlayGame(c *gin.Context) {
	res, err := h.engine.PlayGame(c.Request.Context(), accountID(c), c.Param("id"), middleware.IdempotencyKey(c))
	respond(c, http.StatusOK, res, err)
}

type completeGameRequest struct {
	Score         int64          `json:"score"`
	TimeCompleted *int64         `json:"time_completed"`
	Difficulty    string         `json:"difficulty"`
	Metadata      map[string]any `json:"metadata"`
}

func (h *Handler) CompleteGame(c *gin.Context) {
	var req completeGameRequest
	if !bind(c, &req) {
		return
	}
	res, err := h.engine.CompleteGame(c.Request.Context(), accountID(c), engine.GameCompletion{
		GameID:        c.Param("id"),
		Score:         req.Score,
		TimeCompleted: req.TimeCompleted,
		Difficulty:    req.Difficulty,
		Metadata:      req.Metadata,
	}, middleware.IdempotencyKey(c))
	respond(c, http.StatusOK, res, err)
}

func (h *Handler) SpinStatus(c *gin.Context) {
	res, err := h.engine.SpinStatus(c.Request.Context(), accountID(c))
	respond(c, http.StatusOK, res, err)
}

func (h *Handler) Spin(c *gin.Context) {
	res, err := h.engine.Spin(c.Request.Context(), accountID(c), middleware.IdempotencyKey(c))
	respond(c, http.StatusOK, res, err)
}

func (h *Handler) Quests(c *gin.Context) {
	res, err := h.engine.Quests(c.Request.Context(), accountID(c), catalog.QuestPeriod(c.Param("period")))
	respond(c, http.StatusOK, gin.H{"data": res}, err)
}

func (h *Handler) ClaimQuest(c *gin.Context) {
	res, err := h.engine.ClaimQuest(c.Request.Context(), accountID(c), c.Param("id"), middleware.IdempotencyKey(c))
	respond(c, http.StatusOK, res, err)
}

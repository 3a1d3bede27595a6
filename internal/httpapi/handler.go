package httpapi

import (
	"strconv"

	"dulpton-point/pkg/errutil"
	"dulpton-point/pkg/middleware"
	"dulpton-point/services/engine"
	"dulpton-point/services/events"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Handler exposes the engine over HTTP. Identity comes from the upstream
// gateway through middleware.Identity.
type Handler struct {
	engine *engine.Engine
	broker *events.Broker
	logger *zap.Logger
}

type Params struct {
	fx.In

	Engine *engine.Engine
	Broker *events.Broker
	Logger *zap.Logger `optional:"true"`
}

func NewHandler(p Params) *Handler {
	h := &Handler{engine: p.Engine, broker: p.Broker, logger: p.Logger}
	if h.logger == nil {
		h.logger = zap.L()
	}
	return h
}

// Register mounts every API route on r.
func (h *Handler) Register(r gin.IRouter) {
	api := r.Group("/api")

	api.POST("/accounts", h.Signup)
	api.GET("/tasks", h.ListTasks)
	api.GET("/games", h.ListGames)
	api.GET("/achievements", h.AchievementCatalog)
	api.GET("/spin/table", h.SpinTable)
	api.GET("/leaderboards", h.Leaderboards)
	api.GET("/leaderboards/earners", h.TopEarners)
	api.GET("/leaderboards/games/:id", h.TopGame)

	authed := api.Group("", middleware.Identity(), middleware.ValidIdempotencyKey())

	me := authed.Group("/me")
	me.GET("", h.Profile)
	me.PATCH("", h.UpdateProfile)
	me.POST("/check-in", h.CheckIn)
	me.GET("/transactions", h.Transactions)
	me.GET("/transactions/verify", h.VerifyChain)
	me.POST("/withdrawals", h.Withdraw)
	me.GET("/games", h.ListGameStats)
	me.GET("/games/:gameID", h.GameStats)
	me.GET("/achievements", h.Achievements)
	me.POST("/achievements/:id/claim", h.ClaimAchievement)
	me.GET("/events", h.Events)

	authed.POST("/tasks/:id/complete", h.CompleteTask)
	authed.POST("/games/:id/play", h.PlayGame)
	authed.POST("/games/:id/complete", h.CompleteGame)
	authed.GET("/spin", h.SpinStatus)
	authed.POST("/spin", h.Spin)
	authed.POST("/referrals", h.ApplyReferral)
	authed.GET("/quests/:period", h.Quests)
	authed.POST("/quests/:id/claim", h.ClaimQuest)
}

func accountID(c *gin.Context) string {
	return middleware.AccountID(c.Request.Context())
}

// bind decodes the JSON body, reporting a malformed one as BAD_REQUEST.
func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		_ = c.Error(errutil.BadRequest("invalid request body", err, errutil.WithDetails(errutil.Detail{Message: err.Error()})))
		return false
	}
	return true
}

func limit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		_ = c.Error(errutil.BadRequest("invalid limit", err, errutil.WithDetails(errutil.Detail{Field: "limit", Message: raw})))
		return 0, false
	}
	return n, true
}

// respond writes v, or hands err to middleware.Error.
func respond(c *gin.Context, status int, v any, err error) {
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(status, v)
}

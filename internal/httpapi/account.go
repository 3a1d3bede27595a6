package httpapi

import (
	"net/http"

	"dulpton-point/pkg/db/pagination"
	"dulpton-point/pkg/errutil"
	"dulpton-point/pkg/middleware"
	"dulpton-point/services/engine"

	"github.com/gin-gonic/gin"
)

type signupRequest struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	ReferralCode string `json:"referral_code"`
}

func (h *Handler) Signup(c *gin.Context) {
	var req signupRequest
	if !bind(c, &req) {
		return
	}
	res, err := h.engine.Signup(c.Request.Context(), engine.SignupRequest(req))
	respond(c, http.StatusCreated, res, err)
}

func (h *Handler) Profile(c *gin.Context) {
	res, err := h.engine.Profile(c.Request.Context(), accountID(c))
	respond(c, http.StatusOK, res, err)
}

type updateProfileRequest struct {
	Username string `json:"username" binding:"required"`
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if !bind(c, &req) {
		return
	}
	res, err := h.engine.UpdateProfile(c.Request.Context(), accountID(c), req.Username)
	respond(c, http.StatusOK, res, err)
}

func (h *Handler) CheckIn(c *gin.Context) {
	res, err := h.engine.CheckIn(c.Request.Context(), accountID(c))
	respond(c, http.StatusOK, res, err)
}

func (h *Handler) Transactions(c *gin.Context) {
	var p pagination.Pagination
	if err := c.ShouldBindQuery(&p); err != nil {
		_ = c.Error(errutil.BadRequest("invalid pagination", err))
		return
	}
	res, err := h.engine.Transactions(c.Request.Context(), accountID(c), p)
	respond(c, http.StatusOK, res, err)
}

func (h *Handler) VerifyChain(c *gin.Context) {
	res, err := h.engine.VerifyChain(c.Request.Context(), accountID(c))
	respond(c, http.StatusOK, res, err)
}

type withdrawRequest struct {
	Amount  int64  `json:"amount"`
	Address string `json:"address"`
}

func (h *Handler) Withdraw(c *gin.Context) {
	var req withdrawRequest
	if !bind(c, &req) {
		return
	}
	res, err := h.engine.Withdraw(c.Request.Context(), accountID(c), req.Amount, req.Address, middleware.IdempotencyKey(c))
	respond(c, http.StatusOK, res, err)
}

func (h *Handler) ListGameStats(c *gin.Context) {
	res, err := h.engine.ListGameStats(c.Request.Context(), accountID(c))
	respond(c, http.StatusOK, gin.H{"data": res}, err)
}

func (h *Handler) GameStats(c *gin.Context) {
	res, err := h.engine.GameStats(c.Request.Context(), accountID(c), c.Param("gameID"))
	respond(c, http.StatusOK, res, err)
}

func (h *Handler) Achievements(c *gin.Context) {
	res, err := h.engine.Achievements(c.Request.Context(), accountID(c))
	respond(c, http.StatusOK, gin.H{"data": res}, err)
}

func (h *Handler) ClaimAchievement(c *gin.Context) {
	res, err := h.engine.ClaimAchievement(c.Request.Context(), accountID(c), c.Param("id"), middleware.IdempotencyKey(c))
	respond(c, http.StatusOK, res, err)
}

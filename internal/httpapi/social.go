package httpapi

import (
	"net/http"

	"dulpton-point/pkg/errutil"

	"github.com/gin-gonic/gin"
)

type referralRequest struct {
	Code string `json:"code" binding:"required"`
}

func (h *Handler) ApplyReferral(c *gin.Context) {
	var req referralRequest
	if !bind(c, &req) {
		return
	}
	res, err := h.engine.ApplyReferral(c.Request.Context(), accountID(c), req.Code)
	respond(c, http.StatusOK, res, err)
}

func (h *Handler) Leaderboards(c *gin.Context) {
	n, ok := limit(c)
	if !ok {
		return
	}
	res, err := h.engine.Leaderboards(c.Request.Context(), n)
	respond(c, http.StatusOK, res, err)
}

func (h *Handler) TopEarners(c *gin.Context) {
	n, ok := limit(c)
	if !ok {
		return
	}
	res, err := h.engine.TopEarners(c.Request.Context(), n)
	respond(c, http.StatusOK, gin.H{"data": res}, err)
}

// TopGame ranks by best score, or by raw scores with by=scores.
func (h *Handler) TopGame(c *gin.Context) {
	n, ok := limit(c)
	if !ok {
		return
	}
	ctx, gameID := c.Request.Context(), c.Param("id")

	switch by := c.DefaultQuery("by", "best"); by {
	case "best":
		res, err := h.engine.TopGame(ctx, gameID, n)
		respond(c, http.StatusOK, gin.H{"data": res}, err)
	case "scores":
		res, err := h.engine.TopScores(ctx, gameID, n)
		respond(c, http.StatusOK, gin.H{"data": res}, err)
	default:
		_ = c.Error(errutil.BadRequest("invalid ranking", nil, errutil.WithDetails(errutil.Detail{Field: "by", Message: by})))
	}
}

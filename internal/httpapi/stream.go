package httpapi

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const keepAlive = 25 * time.Second

// Events streams the caller's events as Server-Sent Events until the client
// goes away.
func (h *Handler) Events(c *gin.Context) {
	ctx := c.Request.Context()
	id := accountID(c)
	sub := h.broker.Subscribe(ctx, id)

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	h.logger.Debug("event stream opened", zap.String("account_id", id))
	c.SSEvent("ready", gin.H{"account_id": id})
	c.Writer.Flush()

	c.Stream(func(io.Writer) bool {
		select {
		case ev, ok := <-sub:
			if !ok {
				return false
			}
			c.SSEvent(string(ev.Kind), ev)
			return true
		case <-ticker.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC()})
			return true
		}
	})
	h.logger.Debug("event stream closed", zap.String("account_id", id))
}

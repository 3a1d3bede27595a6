package middleware

import (
	"context"
	"errors"
	"net/http"

	"dulpton-point/pkg/errutil"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Error renders the last handler error. BaseError values keep their code;
// anything else is logged and reported as INTERNAL.
func Error() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}

		var be errutil.BaseError
		switch {
		case errors.As(last.Err, &be):
			c.JSON(be.Code.HTTPStatus(), be.JSON())
		case errors.Is(last.Err, context.Canceled):
			c.JSON(499, errutil.BaseError{Code: errutil.StatusClientClosedRequest, Message: "request canceled"}.JSON())
		default:
			zap.L().Error("unhandled error", zap.String("path", c.FullPath()), zap.Error(last.Err))
			c.JSON(http.StatusInternalServerError, errutil.BaseError{Code: errutil.StatusInternal, Message: "internal error"}.JSON())
		}
	}
}

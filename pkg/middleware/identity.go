package middleware

import (
	"context"
	"fmt"
	"strings"

	"dulpton-point/pkg/errutil"

	"github.com/gin-gonic/gin"
)

// HeaderAccountID is set by the upstream identity gateway once the caller is
// authenticated.
const HeaderAccountID = "X-Account-ID"

// HeaderIdempotencyKey carries a caller-chosen action reference.
const HeaderIdempotencyKey = "Idempotency-Key"

type accountKey struct{}

var AccountContextKey = accountKey{}

// Identity requires an authenticated account id and stores it in the request
// context.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderAccountID))
		if id == "" {
			_ = c.Error(errutil.Unauthorized("missing account identity", nil))
			c.Abort()
			return
		}
		ctx := context.WithValue(c.Request.Context(), AccountContextKey, id)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// AccountID returns the authenticated account id, or "".
func AccountID(ctx context.Context) string {
	id, _ := ctx.Value(AccountContextKey).(string)
	return id
}

// MaxIdempotencyKeyLength bounds the Idempotency-Key header, in bytes.
const MaxIdempotencyKeyLength = 128

// IdempotencyKey returns the trimmed Idempotency-Key header.
func IdempotencyKey(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
}

// ValidIdempotencyKey rejects an Idempotency-Key longer than
// MaxIdempotencyKeyLength instead of shortening it.
func ValidIdempotencyKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		if key := IdempotencyKey(c); len(key) > MaxIdempotencyKeyLength {
			_ = c.Error(errutil.BadRequest("idempotency key too long", nil,
				errutil.WithDetails(errutil.Detail{Field: HeaderIdempotencyKey, Message: fmt.Sprintf("at most %d bytes", MaxIdempotencyKeyLength)})))
			c.Abort()
			return
		}
		c.Next()
	}
}

package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newIdentityRouter() *gin.Engine {
	r := gin.New()
	r.Use(Error())
	r.POST("/act", Identity(), ValidIdempotencyKey(), func(c *gin.Context) {
		c.String(http.StatusOK, AccountID(c.Request.Context())+"|"+IdempotencyKey(c))
	})
	return r
}

func call(r http.Handler, account, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/act", nil)
	if account != "" {
		req.Header.Set(HeaderAccountID, account)
	}
	if key != "" {
		req.Header.Set(HeaderIdempotencyKey, key)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdentity(t *testing.T) {
	r := newIdentityRouter()

	require.Equal(t, http.StatusUnauthorized, call(r, "", "").Code)

	w := call(r, " acct-1 ", " key-1 ")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "acct-1|key-1", w.Body.String())
}

func TestValidIdempotencyKey_RejectsLongKeys(t *testing.T) {
	r := newIdentityRouter()

	atLimit := strings.Repeat("k", MaxIdempotencyKeyLength)
	w := call(r, "acct-1", atLimit)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "acct-1|"+atLimit, w.Body.String())

	w = call(r, "acct-1", atLimit+"x")
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), `"BAD_REQUEST"`)

	// Multi-byte keys are measured in bytes and never split.
	w = call(r, "acct-1", strings.Repeat("é", MaxIdempotencyKeyLength/2+1))
	require.Equal(t, http.StatusBadRequest, w.Code)
}

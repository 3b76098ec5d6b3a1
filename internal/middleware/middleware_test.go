package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func limitedRouter(rl *RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(rl.Middleware())
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }
	r.GET("/orderbook/depth", ok)
	r.POST("/orders/cancel", ok)
	return r
}

func do(r *gin.Engine, method, path, account string) int {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	if account != "" {
		req.Header.Set("X-Account-ID", account)
	}
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimiterRequiresAccountHeader(t *testing.T) {
	r := limitedRouter(NewRateLimiter(time.Minute))
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/orderbook/depth", ""))
}

func TestRateLimiterBucketsPerAccountAndRoute(t *testing.T) {
	r := limitedRouter(NewRateLimiter(time.Minute))

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/orderbook/depth", "alice"))
	assert.Equal(t, http.StatusTooManyRequests, do(r, http.MethodGet, "/orderbook/depth", "alice"))

	// A throttled depth poll does not block the same account's cancel, and
	// other accounts are unaffected.
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/orders/cancel", "alice"))
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/orderbook/depth", "bob"))
}

func TestRateLimiterAdmitsAfterInterval(t *testing.T) {
	rl := NewRateLimiter(time.Minute)
	current := time.Unix(1700000000, 0)
	rl.now = func() time.Time { return current }
	r := limitedRouter(rl)

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/orderbook/depth", "alice"))
	assert.Equal(t, http.StatusTooManyRequests, do(r, http.MethodGet, "/orderbook/depth", "alice"))

	current = current.Add(2 * time.Minute)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/orderbook/depth", "alice"))
}

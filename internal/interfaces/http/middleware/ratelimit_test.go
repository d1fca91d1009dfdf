package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"smartcheck-api/internal/infrastructure/memstore"
)

func newRateLimitedRouter(cfg RateLimitConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/x", RateLimit(cfg, memstore.NewRateLimiter()), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func hit(r *gin.Engine) int {
	req := httptest.NewRequest(http.MethodPost, "/x", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimit_RejectsBeyondLimit(t *testing.T) {
	r := newRateLimitedRouter(RateLimitConfig{
		Enabled:     true,
		MaxRequests: 2,
		Window:      time.Minute,
	})

	assert.Equal(t, http.StatusOK, hit(r))
	assert.Equal(t, http.StatusOK, hit(r))
	assert.Equal(t, http.StatusTooManyRequests, hit(r))
}

func TestRateLimit_DisabledPassesThrough(t *testing.T) {
	r := newRateLimitedRouter(RateLimitConfig{Enabled: false, MaxRequests: 1, Window: time.Minute})

	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, hit(r))
	}
}

func TestRateLimit_ClientsIsolated(t *testing.T) {
	r := newRateLimitedRouter(RateLimitConfig{Enabled: true, MaxRequests: 1, Window: time.Minute})

	reqA := httptest.NewRequest(http.MethodPost, "/x", nil)
	reqA.RemoteAddr = "10.0.0.1:1"
	reqB := httptest.NewRequest(http.MethodPost, "/x", nil)
	reqB.RemoteAddr = "10.0.0.2:1"

	wA := httptest.NewRecorder()
	r.ServeHTTP(wA, reqA)
	wB := httptest.NewRecorder()
	r.ServeHTTP(wB, reqB)

	assert.Equal(t, http.StatusOK, wA.Code)
	assert.Equal(t, http.StatusOK, wB.Code)
}

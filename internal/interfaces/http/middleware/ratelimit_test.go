package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_Allow(t *testing.T) {
	limiter := NewRateLimiter(3, time.Minute)

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow("203.0.113.7"), "delivery %d should pass", i+1)
	}
	assert.False(t, limiter.Allow("203.0.113.7"))
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	limiter := NewRateLimiter(1, time.Minute)

	assert.True(t, limiter.Allow("203.0.113.7"))
	assert.False(t, limiter.Allow("203.0.113.7"))

	// A second sender keeps its own budget
	assert.True(t, limiter.Allow("198.51.100.4"))
}

func TestRateLimiter_WindowReopens(t *testing.T) {
	limiter := NewRateLimiter(1, 30*time.Millisecond)

	assert.True(t, limiter.Allow("203.0.113.7"))
	assert.False(t, limiter.Allow("203.0.113.7"))

	time.Sleep(40 * time.Millisecond)

	assert.True(t, limiter.Allow("203.0.113.7"))
}

func TestRateLimiter_Remaining(t *testing.T) {
	limiter := NewRateLimiter(5, time.Minute)

	assert.Equal(t, 5, limiter.Remaining("203.0.113.7"))

	limiter.Allow("203.0.113.7")
	limiter.Allow("203.0.113.7")

	assert.Equal(t, 3, limiter.Remaining("203.0.113.7"))
}

func TestRateLimiter_ConcurrentCallersNeverExceedLimit(t *testing.T) {
	limiter := NewRateLimiter(50, time.Minute)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.Allow("203.0.113.7") {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, allowed)
}

func rateLimitedRouter(limiter *RateLimiter) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimit(limiter))
	r.POST("/webhooks/billing", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return r
}

func TestRateLimit_PassesWithinBudget(t *testing.T) {
	router := rateLimitedRouter(NewRateLimiter(3, time.Minute))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/webhooks/billing", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimit_RejectsOverBudget(t *testing.T) {
	router := rateLimitedRouter(NewRateLimiter(1, time.Minute))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/webhooks/billing", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/webhooks/billing", nil))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "RATE_LIMIT_EXCEEDED")
}

func TestRateLimit_BudgetRecoversAfterWindow(t *testing.T) {
	router := rateLimitedRouter(NewRateLimiter(1, 30*time.Millisecond))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/webhooks/billing", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/webhooks/billing", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	time.Sleep(40 * time.Millisecond)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("POST", "/webhooks/billing", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

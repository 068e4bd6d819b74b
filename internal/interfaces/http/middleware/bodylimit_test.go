package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func bodyLimitRouter(maxBytes int64) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(BodyLimit(maxBytes))
	r.POST("/webhooks/billing", func(c *gin.Context) {
		if _, err := io.ReadAll(c.Request.Body); err != nil {
			c.String(http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		c.String(http.StatusOK, "received")
	})
	return r
}

func TestBodyLimit_AcceptsSmallPayload(t *testing.T) {
	r := bodyLimitRouter(1024)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/billing",
		strings.NewReader(`{"id":"evt_1","type":"checkout.session.completed"}`))
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestBodyLimit_RejectsByDeclaredLength(t *testing.T) {
	r := bodyLimitRouter(64)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/billing",
		strings.NewReader(strings.Repeat("x", 200)))
	req.ContentLength = 200
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), "REQUEST_TOO_LARGE")
}

func TestBodyLimit_CapsChunkedBody(t *testing.T) {
	// No declared length, so the read itself must hit the cap
	r := bodyLimitRouter(64)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/billing",
		strings.NewReader(strings.Repeat("x", 200)))
	req.ContentLength = -1
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestBodyLimit_IgnoresBodylessRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(BodyLimit(10))
	r.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

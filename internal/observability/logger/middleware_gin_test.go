package logger

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/dormitory/internal/observability/context"
	"github.com/smallbiznis/dormitory/pkg/telemetry/correlation"
	"github.com/stretchr/testify/assert"
)

func TestGinMiddlewarePropagatesIdentifiers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(GinMiddleware(MiddlewareConfig{}))

	var requestID, correlationID string
	router.GET("/ping", func(c *gin.Context) {
		requestID = obscontext.RequestIDFromContext(c.Request.Context())
		correlationID = correlation.ExtractCorrelationID(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(HeaderRequestID, "req-42")
	req.Header.Set(HeaderCorrelationID, "corr-42")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "req-42", requestID)
	assert.Equal(t, "corr-42", correlationID)
	assert.Equal(t, "req-42", w.Header().Get(HeaderRequestID))
	assert.Equal(t, "corr-42", w.Header().Get(HeaderCorrelationID))
}

func TestGinMiddlewareGeneratesIdentifiers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(GinMiddleware(MiddlewareConfig{}))
	router.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.NotEmpty(t, w.Header().Get(HeaderRequestID))
	assert.Len(t, w.Header().Get(HeaderCorrelationID), 26)
}

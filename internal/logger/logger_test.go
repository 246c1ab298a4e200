package logger

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(Config{Level: "loud", Quiet: true}, nil)
	require.Error(t, err)
}

func TestNew_SinkReceivesEntries(t *testing.T) {
	var sink Sink
	log, err := New(Config{Level: "debug", Quiet: true}, &sink)
	require.NoError(t, err)

	log.Info("dropped before attach")

	var buf bytes.Buffer
	sink.Attach(&buf)
	log.Info("printer connected", zap.String("printer", "kitchen"))

	out := buf.String()
	assert.Contains(t, out, "printer connected")
	assert.Contains(t, out, "kitchen")
	assert.NotContains(t, out, "dropped before attach")
}

func TestRequestIDContext(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	assert.Equal(t, "", RequestIDFromContext(context.Background()))
}

func TestGinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.DebugLevel)

	var seen string
	r := gin.New()
	r.Use(GinMiddleware(zap.New(core)))
	r.GET("/printers/:id", func(c *gin.Context) {
		seen = RequestIDFromContext(c.Request.Context())
		c.Status(http.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/printers/9", nil)
	req.Header.Set(RequestIDHeader, "abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, "abc", seen)
	assert.Equal(t, "abc", w.Header().Get(RequestIDHeader))

	entries := logs.FilterMessage("http_request").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zap.WarnLevel, entries[0].Level)
	assert.Equal(t, "/printers/:id", entries[0].ContextMap()["route"])
	assert.Equal(t, "abc", entries[0].ContextMap()["request_id"])
}

func TestGinMiddleware_GeneratesRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware(zap.NewNop()))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.False(t, strings.TrimSpace(w.Header().Get(RequestIDHeader)) == "")
}

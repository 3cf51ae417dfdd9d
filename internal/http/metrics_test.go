package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/askd/internal/telemetry"
)

func TestHTTPMetrics_MetricsMiddleware(t *testing.T) {
	tel := telemetry.NewTestTelemetry()
	m := NewHTTPMetrics(tel.Meter(httpInstrumentationName), zap.NewNop())

	e := echo.New()
	e.Use(m.MetricsMiddleware())
	e.GET("/test", func(c echo.Context) error {
		return c.String(http.StatusOK, "hello")
	})
	e.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.DELETE("/api/v1/sessions/:id", func(c echo.Context) error {
		return c.NoContent(http.StatusNoContent)
	})

	for _, r := range []struct{ method, path string }{
		{http.MethodGet, "/test"},
		{http.MethodGet, "/health"},
		{http.MethodDelete, "/api/v1/sessions/abc"},
	} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(r.method, r.path, nil))
	}

	ctx := context.Background()
	names := tel.MetricNames(ctx)
	assert.Contains(t, names, "askd.http.requests_total")
	assert.Contains(t, names, "askd.http.request_duration_seconds")
	assert.Contains(t, names, "askd.http.response_size_bytes")
	assert.Equal(t, int64(3), tel.Int64Sum(ctx, "askd.http.requests_total"))
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"", "/"},
		{"/health", "/health"},
		{"/api/v1/query", "/api/v1/query"},
		{"/api/v1/sessions/:id", "/api/v1/sessions/:id"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, normalizePath(tt.input), tt.input)
	}
}

func TestResponseStatus(t *testing.T) {
	e := echo.New()
	newCtx := func() echo.Context {
		return e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	}

	fresh := newCtx()
	require.Zero(t, fresh.Response().Status)
	assert.Equal(t, http.StatusOK, responseStatus(fresh, nil), "an unwritten response is reported as 200")
	assert.Equal(t, http.StatusNotFound, responseStatus(newCtx(), echo.NewHTTPError(http.StatusNotFound, "no session")))
	assert.Equal(t, http.StatusInternalServerError, responseStatus(newCtx(), assert.AnError))

	c := newCtx()
	_ = c.NoContent(http.StatusNoContent)
	assert.Equal(t, http.StatusNoContent, responseStatus(c, assert.AnError), "committed status wins")
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"valeservice/internal/caching"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubPinger struct {
	err error
}

func (s stubPinger) Ping(context.Context) error { return s.err }

func TestHealthCheck(t *testing.T) {
	tests := []struct {
		name       string
		dbErr      error
		cache      caching.CacheService
		wantStatus int
		wantHealth string
	}{
		{name: "all healthy", cache: caching.NoopCache{}, wantStatus: http.StatusOK, wantHealth: "healthy"},
		{name: "redis down", cache: caching.NewRedisCacheService("127.0.0.1:1", "", 0), wantStatus: http.StatusOK, wantHealth: "degraded"},
		{name: "database down", dbErr: errors.New("connection refused"), cache: caching.NoopCache{}, wantStatus: http.StatusServiceUnavailable, wantHealth: "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health", nil), rec)

			require.NoError(t, NewHealthHandlers(stubPinger{err: tt.dbErr}, tt.cache).HealthCheck(c))
			assert.Equal(t, tt.wantStatus, rec.Code)

			var health HealthStatus
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
			assert.Equal(t, tt.wantHealth, health.Status)
		})
	}
}

func TestReadinessCheck(t *testing.T) {
	e := echo.New()

	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/health/ready", nil), rec)
	require.NoError(t, NewHealthHandlers(stubPinger{}, nil).ReadinessCheck(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/health/ready", nil), rec)
	require.NoError(t, NewHealthHandlers(stubPinger{err: errors.New("down")}, nil).ReadinessCheck(c))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

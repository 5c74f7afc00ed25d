package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/service"
)

func newMetricsRouter(metrics *service.MetricsService, checks map[string]ReadinessCheck) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewMetricsHandler(metrics, checks)
	r := gin.New()
	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)
	r.GET("/metrics", h.Prometheus)
	r.GET("/metrics/summary", h.Summary)
	return r
}

func TestMetricsHandlerReady(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("connection refused") }

	r := newMetricsRouter(nil, map[string]ReadinessCheck{"postgres": ok})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ready"`)

	r = newMetricsRouter(nil, map[string]ReadinessCheck{"postgres": ok, "redis": down})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "ok", body.Checks["postgres"])
	assert.Equal(t, "connection refused", body.Checks["redis"])
}

func TestMetricsHandlerPrometheusAndSummary(t *testing.T) {
	metrics := service.NewMetricsService()
	metrics.ObserveScheduleRun(service.ScheduleRun{Algorithm: "greedy", Duration: 20 * time.Millisecond, Fitness: 0, Utilization: 75})
	r := newMetricsRouter(metrics, nil)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "greedy"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics/summary", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	var envelope struct {
		Data struct {
			SchedulerRuns             uint64  `json:"scheduler_runs"`
			LastUtilizationPercentage float64 `json:"last_utilization_percentage"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, uint64(1), envelope.Data.SchedulerRuns)
	assert.InDelta(t, 75.0, envelope.Data.LastUtilizationPercentage, 1e-9)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMetricsHandlerWithoutService(t *testing.T) {
	r := newMetricsRouter(nil, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/MuhibNayem/Evaluation-Process-sub001/internal/models"
)

func healthy(ctx context.Context) error { return nil }

func TestHealthHandler_AllHealthy(t *testing.T) {
	handler := NewHealthHandler()
	handler.RegisterHealthCheck("database", true, healthy)
	handler.RegisterHealthCheck("redis", false, healthy)

	rr := httptest.NewRecorder()
	handler.HandleHealthCheck(rr, httptest.NewRequest("GET", "/health", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var response HealthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, models.HealthStatusHealthy, response.Status)
	assert.Len(t, response.Components, 2)
	assert.Equal(t, []string{"database", "redis"}, handler.Components())
}

func TestHealthHandler_NonCriticalDegrades(t *testing.T) {
	handler := NewHealthHandler()
	handler.RegisterHealthCheck("database", true, healthy)
	handler.RegisterHealthCheck("redis", false, func(ctx context.Context) error {
		return errors.New("dial tcp: connection refused")
	})

	rr := httptest.NewRecorder()
	handler.HandleHealthCheck(rr, httptest.NewRequest("GET", "/health", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	var response HealthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, models.HealthStatusDegraded, response.Status)
	assert.Equal(t, "dial tcp: connection refused", response.Components["redis"].Message)

	rr = httptest.NewRecorder()
	handler.HandleReadinessProbe(rr, httptest.NewRequest("GET", "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Ready", rr.Body.String())
}

func TestHealthHandler_CriticalFailure(t *testing.T) {
	handler := NewHealthHandler()
	handler.RegisterHealthCheck("database", true, func(ctx context.Context) error {
		return errors.New("database unreachable")
	})

	rr := httptest.NewRecorder()
	handler.HandleHealthCheck(rr, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"unhealthy"`)

	rr = httptest.NewRecorder()
	handler.HandleReadinessProbe(rr, httptest.NewRequest("GET", "/health/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.Equal(t, "Service Unavailable", rr.Body.String())

	rr = httptest.NewRecorder()
	handler.HandleLivenessProbe(rr, httptest.NewRequest("GET", "/health/live", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "OK", rr.Body.String())
}

func TestHealthHandler_ChecksHaveDeadline(t *testing.T) {
	handler := NewHealthHandler()
	handler.RegisterHealthCheck("database", true, func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		if !ok {
			return errors.New("no deadline")
		}
		return nil
	})

	rr := httptest.NewRecorder()
	handler.HandleReadinessProbe(rr, httptest.NewRequest("GET", "/health/ready", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestHealthHandler_ComponentHealth(t *testing.T) {
	handler := NewHealthHandler()
	handler.RegisterHealthCheck("database", true, healthy)

	rr := httptest.NewRecorder()
	handler.HandleComponentHealth(rr, httptest.NewRequest("GET", "/health/component?component=database", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var check models.HealthCheck
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &check))
	assert.Equal(t, "database", check.Component)
	assert.True(t, check.IsHealthy())

	rr = httptest.NewRecorder()
	handler.HandleComponentHealth(rr, httptest.NewRequest("GET", "/health/component", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	handler.HandleComponentHealth(rr, httptest.NewRequest("GET", "/health/component?component=kafka", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

// MockOutboxStatusCounter is a mock implementation of OutboxStatusCounter
type MockOutboxStatusCounter struct {
	mock.Mock
}

func (m *MockOutboxStatusCounter) CountByStatus(ctx context.Context) (map[models.OutboxStatus]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[models.OutboxStatus]int64), args.Error(1)
}

func TestMetricsHandler_OutboxStatus(t *testing.T) {
	counter := new(MockOutboxStatusCounter)
	counter.On("CountByStatus", mock.Anything).Return(map[models.OutboxStatus]int64{
		models.OutboxStatusPending:   3,
		models.OutboxStatusRetry:     2,
		models.OutboxStatusPublished: 40,
		models.OutboxStatusDead:      1,
	}, nil).Once()
	counter.On("CountByStatus", mock.Anything).Return(nil, errors.New("db down")).Once()

	handler := NewMetricsHandler(promhttp.Handler(), counter)

	rr := httptest.NewRecorder()
	handler.HandleOutboxStatus(rr, httptest.NewRequest("GET", "/api/v1/outbox/status", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var response OutboxStatusResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, int64(5), response.Pending)
	assert.Equal(t, int64(1), response.Counts[models.OutboxStatusDead])

	rr = httptest.NewRecorder()
	handler.HandleOutboxStatus(rr, httptest.NewRequest("GET", "/api/v1/outbox/status", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestMetricsHandler_Prometheus(t *testing.T) {
	handler := NewMetricsHandler(promhttp.Handler(), new(MockOutboxStatusCounter))

	rr := httptest.NewRecorder()
	handler.HandlePrometheus(rr, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}

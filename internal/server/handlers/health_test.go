package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChecker struct {
	err error
}

func (s stubChecker) CheckHealth(ctx context.Context) error {
	return s.err
}

type errorBody struct {
	Error struct {
		Code    string                 `json:"code"`
		Message string                 `json:"message"`
		Details map[string]interface{} `json:"details"`
	} `json:"error"`
}

func TestHealthHandlerReturnsHealthyStatus(t *testing.T) {
	manager := NewHealthManager("1.2.3")
	manager.RegisterChecker("ok", stubChecker{})

	rec := httptest.NewRecorder()
	manager.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "1.2.3", resp.Version)
	assert.Equal(t, StatusHealthy, resp.Checks["ok"])
}

func TestHealthHandlerReturnsServiceUnavailableWhenUnhealthy(t *testing.T) {
	manager := NewHealthManager("1.2.3")
	manager.RegisterChecker("store", CheckerFunc(func(context.Context) error { return errors.New("down") }))

	rec := httptest.NewRecorder()
	manager.HealthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp errorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "SERVICE_UNAVAILABLE", resp.Error.Code)
	checks, ok := resp.Error.Details["checks"].(map[string]interface{})
	require.True(t, ok, "expected checks in error details")
	assert.Equal(t, StatusUnhealthy, checks["store"])
}

func TestProbes(t *testing.T) {
	t.Run("LivenessIgnoresDependencies", func(t *testing.T) {
		manager := NewHealthManager("dev")
		manager.RegisterChecker("store", stubChecker{err: errors.New("down")})

		rec := httptest.NewRecorder()
		manager.LivenessHandler(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("ReadinessFailsOnUnhealthyStore", func(t *testing.T) {
		manager := NewHealthManager("dev")
		manager.RegisterChecker("store", stubChecker{err: errors.New("down")})

		rec := httptest.NewRecorder()
		manager.ReadinessHandler(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
		require.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var resp errorBody
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "ready", resp.Error.Details["probe"])
	})

	t.Run("StartupWaitsForMarkStarted", func(t *testing.T) {
		manager := NewHealthManager("dev")

		rec := httptest.NewRecorder()
		manager.StartupHandler(rec, httptest.NewRequest(http.MethodGet, "/health/startup", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

		manager.MarkStarted()
		rec = httptest.NewRecorder()
		manager.StartupHandler(rec, httptest.NewRequest(http.MethodGet, "/health/startup", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestOverallStatusTreatsTimeoutAsDegraded(t *testing.T) {
	assert.Equal(t, StatusDegraded, overallStatus(map[string]string{"store": StatusTimeout}))
	assert.Equal(t, StatusUnhealthy, overallStatus(map[string]string{"a": StatusTimeout, "b": StatusUnhealthy}))
	assert.Equal(t, StatusHealthy, overallStatus(nil))
}

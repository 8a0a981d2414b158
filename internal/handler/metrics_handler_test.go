package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/taxdesk-api/internal/service"
)

func TestMetricsHandlerReady(t *testing.T) {
	handler := NewMetricsHandler(nil, map[string]Pinger{
		"postgres": PingFunc(func(context.Context) error { return nil }),
		"redis":    PingFunc(func(context.Context) error { return errors.New("connection refused") }),
	}, nil)

	c, rec := jsonContext(t, http.MethodGet, "/ready", nil)
	handler.Ready(c)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "up", body.Checks["postgres"])
	assert.Equal(t, "down", body.Checks["redis"])
}

func TestMetricsHandlerReadyAllUp(t *testing.T) {
	handler := NewMetricsHandler(nil, map[string]Pinger{
		"postgres": PingFunc(func(context.Context) error { return nil }),
	}, nil)
	c, rec := jsonContext(t, http.MethodGet, "/ready", nil)
	handler.Ready(c)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsHandlerPrometheusAndSystem(t *testing.T) {
	metrics := service.NewMetricsService()
	metrics.SetActiveMonitors(2)
	handler := NewMetricsHandler(metrics, nil, nil)

	c, rec := jsonContext(t, http.MethodGet, "/metrics", nil)
	handler.Prometheus(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "taxdesk_admin_guard_session_monitors 2"))

	c, rec = jsonContext(t, http.MethodGet, "/admin/system/metrics", nil)
	handler.System(c)
	require.Equal(t, http.StatusOK, rec.Code)
	var env responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, float64(2), env.Data["activeAdminMonitors"])
}

func TestMetricsHandlerSystemDisabled(t *testing.T) {
	handler := NewMetricsHandler(nil, nil, nil)
	c, rec := jsonContext(t, http.MethodGet, "/admin/system/metrics", nil)
	handler.System(c)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

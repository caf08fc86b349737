package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/hostel-allocation-api/internal/service"
)

func TestMetricsHandlerReady(t *testing.T) {
	ok := ReadinessCheck{Name: "postgres", Check: func(context.Context) error { return nil }}
	down := ReadinessCheck{Name: "redis", Check: func(context.Context) error { return errors.New("connection refused") }}

	c, w := newContext(http.MethodGet, "/ready", "", nil)
	NewMetricsHandler(nil, ok).Ready(c)
	assert.Equal(t, http.StatusOK, w.Code)

	c, w = newContext(http.MethodGet, "/ready", "", nil)
	NewMetricsHandler(nil, ok, down).Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestMetricsHandlerPrometheus(t *testing.T) {
	c, w := newContext(http.MethodGet, "/metrics", "", nil)
	NewMetricsHandler(nil).Prometheus(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	c, w = newContext(http.MethodGet, "/metrics", "", nil)
	NewMetricsHandler(service.NewMetricsService()).Prometheus(c)
	assert.Equal(t, http.StatusOK, w.Code)
}

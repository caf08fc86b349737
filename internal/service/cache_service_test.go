package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type brokenCache struct{ *memCache }

func (b *brokenCache) Get(ctx context.Context, key string, dest interface{}) error {
	return errors.New("connection refused")
}

func TestCacheServiceDisabledIsMiss(t *testing.T) {
	repo := newMemCache()
	svc := NewCacheService(repo, nil, 0, nil, false)
	require.NoError(t, svc.Set(context.Background(), "availability:all", []int{1}, 0))
	assert.Equal(t, 0, repo.size())

	var out []int
	hit, err := svc.Get(context.Background(), "availability:all", &out)
	require.NoError(t, err)
	assert.False(t, hit)

	var nilSvc *CacheService
	assert.False(t, nilSvc.Enabled())
	nilSvc.Invalidate(context.Background(), availabilityCachePattern)
}

func TestCacheServiceRecordsHitsAndMisses(t *testing.T) {
	metrics := NewMetricsService()
	svc := NewCacheService(newMemCache(), metrics, time.Minute, zap.NewNop(), true)
	ctx := context.Background()

	var out []string
	hit, err := svc.Get(ctx, "availability:all", &out)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, svc.Set(ctx, "availability:all", []string{"room-1"}, 0))
	hit, err = svc.Get(ctx, "availability:all", &out)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []string{"room-1"}, out)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.cacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.cacheMisses))
	assert.Equal(t, 0.5, testutil.ToFloat64(metrics.cacheHitRatio))
}

func TestCacheServiceSurfacesBackendErrors(t *testing.T) {
	svc := NewCacheService(&brokenCache{memCache: newMemCache()}, nil, time.Minute, zap.NewNop(), true)
	var out []string
	hit, err := svc.Get(context.Background(), "availability:all", &out)
	assert.Error(t, err)
	assert.False(t, hit)
}

func TestMetricsHandlerExposesAllocationCounters(t *testing.T) {
	metrics := NewMetricsService()
	metrics.RecordAllocation("auto_assign", outcomeSuccess, 15*time.Millisecond)
	metrics.ObserveHTTPRequest(http.MethodPost, "/api/v1/student/assign", http.StatusOK, 20*time.Millisecond)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `hostel_allocation_operations_total{operation="auto_assign",outcome="success"} 1`))
	assert.True(t, strings.Contains(body, "http_requests_total"))

	var nilMetrics *MetricsService
	nilMetrics.RecordAllocation("auto_assign", outcomeError, time.Millisecond)
	rec = httptest.NewRecorder()
	nilMetrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

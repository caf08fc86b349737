package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hostel-allocation-api/internal/models"
	appErrors "github.com/noah-isme/hostel-allocation-api/pkg/errors"
	"github.com/noah-isme/hostel-allocation-api/pkg/logger"
)

type stubValidator struct {
	claims *models.JWTClaims
	err    error
	seen   string
}

func (s *stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	s.seen = token
	return s.claims, s.err
}

type recordingAudit struct {
	logs []*models.AuditLog
}

func (r *recordingAudit) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	r.logs = append(r.logs, log)
	return nil
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/t", handlers...)
	return r
}

func ok(c *gin.Context) { c.Status(http.StatusOK) }

func serve(r http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/t", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTRejectsMissingAndMalformedHeaders(t *testing.T) {
	v := &stubValidator{}
	r := newRouter(JWT(v), ok)

	assert.Equal(t, http.StatusUnauthorized, serve(r, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(r, "Token abc").Code)
	assert.Empty(t, v.seen)
}

func TestJWTPropagatesValidatorError(t *testing.T) {
	v := &stubValidator{err: appErrors.Clone(appErrors.ErrUnauthorized, "token expired")}
	r := newRouter(JWT(v), ok)

	w := serve(r, "Bearer abc")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "token expired")
	assert.Equal(t, "abc", v.seen)
}

func TestJWTStoresClaims(t *testing.T) {
	v := &stubValidator{claims: &models.JWTClaims{UserID: "u-1", Role: models.RoleStudent}}
	var got *models.JWTClaims
	var logged string
	r := newRouter(JWT(v), func(c *gin.Context) {
		got, _ = Claims(c)
		logged = c.GetString(logger.UserIDKey)
		c.Status(http.StatusOK)
	})

	w := serve(r, "bearer abc")
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, got)
	assert.Equal(t, "u-1", got.UserID)
	assert.Equal(t, "u-1", logged)
}

func TestRequireRoles(t *testing.T) {
	student := &stubValidator{claims: &models.JWTClaims{UserID: "s", Role: models.RoleStudent}}
	admin := &stubValidator{claims: &models.JWTClaims{UserID: "a", Role: models.RoleAdmin}}

	assert.Equal(t, http.StatusForbidden, serve(newRouter(JWT(student), RequireRoles(models.RoleAdmin), ok), "Bearer x").Code)
	assert.Equal(t, http.StatusOK, serve(newRouter(JWT(admin), RequireRoles(models.RoleAdmin), ok), "Bearer x").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(newRouter(RequireRoles(models.RoleAdmin), ok), "").Code)
}

func TestAuditRecordsOnlySuccessfulRequests(t *testing.T) {
	rec := &recordingAudit{}
	v := &stubValidator{claims: &models.JWTClaims{UserID: "a", Role: models.RoleAdmin}}

	r := newRouter(JWT(v), Audit(rec, models.AuditActionRoomExport, "rooms"), ok)
	require.Equal(t, http.StatusOK, serve(r, "Bearer x").Code)
	require.Len(t, rec.logs, 1)
	assert.Equal(t, models.AuditActionRoomExport, rec.logs[0].Action)
	require.NotNil(t, rec.logs[0].UserID)
	assert.Equal(t, "a", *rec.logs[0].UserID)

	failing := newRouter(Audit(rec, models.AuditActionRoomExport, "rooms"), func(c *gin.Context) {
		c.Status(http.StatusBadRequest)
	})
	serve(failing, "")
	assert.Len(t, rec.logs, 1)
}

func TestIPRateLimiterRefills(t *testing.T) {
	limiter := NewIPRateLimiter(60, 2)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	assert.True(t, limiter.Allow("1.1.1.1"))
	assert.True(t, limiter.Allow("1.1.1.1"))
	assert.False(t, limiter.Allow("1.1.1.1"))
	assert.True(t, limiter.Allow("2.2.2.2"))

	now = now.Add(time.Second)
	assert.True(t, limiter.Allow("1.1.1.1"))
}

func TestIPRateLimiterForgetsIdleClients(t *testing.T) {
	limiter := NewIPRateLimiter(60, 1)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	limiter.Allow("1.1.1.1")
	now = now.Add(limiterIdleTTL + time.Minute)
	limiter.Allow("2.2.2.2")

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.NotContains(t, limiter.visitors, "1.1.1.1")
}

func TestIPRateLimiterSweepsAtMostOncePerTTL(t *testing.T) {
	limiter := NewIPRateLimiter(60, 1)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start
	limiter.now = func() time.Time { return now }

	limiter.Allow("1.1.1.1")
	now = start.Add(9 * time.Minute)
	limiter.Allow("2.2.2.2")
	now = start.Add(12 * time.Minute)
	limiter.Allow("3.3.3.3")

	limiter.mu.Lock()
	assert.NotContains(t, limiter.visitors, "1.1.1.1")
	assert.Contains(t, limiter.visitors, "2.2.2.2")
	assert.Equal(t, now, limiter.lastSweep)
	limiter.mu.Unlock()

	// 2.2.2.2 is idle past the TTL, but the last sweep was only 8 minutes ago.
	now = start.Add(20 * time.Minute)
	limiter.Allow("4.4.4.4")

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.Contains(t, limiter.visitors, "2.2.2.2")
	assert.Equal(t, start.Add(12*time.Minute), limiter.lastSweep)
}

func TestRateLimitMiddleware(t *testing.T) {
	r := newRouter(RateLimit(NewIPRateLimiter(1, 1)), ok)

	assert.Equal(t, http.StatusOK, serve(r, "").Code)
	w := serve(r, "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
}

func TestRateLimitDisabled(t *testing.T) {
	r := newRouter(RateLimit(NewIPRateLimiter(0, 0)), ok)
	for i := 0; i < 20; i++ {
		require.Equal(t, http.StatusOK, serve(r, "").Code)
	}
}

func TestResponseMetaCarriesCacheHit(t *testing.T) {
	var meta map[string]interface{}
	r := newRouter(WithResponseMeta(), func(c *gin.Context) {
		SetCacheHit(c, true)
		meta = ExtractMeta(c)
		c.Status(http.StatusOK)
	})

	serve(r, "")
	require.NotNil(t, meta)
	assert.Equal(t, true, meta["cache_hit"])
}

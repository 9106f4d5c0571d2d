package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestID(t *testing.T) {
	router := gin.New()
	router.Use(RequestID())
	router.GET("/", func(c *gin.Context) { c.String(http.StatusOK, GetRequestID(c)) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := w.Header().Get(RequestIDHeader)
	assert.NotEmpty(t, generated)
	assert.Equal(t, generated, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

func TestLogger_DoesNotAlterResponse(t *testing.T) {
	router := gin.New()
	router.Use(RequestID(), Logger())
	router.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom?x=1", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func authRouter(cfg AuthConfig) *gin.Engine {
	router := gin.New()
	router.Use(Auth(cfg))
	router.GET("/me", func(c *gin.Context) {
		id, _ := GetUserID(c)
		c.String(http.StatusOK, id)
	})
	return router
}

func TestAuth(t *testing.T) {
	cfg := AuthConfig{Secret: "test-secret", Issuer: "vacaystay"}
	valid, err := IssueToken(cfg, "user-1", time.Hour)
	require.NoError(t, err)
	expired, err := IssueToken(cfg, "user-1", -time.Hour)
	require.NoError(t, err)
	foreign, err := IssueToken(AuthConfig{Secret: "other", Issuer: "vacaystay"}, "user-1", time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name       string
		cfg        AuthConfig
		headers    map[string]string
		wantStatus int
		wantUser   string
	}{
		{"valid bearer", cfg, map[string]string{"Authorization": "Bearer " + valid}, http.StatusOK, "user-1"},
		{"missing", cfg, nil, http.StatusUnauthorized, ""},
		{"expired", cfg, map[string]string{"Authorization": "Bearer " + expired}, http.StatusUnauthorized, ""},
		{"wrong secret", cfg, map[string]string{"Authorization": "Bearer " + foreign}, http.StatusUnauthorized, ""},
		{"not bearer", cfg, map[string]string{"Authorization": "Basic abc"}, http.StatusUnauthorized, ""},
		{"header identity disabled", cfg, map[string]string{UserIDHeader: "user-2"}, http.StatusUnauthorized, ""},
		{
			"header identity enabled",
			AuthConfig{Secret: "test-secret", AllowHeaderIdentity: true},
			map[string]string{UserIDHeader: "user-2"},
			http.StatusOK, "user-2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			authRouter(tt.cfg).ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.wantUser, w.Body.String())
			}
		})
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{RequestsPerSecond: 1, Burst: 2})
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("u1"))
	assert.True(t, rl.Allow("u1"))
	assert.False(t, rl.Allow("u1"))
	assert.True(t, rl.Allow("u2"), "buckets are per key")

	now = now.Add(time.Second)
	assert.True(t, rl.Allow("u1"))
}

func TestRateLimiter_Disabled(t *testing.T) {
	rl := NewRateLimiter(RateLimitConfig{})
	for i := 0; i < 100; i++ {
		require.True(t, rl.Allow("u1"))
	}
}

func TestRateLimit_Middleware(t *testing.T) {
	router := gin.New()
	router.Use(RateLimit(NewRateLimiter(RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1})))
	router.POST("/", func(c *gin.Context) { c.Status(http.StatusCreated) })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusCreated, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func idempotencyRouter(t *testing.T, calls *int32, status int) (*gin.Engine, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	router := gin.New()
	router.Use(func(c *gin.Context) { c.Set(ContextKeyUserID, "user-1"); c.Next() })
	router.Use(Idempotency(DefaultIdempotencyConfig(client)))
	router.POST("/bookings", func(c *gin.Context) {
		n := atomic.AddInt32(calls, 1)
		c.JSON(status, gin.H{"call": n})
	})
	return router, mr
}

func postWithKey(router *gin.Engine, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/bookings", strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyKeyHeader, key)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestIdempotency_ReplaysCompletedResponse(t *testing.T) {
	var calls int32
	router, _ := idempotencyRouter(t, &calls, http.StatusCreated)

	first := postWithKey(router, "k1", `{"startDate":"2030-01-01"}`)
	second := postWithKey(router, "k1", `{"startDate":"2030-01-01"}`)

	assert.Equal(t, http.StatusCreated, first.Code)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get(IdempotencyReplayHeader))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestIdempotency_KeyReusedWithDifferentBody(t *testing.T) {
	var calls int32
	router, _ := idempotencyRouter(t, &calls, http.StatusCreated)

	postWithKey(router, "k1", `{"a":1}`)
	w := postWithKey(router, "k1", `{"a":2}`)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestIdempotency_NoKeyPassesThrough(t *testing.T) {
	var calls int32
	router, _ := idempotencyRouter(t, &calls, http.StatusCreated)

	postWithKey(router, "", `{}`)
	postWithKey(router, "", `{}`)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestIdempotency_ServerErrorIsNotStored(t *testing.T) {
	var calls int32
	router, _ := idempotencyRouter(t, &calls, http.StatusInternalServerError)

	postWithKey(router, "k1", `{}`)
	postWithKey(router, "k1", `{}`)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestIdempotency_FailsOpenWhenRedisDown(t *testing.T) {
	var calls int32
	router, mr := idempotencyRouter(t, &calls, http.StatusCreated)
	mr.Close()

	w := postWithKey(router, "k1", `{}`)
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/storefront/pkg/config"
	"github.com/wyfcoding/storefront/pkg/ratelimit"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type recordedHTTP struct {
	method, path string
	status       int
}

type fakeMetrics struct {
	mu   sync.Mutex
	http []recordedHTTP
	grpc []string
}

func (m *fakeMetrics) RecordHTTPRequest(method, path string, statusCode int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.http = append(m.http, recordedHTTP{method, path, statusCode})
}

func (m *fakeMetrics) RecordGRPCRequest(method, code string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.grpc = append(m.grpc, method+" "+code)
}

func serve(r *gin.Engine, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLoggingSetsRequestID(t *testing.T) {
	r := gin.New()
	r.Use(GinLoggingMiddleware())
	var seen string
	r.GET("/ping", func(c *gin.Context) {
		seen = c.GetString(RequestIDKey)
		c.Status(http.StatusOK)
	})

	w := serve(r, http.MethodGet, "/ping", nil)
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get(RequestIDHeader))

	w = serve(r, http.MethodGet, "/ping", map[string]string{RequestIDHeader: "req-1"})
	assert.Equal(t, "req-1", w.Header().Get(RequestIDHeader))
	assert.Equal(t, "req-1", seen)
}

func TestRecoveryReturns500(t *testing.T) {
	r := gin.New()
	r.Use(GinLoggingMiddleware(), GinRecoveryMiddleware())
	r.GET("/boom", func(*gin.Context) { panic("boom") })

	w := serve(r, http.MethodGet, "/boom", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "Internal server error")
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(GinCORSMiddleware([]string{"https://shop.example"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := serve(r, http.MethodOptions, "/x", map[string]string{"Origin": "https://shop.example"})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://shop.example", w.Header().Get("Access-Control-Allow-Origin"))

	w = serve(r, http.MethodGet, "/x", map[string]string{"Origin": "https://evil.example"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	open := gin.New()
	open.Use(GinCORSMiddleware(nil))
	open.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	w = serve(open, http.MethodGet, "/x", nil)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	m := &fakeMetrics{}
	r := gin.New()
	r.Use(GinMetricsMiddleware(m))
	r.DELETE("/items/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, http.MethodDelete, "/items/42", nil)
	serve(r, http.MethodGet, "/nowhere", nil)

	require.Len(t, m.http, 2)
	assert.Equal(t, recordedHTTP{http.MethodDelete, "/items/:id", http.StatusOK}, m.http[0])
	assert.Equal(t, "unmatched", m.http[1].path)
	assert.Equal(t, http.StatusNotFound, m.http[1].status)
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string, ratelimit.Limit) (*ratelimit.Result, error) {
	return nil, errors.New("redis down")
}

func TestRateLimit(t *testing.T) {
	cfg := config.RateLimitConfig{Enabled: true, Rate: 1, Period: time.Minute, Burst: 2}
	r := gin.New()
	r.Use(RateLimitMiddleware(ratelimit.NewLocalRateLimiter(), cfg))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/x", nil).Code)
	w := serve(r, http.MethodGet, "/x", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))

	w = serve(r, http.MethodGet, "/x", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestRateLimitFailsOpenAndDisabled(t *testing.T) {
	r := gin.New()
	r.Use(RateLimitMiddleware(failingLimiter{}, config.RateLimitConfig{Enabled: true, Rate: 1, Period: time.Second}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	assert.Equal(t, http.StatusOK, serve(r, http.MethodGet, "/x", nil).Code)

	off := gin.New()
	off.Use(RateLimitMiddleware(failingLimiter{}, config.RateLimitConfig{}))
	off.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })
	w := serve(off, http.MethodGet, "/x", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
}

func TestGRPCInterceptors(t *testing.T) {
	info := &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}
	m := &fakeMetrics{}

	panicking := func(context.Context, any) (any, error) { panic("boom") }
	_, err := GRPCRecoveryInterceptor()(context.Background(), nil, info, panicking)
	assert.Equal(t, codes.Internal, status.Code(err))

	ok := func(ctx context.Context, _ any) (any, error) {
		assert.NotEmpty(t, requestIDFromContext(ctx))
		return "pong", nil
	}
	resp, err := GRPCLoggingInterceptor()(context.Background(), nil, info, ok)
	require.NoError(t, err)
	assert.Equal(t, "pong", resp)

	failing := func(context.Context, any) (any, error) { return nil, status.Error(codes.Unavailable, "down") }
	_, err = GRPCMetricsInterceptor(m)(context.Background(), nil, info, failing)
	assert.Error(t, err)
	assert.Equal(t, []string{"/grpc.health.v1.Health/Check Unavailable"}, m.grpc)
}

package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/storefront/internal/cart/application"
	"github.com/wyfcoding/storefront/internal/cart/infrastructure/persistence/memory"
	"github.com/wyfcoding/storefront/pkg/config"
	"github.com/wyfcoding/storefront/pkg/ratelimit"
)

func newTestServer(t *testing.T, trustedProxies []string) http.Handler {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		ServiceName: "cart",
		Cart:        config.CartConfig{Store: config.StoreMemory},
		HTTP:        config.HTTPConfig{TrustedProxies: trustedProxies},
		RateLimit:   config.RateLimitConfig{Enabled: true, Rate: 1, Period: time.Minute, Burst: 1},
	}
	repo := memory.NewCartRepository()
	app := application.NewCartApplicationService(repo, nil, nil, application.Config{WriteTimeout: time.Second})
	t.Cleanup(app.Close)

	srv, err := createHTTPServer(cfg, app, repo, ratelimit.NewLocalRateLimiter(), nil)
	require.NoError(t, err)
	return srv.Handler
}

func healthFrom(h http.Handler, forwardedFor string) int {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "192.0.2.1:40000"
	req.Header.Set("X-Forwarded-For", forwardedFor)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w.Code
}

func TestRateLimitIgnoresForwardedForByDefault(t *testing.T) {
	h := newTestServer(t, nil)

	assert.Equal(t, http.StatusOK, healthFrom(h, "203.0.113.1"))
	assert.Equal(t, http.StatusTooManyRequests, healthFrom(h, "203.0.113.2"))
	assert.Equal(t, http.StatusTooManyRequests, healthFrom(h, "203.0.113.3"))
}

func TestRateLimitUsesForwardedForFromTrustedProxy(t *testing.T) {
	h := newTestServer(t, []string{"192.0.2.0/24"})

	assert.Equal(t, http.StatusOK, healthFrom(h, "203.0.113.1"))
	assert.Equal(t, http.StatusOK, healthFrom(h, "203.0.113.2"))
	assert.Equal(t, http.StatusTooManyRequests, healthFrom(h, "203.0.113.1"))
}

func TestCreateHTTPServerRejectsInvalidProxy(t *testing.T) {
	cfg := &config.Config{HTTP: config.HTTPConfig{TrustedProxies: []string{"not-an-ip"}}}
	_, err := createHTTPServer(cfg, nil, nil, ratelimit.NewLocalRateLimiter(), nil)
	assert.Error(t, err)
}

package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/storefront/internal/cart/application"
	"github.com/wyfcoding/storefront/internal/cart/domain"
	"github.com/wyfcoding/storefront/internal/cart/infrastructure/persistence/memory"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type cartBody struct {
	Cart struct {
		Items []struct {
			ID       int64   `json:"id"`
			Name     string  `json:"name"`
			Price    float64 `json:"price"`
			Quantity int     `json:"quantity"`
			ImageURL string  `json:"imageUrl"`
		} `json:"items"`
		TotalAmount float64 `json:"totalAmount"`
	} `json:"cart"`
	ItemCount int `json:"itemCount"`
	Change    struct {
		Kind    string `json:"kind"`
		Applied int    `json:"applied"`
		Clamped int    `json:"clamped"`
	} `json:"change"`
}

func setupRouter(t *testing.T, repo domain.CartRepository) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	app := application.NewCartApplicationService(repo, nil, nil, application.Config{WriteTimeout: time.Second})
	t.Cleanup(app.Close)

	r := gin.New()
	NewCartHandler(app).RegisterRoutes(&r.RouterGroup)
	return r
}

func do(t *testing.T, r *gin.Engine, method, path, session, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if session != "" {
		req.Header.Set(SessionHeader, session)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w, env
}

func decodeCart(t *testing.T, env envelope) cartBody {
	t.Helper()
	var body cartBody
	require.NoError(t, json.Unmarshal(env.Data, &body))
	return body
}

func TestAddAndGetCart(t *testing.T) {
	r := setupRouter(t, memory.NewCartRepository())

	w, env := do(t, r, http.MethodPost, "/api/v1/cart/items", "s1", `{"id":1,"name":"Shirt","price":19.99,"quantity":2,"imageUrl":"shirt.png"}`)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeCart(t, env)
	assert.Equal(t, "ITEM_ADDED", body.Change.Kind)
	assert.Equal(t, 2, body.ItemCount)
	assert.InDelta(t, 39.98, body.Cart.TotalAmount, 1e-9)

	w, env = do(t, r, http.MethodGet, "/api/v1/cart", "s1", "")
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeCart(t, env)
	require.Len(t, body.Cart.Items, 1)
	assert.Equal(t, "Shirt", body.Cart.Items[0].Name)
	assert.Equal(t, "shirt.png", body.Cart.Items[0].ImageURL)
}

func TestAddItemClampReport(t *testing.T) {
	r := setupRouter(t, memory.NewCartRepository())

	do(t, r, http.MethodPost, "/api/v1/cart/items", "s1", `{"id":5,"name":"Cap","price":"4.50","quantity":8}`)
	_, env := do(t, r, http.MethodPost, "/api/v1/cart/items", "s1", `{"id":5,"name":"Cap","price":"4.50","quantity":6}`)

	body := decodeCart(t, env)
	assert.Equal(t, 2, body.Change.Applied)
	assert.Equal(t, 4, body.Change.Clamped)
	assert.Equal(t, 10, body.Cart.Items[0].Quantity)

	_, env = do(t, r, http.MethodGet, "/api/v1/cart/items/5/remaining", "s1", "")
	var remaining struct {
		Remaining    int  `json:"remaining"`
		LimitReached bool `json:"limitReached"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &remaining))
	assert.Equal(t, 0, remaining.Remaining)
	assert.True(t, remaining.LimitReached)
}

func TestUpdateRemoveClear(t *testing.T) {
	r := setupRouter(t, memory.NewCartRepository())
	do(t, r, http.MethodPost, "/api/v1/cart/items", "s1", `{"id":1,"price":2,"quantity":1}`)
	do(t, r, http.MethodPost, "/api/v1/cart/items", "s1", `{"id":2,"price":3,"quantity":1}`)

	_, env := do(t, r, http.MethodPut, "/api/v1/cart/items/1", "s1", `{"quantity":25}`)
	body := decodeCart(t, env)
	assert.Equal(t, "QUANTITY_UPDATED", body.Change.Kind)
	assert.Equal(t, 15, body.Change.Clamped)
	assert.InDelta(t, 23.0, body.Cart.TotalAmount, 1e-9)

	_, env = do(t, r, http.MethodPut, "/api/v1/cart/items/1", "s1", `{"quantity":0}`)
	assert.Equal(t, "NONE", decodeCart(t, env).Change.Kind)

	_, env = do(t, r, http.MethodDelete, "/api/v1/cart/items/2", "s1", "")
	body = decodeCart(t, env)
	assert.Equal(t, "ITEM_REMOVED", body.Change.Kind)
	assert.InDelta(t, 20.0, body.Cart.TotalAmount, 1e-9)

	_, env = do(t, r, http.MethodGet, "/api/v1/cart/count", "s1", "")
	assert.JSONEq(t, `{"count":10}`, string(env.Data))

	_, env = do(t, r, http.MethodGet, "/api/v1/cart/checkout", "s1", "")
	assert.JSONEq(t, `{"items":[{"id":1,"name":"","price":2,"quantity":10}],"totalAmount":20}`, string(env.Data))

	_, env = do(t, r, http.MethodDelete, "/api/v1/cart", "s1", "")
	body = decodeCart(t, env)
	assert.Equal(t, "CART_CLEARED", body.Change.Kind)
	assert.Empty(t, body.Cart.Items)
	assert.Zero(t, body.ItemCount)
}

func TestSessionFromCookie(t *testing.T) {
	r := setupRouter(t, memory.NewCartRepository())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/session", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, SessionCookie, cookies[0].Name)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", bytes.NewBufferString(`{"id":9,"price":1,"quantity":3}`))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(cookies[0])
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	_, env := do(t, r, http.MethodGet, "/api/v1/cart/count", cookies[0].Value, "")
	assert.JSONEq(t, `{"count":3}`, string(env.Data))
}

func TestBadRequests(t *testing.T) {
	r := setupRouter(t, memory.NewCartRepository())

	tests := []struct {
		name    string
		method  string
		path    string
		session string
		body    string
	}{
		{"missing session", http.MethodGet, "/api/v1/cart", "", ""},
		{"bad json", http.MethodPost, "/api/v1/cart/items", "s1", `{"id":`},
		{"missing id", http.MethodPost, "/api/v1/cart/items", "s1", `{"price":1,"quantity":1}`},
		{"bad price", http.MethodPost, "/api/v1/cart/items", "s1", `{"id":1,"price":"abc","quantity":1}`},
		{"negative price", http.MethodPost, "/api/v1/cart/items", "s1", `{"id":1,"price":-1,"quantity":1}`},
		{"non-integer id", http.MethodDelete, "/api/v1/cart/items/abc", "s1", ""},
		{"missing add quantity", http.MethodPost, "/api/v1/cart/items", "s1", `{"id":1,"price":1}`},
		{"missing quantity", http.MethodPut, "/api/v1/cart/items/1", "s1", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, env := do(t, r, tt.method, tt.path, tt.session, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, http.StatusBadRequest, env.Code)
		})
	}
}

type brokenRepo struct{ memory.CartRepository }

func (*brokenRepo) Load(context.Context, string) (*domain.CartState, error) {
	return nil, errors.New("connection refused")
}

func TestStoreUnavailable(t *testing.T) {
	r := setupRouter(t, &brokenRepo{})

	w, _ := do(t, r, http.MethodGet, "/api/v1/cart", "s1", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/storefront/internal/cart/application"
	"github.com/wyfcoding/storefront/internal/cart/domain"
	"github.com/wyfcoding/storefront/pkg/logger"
	"github.com/wyfcoding/storefront/pkg/response"
)

const (
	SessionHeader = "X-Session-ID"
	SessionCookie = "cart_session"

	sessionCookieMaxAge = 30 * 24 * 3600
)

// CartHandler HTTP 处理器
// 负责处理与购物车相关的 HTTP 请求
type CartHandler struct {
	app *application.CartApplicationService
}

// NewCartHandler 创建 HTTP 处理器实例
func NewCartHandler(app *application.CartApplicationService) *CartHandler {
	return &CartHandler{app: app}
}

// RegisterRoutes 注册路由
func (h *CartHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api/v1/cart")
	{
		api.POST("/session", h.CreateSession)           // 分配会话
		api.GET("", h.GetCart)                          // 获取购物车
		api.GET("/count", h.GetItemCount)               // 角标数量
		api.GET("/checkout", h.GetCheckoutLines)        // 结算条目
		api.GET("/items/:id/remaining", h.GetRemaining) // 剩余可加入数量
		api.POST("/items", h.AddItem)                   // 加入商品
		api.PUT("/items/:id", h.UpdateQuantity)         // 修改数量
		api.DELETE("/items/:id", h.RemoveItem)          // 移除商品
		api.DELETE("", h.ClearCart)                     // 清空购物车
	}
}

// AddItemRequest 加入购物车请求
type AddItemRequest struct {
	ID       int64           `json:"id" binding:"required"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity *int            `json:"quantity" binding:"required"`
	ImageURL string          `json:"imageUrl"`
}

// UpdateQuantityRequest 修改数量请求
type UpdateQuantityRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

// CreateSession 分配新的购物车会话，并写入 cookie
func (h *CartHandler) CreateSession(c *gin.Context) {
	sessionID := uuid.NewString()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, sessionID, sessionCookieMaxAge, "/", "", false, true)
	response.Success(c, gin.H{"sessionId": sessionID})
}

// GetCart 获取购物车
func (h *CartHandler) GetCart(c *gin.Context) {
	sessionID, ok := h.session(c)
	if !ok {
		return
	}
	state, err := h.app.GetCart(c.Request.Context(), sessionID)
	if err != nil {
		h.fail(c, "Failed to get cart", err)
		return
	}
	response.Success(c, cartView(state))
}

// GetItemCount 获取角标数量
func (h *CartHandler) GetItemCount(c *gin.Context) {
	sessionID, ok := h.session(c)
	if !ok {
		return
	}
	count, err := h.app.GetItemCount(c.Request.Context(), sessionID)
	if err != nil {
		h.fail(c, "Failed to get cart count", err)
		return
	}
	response.Success(c, gin.H{"count": count})
}

// GetCheckoutLines 获取结算条目
func (h *CartHandler) GetCheckoutLines(c *gin.Context) {
	sessionID, ok := h.session(c)
	if !ok {
		return
	}
	lines, total, err := h.app.CheckoutLines(c.Request.Context(), sessionID)
	if err != nil {
		h.fail(c, "Failed to get checkout lines", err)
		return
	}
	response.Success(c, gin.H{"items": lines, "totalAmount": json.Number(total.String())})
}

// GetRemaining 获取商品剩余可加入数量
func (h *CartHandler) GetRemaining(c *gin.Context) {
	sessionID, ok := h.session(c)
	if !ok {
		return
	}
	itemID, ok := itemIDParam(c)
	if !ok {
		return
	}
	remaining, err := h.app.Remaining(c.Request.Context(), sessionID, itemID)
	if err != nil {
		h.fail(c, "Failed to get remaining quantity", err)
		return
	}
	response.Success(c, gin.H{
		"id":           itemID,
		"remaining":    remaining,
		"limitReached": remaining == 0,
		"maxQuantity":  domain.MaxQuantity,
	})
}

// AddItem 加入商品
func (h *CartHandler) AddItem(c *gin.Context) {
	sessionID, ok := h.session(c)
	if !ok {
		return
	}

	var req AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	if req.Price.IsNegative() {
		response.ErrorWithStatus(c, http.StatusBadRequest, "price must not be negative", "")
		return
	}

	result, err := h.app.AddItem(c.Request.Context(), application.AddItemCommand{
		SessionID: sessionID,
		ItemID:    req.ID,
		Name:      req.Name,
		Price:     req.Price,
		Quantity:  *req.Quantity,
		ImageURL:  req.ImageURL,
	})
	if err != nil {
		h.fail(c, "Failed to add item", err)
		return
	}
	response.Success(c, resultView(result))
}

// UpdateQuantity 修改数量
func (h *CartHandler) UpdateQuantity(c *gin.Context) {
	sessionID, ok := h.session(c)
	if !ok {
		return
	}
	itemID, ok := itemIDParam(c)
	if !ok {
		return
	}

	var req UpdateQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	result, err := h.app.UpdateQuantity(c.Request.Context(), application.UpdateQuantityCommand{
		SessionID: sessionID,
		ItemID:    itemID,
		Quantity:  *req.Quantity,
	})
	if err != nil {
		h.fail(c, "Failed to update quantity", err)
		return
	}
	response.Success(c, resultView(result))
}

// RemoveItem 移除商品
func (h *CartHandler) RemoveItem(c *gin.Context) {
	sessionID, ok := h.session(c)
	if !ok {
		return
	}
	itemID, ok := itemIDParam(c)
	if !ok {
		return
	}

	result, err := h.app.RemoveItem(c.Request.Context(), application.RemoveItemCommand{SessionID: sessionID, ItemID: itemID})
	if err != nil {
		h.fail(c, "Failed to remove item", err)
		return
	}
	response.Success(c, resultView(result))
}

// ClearCart 清空购物车
func (h *CartHandler) ClearCart(c *gin.Context) {
	sessionID, ok := h.session(c)
	if !ok {
		return
	}

	result, err := h.app.ClearCart(c.Request.Context(), application.ClearCartCommand{SessionID: sessionID})
	if err != nil {
		h.fail(c, "Failed to clear cart", err)
		return
	}
	response.Success(c, resultView(result))
}

// session 从请求头或 cookie 读取会话 ID
func (h *CartHandler) session(c *gin.Context) (string, bool) {
	if id := c.GetHeader(SessionHeader); id != "" {
		return id, true
	}
	if id, err := c.Cookie(SessionCookie); err == nil && id != "" {
		return id, true
	}
	response.ErrorWithStatus(c, http.StatusBadRequest, application.ErrSessionRequired.Error(), "")
	return "", false
}

func (h *CartHandler) fail(c *gin.Context, msg string, err error) {
	if errors.Is(err, application.ErrSessionRequired) {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}
	logger.Error(c.Request.Context(), msg, "error", err)
	response.Error(c, response.WithStatus(http.StatusServiceUnavailable, err))
}

func itemIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid item id", c.Param("id"))
		return 0, false
	}
	return id, true
}

func cartView(state domain.CartState) gin.H {
	return gin.H{
		"cart":      state,
		"itemCount": state.ItemCount(),
	}
}

func resultView(result *application.CartResult) gin.H {
	view := cartView(result.Cart)
	view["change"] = result.Change
	return view
}

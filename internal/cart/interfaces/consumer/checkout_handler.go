// Package consumer 处理外部服务发来的消息
package consumer

import (
	"context"
	"errors"
	"fmt"

	"github.com/wyfcoding/storefront/internal/cart/application"
	"github.com/wyfcoding/storefront/pkg/logger"
	"github.com/wyfcoding/storefront/pkg/mq"
)

// CheckoutCompletedTopic 支付成功后由结算服务发布
const CheckoutCompletedTopic = "checkout.completed"

// ErrMissingSession 事件既没有 session_id 也没有消息 key
var ErrMissingSession = errors.New("checkout event has no session")

// CheckoutCompletedEvent 结算完成事件
type CheckoutCompletedEvent struct {
	SessionID string `json:"session_id"`
	PaymentID string `json:"payment_id"`
}

// CheckoutHandler 结算完成后清空会话购物车
type CheckoutHandler struct {
	app *application.CartApplicationService
}

func NewCheckoutHandler(app *application.CartApplicationService) *CheckoutHandler {
	return &CheckoutHandler{app: app}
}

func (h *CheckoutHandler) Handle(ctx context.Context, msg *mq.Message) error {
	var event CheckoutCompletedEvent
	if err := msg.UnmarshalPayload(&event); err != nil {
		return fmt.Errorf("failed to unmarshal checkout event: %w", err)
	}
	if event.SessionID == "" {
		event.SessionID = msg.Key
	}
	if event.SessionID == "" {
		return fmt.Errorf("offset %d: %w", msg.Offset, ErrMissingSession)
	}

	result, err := h.app.ClearCart(ctx, application.ClearCartCommand{SessionID: event.SessionID})
	if err != nil {
		return err
	}
	logger.Info(ctx, "Cart cleared after checkout",
		"session_id", event.SessionID,
		"payment_id", event.PaymentID,
		"changed", result.Change.Changed())
	return nil
}

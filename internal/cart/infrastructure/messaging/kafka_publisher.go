// Package messaging 购物车事件发布实现
package messaging

import (
	"context"

	"github.com/wyfcoding/storefront/internal/cart/domain"
	"github.com/wyfcoding/storefront/pkg/logger"
	"github.com/wyfcoding/storefront/pkg/mq"
)

// KafkaEventPublisher 把购物车事件写入 Kafka，以会话 ID 作为消息 key
type KafkaEventPublisher struct {
	producer *mq.KafkaProducer
}

// NewKafkaEventPublisher 创建 Kafka 事件发布者
func NewKafkaEventPublisher(producer *mq.KafkaProducer) *KafkaEventPublisher {
	return &KafkaEventPublisher{producer: producer}
}

func (p *KafkaEventPublisher) Publish(ctx context.Context, topic string, key string, event any) error {
	return p.producer.SendMessage(ctx, topic, key, event)
}

// LogEventPublisher Kafka 未启用时使用，只记录日志
type LogEventPublisher struct{}

// NewLogEventPublisher 创建日志事件发布者
func NewLogEventPublisher() *LogEventPublisher {
	return &LogEventPublisher{}
}

func (LogEventPublisher) Publish(ctx context.Context, topic string, key string, _ any) error {
	logger.Debug(ctx, "Cart event", "topic", topic, "session_id", key)
	return nil
}

var (
	_ domain.EventPublisher = (*KafkaEventPublisher)(nil)
	_ domain.EventPublisher = LogEventPublisher{}
)

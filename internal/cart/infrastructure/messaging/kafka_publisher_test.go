package messaging

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/storefront/internal/cart/domain"
	"github.com/wyfcoding/storefront/pkg/mq"
)

type captureWriter struct {
	msgs []kafka.Message
}

func (w *captureWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error { return nil }

func TestKafkaEventPublisher(t *testing.T) {
	w := &captureWriter{}
	pub := NewKafkaEventPublisher(mq.NewProducerWithWriter(w))

	state, change := domain.EmptyCart().AddItem(domain.LineItem{ID: 4, Name: "Cup", Price: decimal.RequireFromString("6.5"), Quantity: 2})
	event := domain.NewCartChangedEvent("sess-9", change, state, time.Unix(1700000000, 0).UTC())

	require.NoError(t, pub.Publish(context.Background(), event.EventName(), "sess-9", event))

	require.Len(t, w.msgs, 1)
	msg := w.msgs[0]
	assert.Equal(t, domain.EventItemAdded, msg.Topic)
	assert.Equal(t, "sess-9", string(msg.Key))

	var payload map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &payload))
	assert.Equal(t, "sess-9", payload["session_id"])
	assert.Equal(t, float64(4), payload["item_id"])
	assert.Equal(t, float64(13), payload["total_amount"])
	assert.Equal(t, float64(2), payload["quantity"])
}

func TestLogEventPublisher(t *testing.T) {
	assert.NoError(t, NewLogEventPublisher().Publish(context.Background(), "cart.cleared", "s", nil))
}

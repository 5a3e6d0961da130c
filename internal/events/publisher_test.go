package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"valeservice/internal/models"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockWriter struct {
	mock.Mock
}

func (m *MockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *MockWriter) Close() error {
	args := m.Called()
	return args.Error(0)
}

func testOrder() *models.Order {
	return &models.Order{
		ID:        uuid.New(),
		TenantID:  uuid.New(),
		ProductID: uuid.New(),
		RequestID: "r-1",
		Quantity:  3,
		Status:    models.OrderStatusCommitted,
		UpdatedAt: time.Now().UTC(),
	}
}

func TestPublishOrderEvent_KeyedByTenantAndProduct(t *testing.T) {
	writer := new(MockWriter)
	order := testOrder()

	writer.On("WriteMessages", mock.Anything, mock.MatchedBy(func(msgs []kafka.Message) bool {
		if len(msgs) != 1 {
			return false
		}
		var event OrderEvent
		if err := json.Unmarshal(msgs[0].Value, &event); err != nil {
			return false
		}
		return string(msgs[0].Key) == order.TenantID.String()+":"+order.ProductID.String() &&
			event.Type == TypeOrderCommitted && event.OrderID == order.ID && event.Quantity == 3
	})).Return(nil)

	publisher := NewPublisher(writer)
	err := publisher.PublishOrderEvent(context.Background(), NewOrderEvent(TypeOrderCommitted, order))
	require.NoError(t, err)
	writer.AssertExpectations(t)
}

func TestPublishOrderEvent_WriteFailureIsWrapped(t *testing.T) {
	writer := new(MockWriter)
	writer.On("WriteMessages", mock.Anything, mock.Anything).Return(errors.New("broker down"))

	err := NewPublisher(writer).PublishOrderEvent(context.Background(), NewOrderEvent(TypeOrderCancelled, testOrder()))
	assert.ErrorContains(t, err, "failed to publish order.cancelled event")
}

func TestNewKafkaPublisher_NoBrokersIsNoop(t *testing.T) {
	publisher := NewKafkaPublisher(" , ", "orders")
	assert.IsType(t, NoopPublisher{}, publisher)
	assert.NoError(t, publisher.PublishOrderEvent(context.Background(), OrderEvent{}))
}

func TestHeaderCarrier_SetReplaces(t *testing.T) {
	msg := kafka.Message{}
	carrier := headerCarrier{msg: &msg}
	carrier.Set("traceparent", "a")
	carrier.Set("traceparent", "b")

	assert.Equal(t, "b", carrier.Get("traceparent"))
	assert.Equal(t, []string{"traceparent"}, carrier.Keys())
}

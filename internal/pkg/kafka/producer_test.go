package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"ess-loan-gateway/internal/pkg/config"
	"ess-loan-gateway/internal/pkg/models"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTopic = "ess-application-status"

// MockProducer is a mock implementation of ProducerInterface for testing.
type MockProducer struct {
	ProduceFunc func(msg *kafka.Message, deliveryChan chan kafka.Event) error
	FlushFunc   func(timeoutMs int) int
	CloseFunc   func()
}

func (m *MockProducer) Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error {
	if m.ProduceFunc != nil {
		return m.ProduceFunc(msg, deliveryChan)
	}
	return nil
}

func (m *MockProducer) Flush(timeoutMs int) int {
	if m.FlushFunc != nil {
		return m.FlushFunc(timeoutMs)
	}
	return 0
}

func (m *MockProducer) Close() {
	if m.CloseFunc != nil {
		m.CloseFunc()
	}
}

func TestNewKafkaProducer(t *testing.T) {
	producer, err := NewKafkaProducer(config.KafkaConfig{
		Server:           "localhost:9092",
		StatusTopic:      testTopic,
		SecurityProtocol: "PLAINTEXT",
		ClientID:         "ess-test",
	})
	require.NoError(t, err)
	defer producer.Close()
	assert.Equal(t, testTopic, producer.topic)

	_, err = NewKafkaProducer(config.KafkaConfig{Server: "localhost:9092", SecurityProtocol: "INVALID_PROTOCOL"})
	assert.Error(t, err)
}

func TestPublishStatusChanged(t *testing.T) {
	var produced *kafka.Message
	mock := &MockProducer{
		ProduceFunc: func(msg *kafka.Message, deliveryChan chan kafka.Event) error {
			produced = msg
			deliveryChan <- &kafka.Message{TopicPartition: msg.TopicPartition}
			return nil
		},
	}

	kp := NewKafkaProducerWithInterface(mock, testTopic)
	err := kp.PublishStatusChanged(context.Background(), models.StatusChangedEvent{
		ApplicationID: "APP-1",
		ToStatus:      "DISBURSED",
		OccurredAt:    time.Now(),
	})
	require.NoError(t, err)

	assert.Equal(t, "APP-1", string(produced.Key))
	assert.Equal(t, testTopic, *produced.TopicPartition.Topic)
	var event models.StatusChangedEvent
	require.NoError(t, json.Unmarshal(produced.Value, &event))
	assert.Equal(t, "DISBURSED", event.ToStatus)
}

func TestPublish_Errors(t *testing.T) {
	t.Run("produce error", func(t *testing.T) {
		mock := &MockProducer{ProduceFunc: func(msg *kafka.Message, ch chan kafka.Event) error {
			return errors.New("queue full")
		}}
		err := NewKafkaProducerWithInterface(mock, testTopic).Publish(context.Background(), "k", []byte("v"))
		assert.EqualError(t, err, "queue full")
	})

	t.Run("delivery error", func(t *testing.T) {
		mock := &MockProducer{ProduceFunc: func(msg *kafka.Message, ch chan kafka.Event) error {
			failed := *msg
			failed.TopicPartition.Error = kafka.NewError(kafka.ErrMsgTimedOut, "timed out", false)
			ch <- &failed
			return nil
		}}
		err := NewKafkaProducerWithInterface(mock, testTopic).Publish(context.Background(), "k", []byte("v"))
		assert.ErrorContains(t, err, "delivery failed")
	})

	t.Run("context cancelled", func(t *testing.T) {
		mock := &MockProducer{}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := NewKafkaProducerWithInterface(mock, testTopic).Publish(ctx, "k", []byte("v"))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestClose_Flushes(t *testing.T) {
	flushed, closed := false, false
	mock := &MockProducer{
		FlushFunc: func(int) int { flushed = true; return 0 },
		CloseFunc: func() { closed = true },
	}
	require.NoError(t, NewKafkaProducerWithInterface(mock, testTopic).Close())
	assert.True(t, flushed)
	assert.True(t, closed)
}

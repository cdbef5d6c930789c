package pubsub

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ess-loan-gateway/internal/pkg/logger"
	"ess-loan-gateway/internal/service/interfaces"
	pubsubServicePkg "ess-loan-gateway/internal/service/pubsub"

	"cloud.google.com/go/pubsub/v2"
	"go.uber.org/zap"
)

const restartDelay = 5 * time.Second

// PubSubClientFactory makes new clients (mockable in tests).
type PubSubClientFactory interface {
	NewPubSubClient(ctx context.Context, projectID string) (interfaces.PubSubClientInterface, error)
}

type defaultPubSubClientFactory struct{}

func (f *defaultPubSubClientFactory) NewPubSubClient(ctx context.Context,
	projectID string) (interfaces.PubSubClientInterface, error) {
	sdkClient, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return &pubSubClientAdapter{client: sdkClient}, nil
}

type pubSubClientAdapter struct {
	client *pubsub.Client
}

func (c *pubSubClientAdapter) Subscriber(subscription string) interfaces.SubscriberInterface {
	return &subscriberAdapter{sub: c.client.Subscriber(subscription)}
}

func (c *pubSubClientAdapter) Close() error {
	return c.client.Close()
}

type subscriberAdapter struct {
	sub *pubsub.Subscriber
}

func (s *subscriberAdapter) Receive(ctx context.Context, f func(context.Context, interfaces.MessageInterface)) error {
	return s.sub.Receive(ctx, func(ctx context.Context, m *pubsub.Message) {
		f(ctx, &messageAdapter{msg: m})
	})
}

func (s *subscriberAdapter) SetMaxExtension(d time.Duration) {
	s.sub.ReceiveSettings.MaxExtension = d
}

func (s *subscriberAdapter) SetMaxOutstandingMessages(n int) {
	if n > 0 {
		s.sub.ReceiveSettings.MaxOutstandingMessages = n
	}
}

type messageAdapter struct {
	msg *pubsub.Message
}

func (m *messageAdapter) ID() string   { return m.msg.ID }
func (m *messageAdapter) Data() []byte { return m.msg.Data }
func (m *messageAdapter) Ack()         { m.msg.Ack() }
func (m *messageAdapter) Nack()        { m.msg.Nack() }

// PubSubConsumer manages subscription consuming with lifecycle.
type PubSubConsumer struct {
	PubSubClient   interfaces.PubSubClientInterface
	MaxOutstanding int
	Ctx            context.Context
	Cancel         context.CancelFunc
}

// NewPubSubConsumer is the default constructor for production use.
// Declared as a variable so tests can replace it.
var NewPubSubConsumer = func(ctx context.Context, projectID string) (*PubSubConsumer, error) {
	return NewPubSubConsumerWithFactory(ctx, projectID, &defaultPubSubClientFactory{})
}

func NewPubSubConsumerWithFactory(ctx context.Context, projectID string,
	factory PubSubClientFactory) (*PubSubConsumer, error) {
	client, err := factory.NewPubSubClient(ctx, projectID)
	if err != nil {
		logger.CtxError(ctx, "Failed creating PubSub client", err)
		return nil, err
	}

	consumerCtx, cancel := context.WithCancel(ctx)
	return &PubSubConsumer{
		PubSubClient: client,
		Ctx:          consumerCtx,
		Cancel:       cancel,
	}, nil
}

// Consume one subscription once. Handler errors nack the message, MessageIgnoreError leaves it to
// redeliver after the ack deadline, success acks.
func (c *PubSubConsumer) Consume(ctx context.Context, subscription string,
	handler func(ctx context.Context, msg []byte) error) error {
	sub := c.PubSubClient.Subscriber(subscription)
	sub.SetMaxExtension(-1)
	sub.SetMaxOutstandingMessages(c.MaxOutstanding)
	return sub.Receive(ctx, func(ctx context.Context, m interfaces.MessageInterface) {
		ctx = logger.WithRequestID(ctx, m.ID())
		if err := handler(ctx, m.Data()); err != nil {
			var ignoreErr *pubsubServicePkg.MessageIgnoreError
			if errors.As(err, &ignoreErr) {
				logger.CtxInfo(ctx, "Message processing ignored, will be redelivered", zap.Error(ignoreErr.Err))
				return
			}
			logger.CtxWarn(ctx, "Nacked the message for immediate retry", zap.Error(err))
			m.Nack()
			return
		}
		logger.CtxDebug(ctx, "Acked the message")
		m.Ack()
	})
}

// StartConsumer continuously listens for messages until the context is cancelled,
// restarting whenever Consume returns.
func (c *PubSubConsumer) StartConsumer(subscription string, handler func(ctx context.Context, msg []byte) error) {
	go func() {
		logger.CtxInfo(c.Ctx, fmt.Sprintf("PubSub consumer starting for subscription: %s", subscription))

		for {
			if c.Ctx.Err() != nil {
				logger.CtxInfo(c.Ctx, "PubSub consumer loop exiting due to context cancellation")
				return
			}

			if err := c.Consume(c.Ctx, subscription, handler); err != nil {
				logger.CtxError(c.Ctx, "Error consuming messages, retrying", err)
			} else {
				logger.CtxInfo(c.Ctx, "PubSub consumer stopped without error, restarting...")
			}

			select {
			case <-c.Ctx.Done():
			case <-time.After(restartDelay):
			}
		}
	}()
}

func (c *PubSubConsumer) Close() error {
	if c.Cancel != nil {
		c.Cancel()
	}
	return c.PubSubClient.Close()
}

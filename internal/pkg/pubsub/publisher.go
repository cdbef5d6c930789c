package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"ess-loan-gateway/internal/pkg/logger"
	"ess-loan-gateway/internal/pkg/models"
	"ess-loan-gateway/internal/service/interfaces"

	"cloud.google.com/go/pubsub/v2"
)

// PubSubPublisher manages topic publishing with lifecycle.
type PubSubPublisher struct {
	PubSubClient    interfaces.PubSubPublisherClientInterface
	DeadLetterTopic string
	Ctx             context.Context
	Cancel          context.CancelFunc
}

// PubSubPublisherClientFactory makes new clients (mockable in tests).
type PubSubPublisherClientFactory interface {
	NewPubSubPublisherClient(ctx context.Context, projectID string) (interfaces.PubSubPublisherClientInterface, error)
}

type defaultPubSubPublisherClientFactory struct{}

func (f *defaultPubSubPublisherClientFactory) NewPubSubPublisherClient(ctx context.Context,
	projectID string) (interfaces.PubSubPublisherClientInterface, error) {
	sdkClient, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return &pubSubPublisherClientAdapter{client: sdkClient}, nil
}

type pubSubPublisherClientAdapter struct {
	client *pubsub.Client
}

func (c *pubSubPublisherClientAdapter) Publisher(topic string) interfaces.PublisherInterface {
	return &publisherAdapter{publisher: c.client.Publisher(topic)}
}

func (c *pubSubPublisherClientAdapter) Close() error {
	return c.client.Close()
}

type publisherAdapter struct {
	publisher *pubsub.Publisher
}

func (p *publisherAdapter) Publish(ctx context.Context, msg []byte, attributes map[string]string) error {
	result := p.publisher.Publish(ctx, &pubsub.Message{
		Data:       msg,
		Attributes: attributes,
	})
	_, err := result.Get(ctx)
	return err
}

// NewPubSubPublisher is the default constructor for production use.
// Declared as a variable so tests can replace it.
var NewPubSubPublisher = func(ctx context.Context, projectID, deadLetterTopic string) (*PubSubPublisher, error) {
	return NewPubSubPublisherWithFactory(ctx, projectID, deadLetterTopic, &defaultPubSubPublisherClientFactory{})
}

func NewPubSubPublisherWithFactory(ctx context.Context, projectID, deadLetterTopic string,
	factory PubSubPublisherClientFactory) (*PubSubPublisher, error) {
	client, err := factory.NewPubSubPublisherClient(ctx, projectID)
	if err != nil {
		logger.CtxError(ctx, "Failed creating PubSub client", err)
		return nil, err
	}
	logger.CtxInfo(ctx, "PubSub publisher created")

	publisherCtx, cancel := context.WithCancel(ctx)
	return &PubSubPublisher{
		PubSubClient:    client,
		DeadLetterTopic: deadLetterTopic,
		Ctx:             publisherCtx,
		Cancel:          cancel,
	}, nil
}

// Publish publishes a message to a topic.
func (p *PubSubPublisher) Publish(ctx context.Context, topic string, msg []byte, attributes map[string]string) error {
	return p.PubSubClient.Publisher(topic).Publish(ctx, msg, attributes)
}

// PublishDeadLetter reports a callback that will not be retried any more.
func (p *PubSubPublisher) PublishDeadLetter(ctx context.Context, letter models.CallbackDeadLetter) error {
	payload, err := json.Marshal(letter)
	if err != nil {
		return fmt.Errorf("marshal dead letter: %w", err)
	}
	return p.Publish(ctx, p.DeadLetterTopic, payload, map[string]string{
		"applicationId": letter.ApplicationID,
		"messageType":   letter.MessageType,
	})
}

func (p *PubSubPublisher) Close() error {
	if p.Cancel != nil {
		p.Cancel()
	}
	return p.PubSubClient.Close()
}

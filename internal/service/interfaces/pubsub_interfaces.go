package interfaces

import (
	"context"
	"time"
)

// MessageInterface defines the methods we need from pubsub.Message
type MessageInterface interface {
	ID() string
	Data() []byte
	Ack()
	Nack()
}

// SubscriberInterface defines the methods we need from pubsub.Subscriber
type SubscriberInterface interface {
	Receive(ctx context.Context, f func(context.Context, MessageInterface)) error
	SetMaxExtension(d time.Duration)
	SetMaxOutstandingMessages(n int)
}

// PubSubClientInterface defines the methods we need from pubsub.Client
type PubSubClientInterface interface {
	Subscriber(subscription string) SubscriberInterface
	Close() error
}

// PublisherInterface defines the methods we need from pubsub.Publisher
type PublisherInterface interface {
	Publish(ctx context.Context, msg []byte, attributes map[string]string) error
}

// PubSubPublisherClientInterface defines the methods we need from pubsub.Client for publishing
type PubSubPublisherClientInterface interface {
	Publisher(topic string) PublisherInterface
	Close() error
}

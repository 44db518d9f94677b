// Package pubsub publishes notifications to a Google Cloud Pub/Sub topic.
package pubsub

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// Attribute keys set on every published message.
const (
	AttrRecipient   = "recipient"
	AttrContentType = "content_type"
)

type topicPublisher interface {
	Publish(ctx context.Context, msg *pubsub.Message) *pubsub.PublishResult
}

// Notifier publishes plain-text messages to a topic.
type Notifier struct {
	topic     topicPublisher
	recipient string
}

// New wraps an existing topic handle.
func New(topic *pubsub.Topic, recipient string) *Notifier {
	return &Notifier{topic: topic, recipient: recipient}
}

// Dial opens a Pub/Sub client for projectID and returns a Notifier for
// topicID together with a close function that flushes and releases it.
func Dial(
	ctx context.Context,
	projectID, topicID, recipient string,
	opts ...option.ClientOption,
) (*Notifier, func() error, error) {
	if projectID == "" || topicID == "" {
		return nil, nil, errors.New("pubsub project id and topic are required")
	}
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("create pubsub client: %w", err)
	}
	topic := client.Topic(topicID)
	closeFn := func() error {
		topic.Stop()
		if err := client.Close(); err != nil {
			return fmt.Errorf("close pubsub client: %w", err)
		}
		return nil
	}
	return New(topic, recipient), closeFn, nil
}

// Send publishes message and waits for the server ack.
func (n *Notifier) Send(ctx context.Context, message string) error {
	if n.topic == nil {
		return errors.New("pubsub topic is not configured")
	}
	msg := &pubsub.Message{
		Data: []byte(message),
		Attributes: map[string]string{
			AttrContentType: "text/plain",
		},
	}
	if n.recipient != "" {
		msg.Attributes[AttrRecipient] = n.recipient
	}
	if _, err := n.topic.Publish(ctx, msg).Get(ctx); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

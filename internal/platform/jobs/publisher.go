package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
)

// OrderSubmittedMessage is the payload consumed by the notification e-mail worker.
type OrderSubmittedMessage struct {
	OrderID       string    `json:"orderId"`
	UserID        string    `json:"userId,omitempty"`
	CustomerName  string    `json:"customerName"`
	Total         int64     `json:"total"`
	HasProof      bool      `json:"hasProof"`
	SubmittedAt   time.Time `json:"submittedAt"`
	ShippingLabel string    `json:"shippingLabel"`
}

// OrderPublisher enqueues order notification jobs for asynchronous processing.
type OrderPublisher interface {
	PublishOrderSubmitted(ctx context.Context, message OrderSubmittedMessage) (string, error)
}

// PubSubOrderPublisher publishes order jobs to a Pub/Sub topic.
type PubSubOrderPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubOrderPublisher constructs a Pub/Sub backed order job publisher.
func NewPubSubOrderPublisher(topic *pubsub.Topic) (*PubSubOrderPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub order publisher: topic is required")
	}
	return &PubSubOrderPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishOrderSubmitted enqueues an order-submitted message on the configured topic.
func (p *PubSubOrderPublisher) PublishOrderSubmitted(ctx context.Context, message OrderSubmittedMessage) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub order publisher: not initialised")
	}

	data, err := p.marshal(message)
	if err != nil {
		return "", fmt.Errorf("marshal order job: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "orderId", message.OrderID)
	setAttr(attrs, "userId", message.UserID)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish order job: %w", err)
	}
	return id, nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}

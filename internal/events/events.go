package events

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Topics carrying resource lifecycle events. Downstream consumers receive
// at-least-once delivery and are expected to be idempotent.
const (
	TopicResourceCreated = "resource-created"
	TopicResourceDeleted = "resource-deleted"
)

// Event is the payload published for both topics.
type Event struct {
	ResourceId int64  `json:"resourceId"`
	TraceId    string `json:"traceId"`
}

// Publisher sends a domain event onto the message bus. Fire-and-forget: no
// acknowledgment or ordering guarantee beyond the broker's own.
type Publisher interface {
	Publish(ctx context.Context, topic string, event Event) error
}

// DeclareTopics creates the durable queues for both topics so publishes
// never race queue creation.
func DeclareTopics(channel *amqp.Channel) error {
	for _, topic := range []string{TopicResourceCreated, TopicResourceDeleted} {
		_, err := channel.QueueDeclare(topic, true, false, false, false, nil)
		if err != nil {
			return err
		}
	}
	return nil
}

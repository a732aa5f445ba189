package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/astghikaramyan/resource-service/internal/apperror"
	"github.com/astghikaramyan/resource-service/internal/retry"
	"github.com/astghikaramyan/resource-service/internal/traceid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// amqpChannel is the slice of *amqp.Channel the publisher needs.
type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange string, key string, mandatory bool, immediate bool, msg amqp.Publishing) error
}

type amqpPublisher struct {
	channel     amqpChannel
	retryPolicy retry.Policy
}

// NewAMQPPublisher publishes events to the default exchange with the topic
// as the routing key. Sends are retried up to 3 attempts with a doubling
// 1s backoff; exhaustion surfaces as a PublishFailure, never the raw
// transport error.
func NewAMQPPublisher(channel amqpChannel) Publisher {
	return &amqpPublisher{
		channel: channel,
		retryPolicy: retry.Policy{
			MaxAttempts: 3,
			Delay:       1 * time.Second,
			Multiplier:  2,
		},
	}
}

func (p *amqpPublisher) Publish(ctx context.Context, topic string, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return apperror.Wrap(apperror.KindPublishFailure, "Failed to encode event for topic "+topic, err)
	}
	err = p.retryPolicy.Do(ctx, func() error {
		return p.channel.PublishWithContext(ctx, "", topic, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Headers: amqp.Table{
				traceid.Header: event.TraceId,
			},
			Body: body,
		})
	})
	if err != nil {
		return apperror.Wrap(apperror.KindPublishFailure, "Failed to send message through message broker", err)
	}
	return nil
}

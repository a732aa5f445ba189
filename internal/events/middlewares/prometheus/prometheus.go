package prometheus

import (
	"context"

	"github.com/astghikaramyan/resource-service/internal/events"
	"github.com/prometheus/client_golang/prometheus"
)

type prometheusPublisherMiddleware struct {
	successfulPublishesCounter *prometheus.CounterVec
	failedPublishesCounter     *prometheus.CounterVec
	innerPublisher             events.Publisher
}

// Compile-time check to ensure prometheusPublisherMiddleware implements events.Publisher
var _ events.Publisher = (*prometheusPublisherMiddleware)(nil)

// NewPublisherMiddleware counts successful and failed publishes per topic.
func NewPublisherMiddleware(innerPublisher events.Publisher, registerer prometheus.Registerer) (events.Publisher, error) {
	successfulPublishesCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resourceservice",
			Subsystem: "events",
			Name:      "successful_publishes_total",
			Help:      "No of successfully published events partitioned by topic",
		},
		[]string{"topic"},
	)
	failedPublishesCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "resourceservice",
			Subsystem: "events",
			Name:      "failed_publishes_total",
			Help:      "No of failed event publishes partitioned by topic",
		},
		[]string{"topic"},
	)
	err := registerer.Register(successfulPublishesCounter)
	if err != nil {
		return nil, err
	}
	err = registerer.Register(failedPublishesCounter)
	if err != nil {
		return nil, err
	}
	return &prometheusPublisherMiddleware{
		successfulPublishesCounter: successfulPublishesCounter,
		failedPublishesCounter:     failedPublishesCounter,
		innerPublisher:             innerPublisher,
	}, nil
}

func (pm *prometheusPublisherMiddleware) Publish(ctx context.Context, topic string, event events.Event) error {
	err := pm.innerPublisher.Publish(ctx, topic, event)
	if err != nil {
		pm.failedPublishesCounter.WithLabelValues(topic).Inc()
		return err
	}
	pm.successfulPublishesCounter.WithLabelValues(topic).Inc()
	return nil
}

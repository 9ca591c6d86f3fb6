package repository

import (
	"context"
	"time"

	"FinFusion/internal/domain/models"
	"FinFusion/internal/domain/repository"
	pkgkafka "FinFusion/pkg/kafka"
)

// KafkaAlertPublisher streams persisted alerts to a topic keyed by symbol.
type KafkaAlertPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

func NewKafkaAlertPublisher(producer *pkgkafka.Producer, topic string) *KafkaAlertPublisher {
	return &KafkaAlertPublisher{producer: producer, topic: topic}
}

func (p *KafkaAlertPublisher) PublishAlert(ctx context.Context, a *models.Alert) error {
	return p.producer.Publish(ctx, p.topic, []byte(a.Symbol), models.NewAlertEnvelope(a, time.Now().UTC()))
}

// Close is a no-op; the producer is shared and closed by the app.
func (p *KafkaAlertPublisher) Close() error { return nil }

// NopAlertPublisher drops events. Used when Kafka is disabled.
type NopAlertPublisher struct{}

func (NopAlertPublisher) PublishAlert(context.Context, *models.Alert) error { return nil }
func (NopAlertPublisher) Close() error                                      { return nil }

var (
	_ repository.AlertEventPublisher = (*KafkaAlertPublisher)(nil)
	_ repository.AlertEventPublisher = NopAlertPublisher{}
)

package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"bursary/internal/review/models"
)

// DefaultTopic is the Kafka topic review events are published to.
const DefaultTopic = "ssc.review.events"

// KafkaPublisher writes review events to Kafka. Records are keyed by
// application ID so every event for one application lands on the same
// partition, preserving per-application order for consumers.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

type PublisherOption func(*KafkaPublisher)

func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *KafkaPublisher) {
		p.logger = logger
	}
}

func WithTopic(topic string) PublisherOption {
	return func(p *KafkaPublisher) {
		p.topic = topic
	}
}

// NewKafkaPublisher connects a franz-go producer to the given brokers.
func NewKafkaPublisher(brokers []string, opts ...PublisherOption) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("at least one broker is required")
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	p := &KafkaPublisher{
		client: client,
		topic:  DefaultTopic,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// EnsureTopic creates the events topic if it does not exist yet. Safe to call
// on every startup.
func (p *KafkaPublisher) EnsureTopic(ctx context.Context, partitions int32, replicas int16) error {
	adm := kadm.NewClient(p.client)
	resp, err := adm.CreateTopics(ctx, partitions, replicas, nil, p.topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", p.topic, err)
	}
	for _, res := range resp {
		if res.Err != nil && !errors.Is(res.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", res.Topic, res.Err)
		}
	}
	return nil
}

// PublishEvent produces one event synchronously.
func (p *KafkaPublisher) PublishEvent(ctx context.Context, event models.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.ApplicationID.String()),
		Value: value,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce event: %w", err)
	}
	return nil
}

// Close flushes buffered records and releases the client.
func (p *KafkaPublisher) Close() {
	p.client.Close()
}

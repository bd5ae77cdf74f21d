package events

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

const DefaultBatchTimeout = 50 * time.Millisecond

type (
	KafkaConfig struct {
		Brokers []string
		Topic   string
		// Maximum time a partial batch waits before being flushed
		BatchTimeout time.Duration
		// Writer overrides the writer built from Brokers
		Writer MessageWriter
	}
	// Subset of *kafka.Writer used by the publisher
	MessageWriter interface {
		WriteMessages(ctx context.Context, msgs ...kafka.Message) (err error)
		Close() (err error)
	}
)

// Kafka publishes events as JSON messages keyed by Event.Key
type Kafka struct {
	writer MessageWriter
}

var _ Publisher = (*Kafka)(nil)

func NewKafka(config KafkaConfig) (k *Kafka) {
	if config.Writer != nil {
		return &Kafka{writer: config.Writer}
	}
	if config.BatchTimeout <= 0 {
		config.BatchTimeout = DefaultBatchTimeout
	}
	return &Kafka{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(config.Brokers...),
			Topic:                  config.Topic,
			Balancer:               &kafka.Hash{},
			BatchTimeout:           config.BatchTimeout,
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
	}
}

func (k *Kafka) Publish(ctx context.Context, events ...Event) (err error) {
	if len(events) == 0 {
		return nil
	}

	messages := make([]kafka.Message, 0, len(events))
	for _, event := range events {
		messages = append(messages, kafka.Message{
			Key:   []byte(event.Key),
			Value: event.Bytes(),
			Time:  event.OccurredAt,
			Headers: []kafka.Header{
				{Key: "type", Value: []byte(event.Type)},
				{Key: "id", Value: []byte(event.Id.String())},
			},
		})
	}

	err = k.writer.WriteMessages(ctx, messages...)
	if err != nil {
		return fmt.Errorf("failed to write messages: %w", err)
	}
	return nil
}

func (k *Kafka) Close() (err error) {
	return k.writer.Close()
}

package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/saan/taskflow-agent/internal/infrastructure/config"
	"github.com/saan/taskflow-agent/pkg/logger"
)

// KafkaPublisher implements Publisher on top of segmentio/kafka-go,
// grounded on the teacher's events.KafkaPublisher (kafka.Writer,
// LeastBytes balancer, synchronous acks).
type KafkaPublisher struct {
	writer *kafka.Writer
	logger logger.Logger
}

func NewKafkaPublisher(cfg config.KafkaConfig, log logger.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: 1,
		Async:        false,
	}
	return &KafkaPublisher{writer: writer, logger: log}
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(e.Key),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(e.Type)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.WithField("event_type", string(e.Type)).WithField("error", err.Error()).Warn("failed to publish event")
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}

package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig configures the Kafka emitter
type KafkaConfig struct {
	Brokers      []string
	Source       string
	WriteTimeout time.Duration
}

// KafkaEmitter publishes notifications as structured-mode CloudEvents.
// The pipeline topic becomes the Kafka topic and the event name the message key.
type KafkaEmitter struct {
	writer  kafkaWriter
	source  string
	timeout time.Duration
}

// NewKafkaEmitter validates cfg and builds a writer over the broker list
func NewKafkaEmitter(cfg KafkaConfig) (*KafkaEmitter, error) {
	brokers := make([]string, 0, len(cfg.Brokers))
	for _, b := range cfg.Brokers {
		trimmed := strings.TrimSpace(b)
		if trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka brokers required")
	}
	timeout := cfg.WriteTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		WriteTimeout:           timeout,
	}
	return &KafkaEmitter{writer: w, source: cfg.Source, timeout: timeout}, nil
}

// Emit publishes one event
func (e *KafkaEmitter) Emit(ctx context.Context, topic, event string, payload any) error {
	if e == nil || e.writer == nil {
		return fmt.Errorf("kafka emitter not initialized")
	}
	ce, err := NewCloudEvent(e.source, topic, event, payload)
	if err != nil {
		return err
	}
	value, err := json.Marshal(ce)
	if err != nil {
		return fmt.Errorf("marshal cloudevent: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	return e.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(event),
		Value: value,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/cloudevents+json")},
		},
	})
}

// Close flushes and closes the writer
func (e *KafkaEmitter) Close() error {
	if e == nil || e.writer == nil {
		return nil
	}
	return e.writer.Close()
}

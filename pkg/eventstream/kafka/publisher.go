// Package kafka publishes generation events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/scribe/pkg/eventstream"
)

const (
	defaultTopic        = "scribe.generations"
	defaultBatchTimeout = 50 * time.Millisecond
	defaultWriteTimeout = 10 * time.Second
)

// ErrNoBrokers is returned by NewPublisher when no broker address is given.
var ErrNoBrokers = errors.New("kafka: no brokers configured")

// MessageWriter is the subset of *kafkago.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Config configures the Kafka publisher.
type Config struct {
	Brokers []string
	Topic   string
}

// Publisher writes one message per generation event, keyed by request id
// so every event for a request lands on the same partition.
type Publisher struct {
	writer MessageWriter
	topic  string
}

// NewPublisher creates a Publisher backed by a kafka-go Writer.
func NewPublisher(c Config) (*Publisher, error) {
	if len(c.Brokers) == 0 {
		return nil, ErrNoBrokers
	}
	topic := c.Topic
	if topic == "" {
		topic = defaultTopic
	}

	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(c.Brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		BatchTimeout:           defaultBatchTimeout,
		WriteTimeout:           defaultWriteTimeout,
		AllowAutoTopicCreation: true,
	}
	return NewPublisherWithWriter(w, topic), nil
}

// NewPublisherWithWriter wraps an existing writer. The topic is only used
// for message headers; the writer decides where messages go.
func NewPublisherWithWriter(w MessageWriter, topic string) *Publisher {
	return &Publisher{writer: w, topic: topic}
}

// PublishGeneration encodes event as JSON and writes it synchronously.
func (p *Publisher) PublishGeneration(ctx context.Context, event *eventstream.GenerationEvent) error {
	if event == nil {
		return eventstream.ErrNilGenerationEvent
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal generation event: %w", err)
	}

	msg := kafkago.Message{
		Key:   []byte(event.Request.RequestID),
		Value: payload,
		Time:  event.EmittedAt,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "schema_version", Value: []byte(fmt.Sprint(event.SchemaVersion))},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write to kafka topic %s: %w", p.topic, err)
	}
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

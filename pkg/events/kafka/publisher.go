package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"sms-transactions/pkg/events"

	"github.com/segmentio/kafka-go"
)

// DefaultTopic is the topic events are written to when none is configured.
const DefaultTopic = "sms-transactions"

// messageWriter is the subset of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config configures the Kafka publisher.
type Config struct {
	Brokers []string

	// Topic (default: DefaultTopic)
	Topic string

	// BatchTimeout bounds how long the writer waits to fill a batch (default: 10ms)
	BatchTimeout time.Duration
}

// Publisher writes events as JSON messages keyed by transaction id, so every
// event for one transaction lands on the same partition.
type Publisher struct {
	writer messageWriter
	topic  string
}

// NewPublisher creates a publisher backed by a kafka-go writer.
func NewPublisher(config Config) (*Publisher, error) {
	if len(config.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	if config.Topic == "" {
		config.Topic = DefaultTopic
	}
	if config.BatchTimeout <= 0 {
		config.BatchTimeout = 10 * time.Millisecond
	}

	return &Publisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(config.Brokers...),
			Topic:                  config.Topic,
			Balancer:               &kafka.Hash{},
			BatchTimeout:           config.BatchTimeout,
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
		topic: config.Topic,
	}, nil
}

// Topic returns the topic events are written to.
func (p *Publisher) Topic() string {
	return p.topic
}

// Publish writes event to Kafka.
func (p *Publisher) Publish(ctx context.Context, event events.Event) error {
	msg, err := message(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

// Close flushes pending messages and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

func message(event events.Event) (kafka.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}

	return kafka.Message{
		Key:   []byte(strconv.Itoa(event.Transaction.ID)),
		Value: data,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(event.ID.String())},
			{Key: "kind", Value: []byte(event.Kind)},
		},
	}, nil
}

var _ events.Publisher = (*Publisher)(nil)

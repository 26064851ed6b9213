// Package events publishes order events from the transactional outbox.
//
// Events are written by the services in the same transaction as the state
// change they describe (see repo.InsertEvent). The Relay drains them in
// insertion order and hands them to a Publisher. Delivery is at least once:
// an event is marked published only after the publisher accepted it.
package events

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/tbourn/go-order-core/internal/domain"
)

// Publisher delivers a batch of outbox events. It returns the number of
// leading events that were accepted; on a nil error that is len(evs).
type Publisher interface {
	Publish(ctx context.Context, evs []domain.OrderEvent) (int, error)
}

// messageWriter is the subset of *kafka.Writer used by KafkaPublisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to a Kafka topic. Messages are keyed by order
// id so that all events of one order land on the same partition in order.
type KafkaPublisher struct {
	w messageWriter
}

// NewKafkaPublisher returns a publisher for topic on brokers.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{w: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}}
}

// Publish writes evs as one batch. When the writer reports per-message
// failures, the count covers the events before the first failure.
func (p *KafkaPublisher) Publish(ctx context.Context, evs []domain.OrderEvent) (int, error) {
	if len(evs) == 0 {
		return 0, nil
	}
	msgs := make([]kafka.Message, len(evs))
	for i := range evs {
		msgs[i] = Message(evs[i])
	}

	err := p.w.WriteMessages(ctx, msgs...)
	if err == nil {
		return len(evs), nil
	}
	var werrs kafka.WriteErrors
	if errors.As(err, &werrs) {
		for i, e := range werrs {
			if e != nil {
				return i, err
			}
		}
		return len(evs), nil
	}
	return 0, err
}

// Close flushes and closes the underlying writer.
func (p *KafkaPublisher) Close() error { return p.w.Close() }

// Message converts an outbox row into a Kafka message.
func Message(ev domain.OrderEvent) kafka.Message {
	return kafka.Message{
		Key:   []byte(ev.OrderID),
		Value: []byte(ev.Payload),
		Time:  ev.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(ev.Type)},
			{Key: "event_id", Value: []byte(ev.EventID)},
		},
	}
}

// LogPublisher writes events to a logger. It is used when no brokers are
// configured, so the outbox still drains in development.
type LogPublisher struct {
	Logger zerolog.Logger
}

// Publish logs every event and accepts the whole batch.
func (p LogPublisher) Publish(_ context.Context, evs []domain.OrderEvent) (int, error) {
	for _, ev := range evs {
		p.Logger.Info().
			Str("event_id", ev.EventID).
			Str("event_type", ev.Type).
			Str("order_id", ev.OrderID).
			RawJSON("payload", []byte(ev.Payload)).
			Msg("order event")
	}
	return len(evs), nil
}

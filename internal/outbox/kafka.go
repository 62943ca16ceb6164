package outbox

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"

	"schedule-booking-api/internal/model"
)

// Writer is satisfied by *kafka.Writer.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes each event to the topic "<event type>.v1", keyed by
// aggregate id so one booking's events stay ordered.
type KafkaSink struct {
	w Writer
}

func NewKafkaSink(brokers []string) *KafkaSink {
	return &KafkaSink{w: kafka.NewWriter(kafka.WriterConfig{
		Brokers:  brokers,
		Balancer: &kafka.Hash{},
	})}
}

func NewKafkaSinkWithWriter(w Writer) *KafkaSink { return &KafkaSink{w: w} }

func (k *KafkaSink) Name() string { return "kafka" }

func Topic(eventType string) string { return eventType + ".v1" }

func (k *KafkaSink) Publish(ctx context.Context, evt model.OutboxEvent) error {
	msg := kafka.Message{
		Topic: Topic(evt.EventType),
		Key:   []byte(evt.AggregateID),
		Value: evt.Payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(evt.EventID)},
			{Key: "event_type", Value: []byte(evt.EventType)},
		},
	}
	carrier := &headerCarrier{headers: msg.Headers}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	msg.Headers = carrier.headers
	return k.w.WriteMessages(ctx, msg)
}

func (k *KafkaSink) Close() error { return k.w.Close() }

type headerCarrier struct {
	headers []kafka.Header
}

func (c *headerCarrier) Get(key string) string {
	for _, h := range c.headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *headerCarrier) Set(key, value string) {
	for i, h := range c.headers {
		if h.Key == key {
			c.headers[i].Value = []byte(value)
			return
		}
	}
	c.headers = append(c.headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.headers))
	for _, h := range c.headers {
		keys = append(keys, h.Key)
	}
	return keys
}

package kafka

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"social-autopilot/internal/models"
	"social-autopilot/internal/stream"
)

// EventPublisher publishes completed and failed automation actions.
type EventPublisher interface {
	PublishActivity(ctx context.Context, event models.ActivityEvent) error
	PublishFailure(ctx context.Context, failure models.ActionFailure) error
	Close() error
}

// Producer writes activity and failure events to their topics through one writer.
type Producer struct {
	writer        stream.MessageWriter
	activityTopic string
	failureTopic  string
}

// NewProducer creates a Kafka producer for the given broker and topics.
func NewProducer(broker, activityTopic, failureTopic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(broker),
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: false,
		},
		activityTopic: activityTopic,
		failureTopic:  failureTopic,
	}
}

// NewProducerWithWriter builds a producer using a custom writer (tests).
func NewProducerWithWriter(writer stream.MessageWriter, activityTopic, failureTopic string) *Producer {
	return &Producer{writer: writer, activityTopic: activityTopic, failureTopic: failureTopic}
}

// Close shuts down the underlying writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}

// PublishActivity writes event to the activity topic keyed by kind.
func (p *Producer) PublishActivity(ctx context.Context, event models.ActivityEvent) error {
	return p.write(ctx, p.activityTopic, string(event.Kind), event)
}

// PublishFailure writes failure to the failure topic keyed by action.
func (p *Producer) PublishFailure(ctx context.Context, failure models.ActionFailure) error {
	return p.write(ctx, p.failureTopic, failure.Action, failure)
}

func (p *Producer) write(ctx context.Context, topic, key string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: payload,
		Time:  time.Now().UTC(),
	}

	return p.writer.WriteMessages(ctx, msg)
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) PublishActivity(context.Context, models.ActivityEvent) error { return nil }
func (NopPublisher) PublishFailure(context.Context, models.ActionFailure) error  { return nil }
func (NopPublisher) Close() error                                                { return nil }

// Package stream narrows kafka-go to what the activity publisher and the engagement-graph
// consumer use, so both can run against mocks.
package stream

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// MessageReader is the consumer side. Offsets are committed explicitly after a message is handled.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// MessageWriter is the producer side. Each message names its own topic.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var (
	_ MessageReader = (*kafka.Reader)(nil)
	_ MessageWriter = (*kafka.Writer)(nil)
)
